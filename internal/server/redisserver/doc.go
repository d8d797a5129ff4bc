// Package redisserver serves the replication node over RESP2, so any Redis
// client can join as a session.
//
// Each TCP connection is one session. Commands:
//
//	PING [msg]                       QUIT
//	SESSION                          session info as JSON
//	FIELDS                           field IDs
//	GET field                        [value, version] or nil
//	INFO field                       field info as JSON
//	DECLARE field kind value [OWNED] [EPHEMERAL]
//	DROP field                       1 if dropped, 0 if unknown
//	CLAIM field / RELEASE field      authority; CLAIM replies the epoch
//	SUBSCRIBE field... / UNSUBSCRIBE [field...]
//	TOGGLE field / SET field value   queued commands, reply [value, version]
//	COMMIT field value               direct write by the authority
//	SPAWN / MOVE x y dt              the connection's player
//
// Subscribed changes are pushed as ["message", field, notification-json].
// Errors read "ERR <code> <message>" with the domain error code.
package redisserver
