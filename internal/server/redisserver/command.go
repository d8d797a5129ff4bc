package redisserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/internal/core/replication"
	"github.com/yndnr/syncmesh-go/internal/core/service"
)

// formatRedisError converts an error to a Redis error string.
// For DomainErrors, returns "ERR <code> <message>[: details]".
// For other errors, returns "ERR <message>".
func formatRedisError(err error) errorReply {
	if de, ok := domain.AsDomainError(err); ok {
		msg := de.Message
		if de.Details != "" {
			msg += ": " + de.Details
		}
		return errorReply("ERR " + de.Code + " " + oneLine(msg))
	}
	return errorReply("ERR " + oneLine(err.Error()))
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func wrongArgs(cmd string) errorReply {
	return errorReply("ERR wrong number of arguments for '" + cmd + "' command")
}

// formatValue renders v in the form ParseValue reads back.
func formatValue(v domain.Value) string {
	if v.Kind() == domain.KindVector {
		p := v.Vector()
		return strconv.FormatFloat(p.X, 'g', -1, 64) + "," + strconv.FormatFloat(p.Y, 'g', -1, 64)
	}
	return v.String()
}

// valueReply is [value, version].
func valueReply(v domain.Value, version uint64) reply {
	return array{bulkString(formatValue(v)), integer(version)}
}

func jsonReply(v any) reply {
	data, err := json.Marshal(v)
	if err != nil {
		return errorReply("ERR failed to encode reply")
	}
	return bulk(data)
}

// CommandHandler executes commands on behalf of a connection's session.
type CommandHandler struct {
	node     *replication.Node
	movement *service.MovementService
	timeout  time.Duration
	logger   *slog.Logger
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(node *replication.Node, movement *service.MovementService, timeout time.Duration, logger *slog.Logger) *CommandHandler {
	if timeout <= 0 {
		timeout = service.DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandHandler{node: node, movement: movement, timeout: timeout, logger: logger}
}

// Handle executes one command and returns its reply.
func (h *CommandHandler) Handle(c *Conn, args [][]byte) reply {
	if len(args) == 0 {
		return errorReply("ERR no command")
	}
	name := normalizeCommandName(args[0])
	params := make([]string, len(args)-1)
	for i, a := range args[1:] {
		params[i] = string(a)
	}

	switch name {
	case "PING":
		return h.handlePing(params)
	case "QUIT":
		_ = c.write(okReply, time.Second)
		_ = c.Close()
		return multi{}
	case "SESSION":
		return jsonReply(c.session.Info())
	case "FIELDS":
		return h.handleFields()
	case "GET":
		return h.handleGet(params)
	case "INFO":
		return h.handleInfo(params)
	case "DECLARE":
		return h.handleDeclare(c, params)
	case "DROP":
		return h.handleDrop(params)
	case "CLAIM":
		return h.handleClaim(c, params)
	case "RELEASE":
		return h.handleRelease(c, params)
	case "SUBSCRIBE":
		return h.handleSubscribe(c, params)
	case "UNSUBSCRIBE":
		return h.handleUnsubscribe(c, params)
	case "TOGGLE":
		return h.handleToggle(c, params)
	case "SET":
		return h.handleSet(c, params)
	case "COMMIT":
		return h.handleCommit(c, params)
	case "SPAWN":
		return h.handleSpawn(c, params)
	case "MOVE":
		return h.handleMove(c, params)
	default:
		return errorReply("ERR unknown command '" + name + "'")
	}
}

// PING [message]
func (h *CommandHandler) handlePing(params []string) reply {
	if len(params) > 0 {
		return bulkString(params[0])
	}
	return simpleString("PONG")
}

// FIELDS
func (h *CommandHandler) handleFields() reply {
	fields := h.node.Fields()
	out := make(array, 0, len(fields))
	for _, f := range fields {
		out = append(out, bulkString(f.ID))
	}
	return out
}

// GET <field>
//
// Replies [value, version], or a null bulk string when the field does not
// exist.
func (h *CommandHandler) handleGet(params []string) reply {
	if len(params) != 1 {
		return wrongArgs("GET")
	}
	v, version, err := h.node.Read(params[0])
	if errors.Is(err, domain.ErrFieldNotFound) {
		return bulk(nil)
	}
	if err != nil {
		return formatRedisError(err)
	}
	return valueReply(v, version)
}

// INFO <field>
func (h *CommandHandler) handleInfo(params []string) reply {
	if len(params) != 1 {
		return wrongArgs("INFO")
	}
	info, err := h.node.Field(params[0])
	if err != nil {
		return formatRedisError(err)
	}
	return jsonReply(info)
}

// DECLARE <field> <kind> <value> [OWNED] [EPHEMERAL]
//
// OWNED makes the connection's session the field owner.
func (h *CommandHandler) handleDeclare(c *Conn, params []string) reply {
	if len(params) < 3 {
		return wrongArgs("DECLARE")
	}
	v, err := domain.ParseValue(domain.Kind(strings.ToLower(params[1])), params[2])
	if err != nil {
		return formatRedisError(err)
	}
	spec := replication.FieldSpec{ID: params[0], Initial: v}
	for _, opt := range params[3:] {
		switch strings.ToUpper(opt) {
		case "OWNED":
			spec.Owner = c.session.ID()
		case "EPHEMERAL":
			spec.Ephemeral = true
		default:
			return errorReply("ERR syntax error")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if _, err := h.node.DeclareField(ctx, spec); err != nil {
		return formatRedisError(err)
	}
	return okReply
}

// DROP <field>
//
// Replies 1 when the field existed, 0 otherwise.
func (h *CommandHandler) handleDrop(params []string) reply {
	if len(params) != 1 {
		return wrongArgs("DROP")
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	err := h.node.DropField(ctx, params[0])
	switch {
	case errors.Is(err, domain.ErrFieldNotFound):
		return integer(0)
	case err != nil:
		return formatRedisError(err)
	}
	return integer(1)
}

// CLAIM <field>
//
// Replies the authority epoch.
func (h *CommandHandler) handleClaim(c *Conn, params []string) reply {
	if len(params) != 1 {
		return wrongArgs("CLAIM")
	}
	capability, err := c.session.ClaimAuthority(params[0])
	if err != nil {
		return formatRedisError(err)
	}
	return integer(capability.Epoch())
}

// RELEASE <field>
func (h *CommandHandler) handleRelease(c *Conn, params []string) reply {
	if len(params) != 1 {
		return wrongArgs("RELEASE")
	}
	if err := c.session.ReleaseAuthority(params[0]); err != nil {
		return formatRedisError(err)
	}
	return okReply
}

// SUBSCRIBE <field> [field ...]
//
// Replies ["subscribe", field, count] per field. Changes then arrive as
// ["message", field, notification-json].
func (h *CommandHandler) handleSubscribe(c *Conn, params []string) reply {
	if len(params) == 0 {
		return wrongArgs("SUBSCRIBE")
	}
	out := make(multi, 0, len(params))
	for _, f := range params {
		if err := c.session.Subscribe(f, nil); err != nil && !errors.Is(err, domain.ErrAlreadySubscribed) {
			out = append(out, formatRedisError(err))
			continue
		}
		count := len(c.session.Info().Subscriptions)
		out = append(out, array{bulkString("subscribe"), bulkString(f), integer(count)})
	}
	return out
}

// UNSUBSCRIBE [field ...]
//
// Without fields every subscription is removed.
func (h *CommandHandler) handleUnsubscribe(c *Conn, params []string) reply {
	if len(params) == 0 {
		params = c.session.Info().Subscriptions
	}
	out := make(multi, 0, len(params))
	for _, f := range params {
		if err := c.session.Unsubscribe(f); err != nil && !errors.Is(err, domain.ErrNotSubscribed) {
			out = append(out, formatRedisError(err))
			continue
		}
		count := len(c.session.Info().Subscriptions)
		out = append(out, array{bulkString("unsubscribe"), bulkString(f), integer(count)})
	}
	return out
}

// submit sends cmd and waits for the authority.
func (h *CommandHandler) submit(c *Conn, cmd domain.Command) reply {
	ticket, err := c.session.Submit(cmd)
	if err != nil {
		return formatRedisError(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	res, err := ticket.Wait(ctx)
	if err != nil {
		return formatRedisError(err)
	}
	return valueReply(res.Value, res.Version)
}

// TOGGLE <field>
func (h *CommandHandler) handleToggle(c *Conn, params []string) reply {
	if len(params) != 1 {
		return wrongArgs("TOGGLE")
	}
	cmd, err := domain.Toggle(params[0])
	if err != nil {
		return formatRedisError(err)
	}
	return h.submit(c, cmd)
}

// parseFor parses text as a value of the field's kind.
func (h *CommandHandler) parseFor(fieldID, text string) (domain.Value, error) {
	info, err := h.node.Field(fieldID)
	if err != nil {
		return domain.Value{}, err
	}
	return domain.ParseValue(info.Kind, text)
}

// SET <field> <value>
//
// Asks the authority to set the field.
func (h *CommandHandler) handleSet(c *Conn, params []string) reply {
	if len(params) != 2 {
		return wrongArgs("SET")
	}
	v, err := h.parseFor(params[0], params[1])
	if err != nil {
		return formatRedisError(err)
	}
	cmd, err := domain.Set(params[0], v)
	if err != nil {
		return formatRedisError(err)
	}
	return h.submit(c, cmd)
}

// COMMIT <field> <value>
//
// Writes the field directly; the session must hold its authority.
func (h *CommandHandler) handleCommit(c *Conn, params []string) reply {
	if len(params) != 2 {
		return wrongArgs("COMMIT")
	}
	v, err := h.parseFor(params[0], params[1])
	if err != nil {
		return formatRedisError(err)
	}
	version, err := c.session.Commit(params[0], v)
	if err != nil {
		return formatRedisError(err)
	}
	return integer(version)
}

// SPAWN
//
// Declares the connection's player and replies its field ID.
func (h *CommandHandler) handleSpawn(c *Conn, params []string) reply {
	if len(params) != 0 {
		return wrongArgs("SPAWN")
	}
	if h.movement == nil {
		return errorReply("ERR player movement is disabled")
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	info, err := h.movement.Spawn(ctx, c.session)
	if err != nil {
		return formatRedisError(err)
	}
	return bulkString(info.ID)
}

// MOVE <x> <y> <dt>
//
// Moves the connection's player and replies [position, version].
func (h *CommandHandler) handleMove(c *Conn, params []string) reply {
	if len(params) != 3 {
		return wrongArgs("MOVE")
	}
	if h.movement == nil {
		return errorReply("ERR player movement is disabled")
	}
	var nums [3]float64
	for i, p := range params {
		n, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return errorReply("ERR value is not a valid float")
		}
		nums[i] = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	pos, err := h.movement.Move(ctx, c.session, nums[0], nums[1], nums[2])
	if err != nil {
		return formatRedisError(err)
	}
	_, version, err := h.movement.Position(c.session.ID())
	if err != nil {
		return formatRedisError(err)
	}
	return valueReply(domain.VectorValue(pos), version)
}
