package replication

import "time"

// Recorder receives replication events for metrics. Implementations must be
// safe for concurrent use.
type Recorder interface {
	SessionConnected()
	SessionDisconnected()
	AuthorityClaimed()
	AuthorityReleased()
	CommandSubmitted(kind string)
	// CommandResolved reports the final outcome; code is "OK" or an error code.
	CommandResolved(kind, code string, latency time.Duration)
	QueueDepth(fieldID string, depth int)
	Committed()
	NotificationDelivered()
	NotificationDropped()
}

type nopRecorder struct{}

func (nopRecorder) SessionConnected() {}
func (nopRecorder) SessionDisconnected() {}
func (nopRecorder) AuthorityClaimed() {}
func (nopRecorder) AuthorityReleased() {}
func (nopRecorder) CommandSubmitted(string) {}
func (nopRecorder) CommandResolved(string, string, time.Duration) {}
func (nopRecorder) QueueDepth(string, int) {}
func (nopRecorder) Committed() {}
func (nopRecorder) NotificationDelivered() {}
func (nopRecorder) NotificationDropped() {}
