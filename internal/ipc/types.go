package ipc

// StatusRequest fetches agent runtime information.
type StatusRequest struct{}

// StatusResponse describes the running agent.
type StatusResponse struct {
	Running     bool           `json:"running"`
	PanicState  string         `json:"panic_state"`
	SessionID   string         `json:"session_id,omitempty"`
	QueueStats  map[string]int `json:"queue_stats"`
	QueueDBPath string         `json:"queue_db_path"`
	LockPath    string         `json:"lock_path"`
	Netlink     bool           `json:"netlink"`
	PID         int            `json:"pid"`
}

// FlushRequest runs a flush cycle immediately.
type FlushRequest struct{}

// FlushResponse reports how many items were delivered.
type FlushResponse struct {
	Sent int `json:"sent"`
}

// PanicActivateRequest starts a panic session.
type PanicActivateRequest struct{}

// PanicActivateResponse reports the session outcome. Activated is false when
// a session was already in flight.
type PanicActivateResponse struct {
	Activated bool   `json:"activated"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// PanicDeactivateRequest resolves the active panic session.
type PanicDeactivateRequest struct{}

// PanicDeactivateResponse reports the deactivation outcome.
type PanicDeactivateResponse struct {
	Deactivated bool `json:"deactivated"`
}

// QueueStatsRequest fetches outbox counts by status.
type QueueStatsRequest struct{}

// QueueStatsResponse contains outbox counts.
type QueueStatsResponse struct {
	Stats map[string]int `json:"stats"`
}

// RetryFailedRequest returns failed items to the pending pool.
type RetryFailedRequest struct{}

// RetryFailedResponse reports how many items were reset.
type RetryFailedResponse struct {
	Updated int64 `json:"updated"`
}

// PurgeSentRequest removes delivered items from the outbox.
type PurgeSentRequest struct{}

// PurgeSentResponse reports how many items were removed.
type PurgeSentResponse struct {
	Removed int64 `json:"removed"`
}
