package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending Status = "pending"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusSending,
	StatusSent,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Channel identifies an independent transmission path.
type Channel string

const (
	ChannelNetwork Channel = "network"
	ChannelSMS     Channel = "sms"
	ChannelMesh    Channel = "mesh"
)

var channelSet = map[Channel]struct{}{
	ChannelNetwork: {},
	ChannelSMS:     {},
	ChannelMesh:    {},
}

// PriorityEmergency is the maximum priority, reserved for SOS alerts.
const PriorityEmergency = 100

// Item represents an outbound report persisted in SQLite.
//
// Items are created by Enqueue, mutated only by Flush, and removed only by
// PurgeSent. Sent is terminal; failed is terminal except through RetryFailed.
type Item struct {
	ID            int64
	Kind          Kind
	Payload       Payload
	Priority      int
	Channel       Channel
	Attempts      int
	MaxAttempts   int
	Status        Status
	CreatedAt     time.Time
	LastAttemptAt *time.Time
}

// IsTerminal reports whether the item will see no further flush attempts.
func (i Item) IsTerminal() bool {
	return i.Status == StatusSent || i.Status == StatusFailed
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseChannel converts a string into a known Channel.
func ParseChannel(value string) (Channel, bool) {
	normalized := Channel(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := channelSet[normalized]
	return normalized, ok
}
