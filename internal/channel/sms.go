package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"beacon/internal/device"
	"beacon/internal/logging"
	"beacon/internal/queue"
)

// smsBodyBudget keeps encoded alerts within a single SMS segment.
const smsBodyBudget = 160

const smsSendTimeout = 15 * time.Second

// asciiFold strips diacritics and replaces any remaining non-ASCII rune so
// the body survives 7-bit SMS encoding without splitting into segments.
var asciiFold = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}
		return r
	}),
)

// SMSAdapter delivers compact alert bodies over the platform SMS capability.
type SMSAdapter struct {
	sender    device.SMSSender
	recipient string
	logger    *slog.Logger
}

// NewSMSAdapter constructs the SMS channel adapter.
func NewSMSAdapter(sender device.SMSSender, recipient string, logger *slog.Logger) *SMSAdapter {
	return &SMSAdapter{
		sender:    sender,
		recipient: recipient,
		logger:    logging.NewComponentLogger(logger, "channel-sms"),
	}
}

// Name implements queue.Adapter.
func (a *SMSAdapter) Name() queue.Channel { return queue.ChannelSMS }

// Attempt implements queue.Adapter. The capability check runs first so a
// device without SMS fails fast without burning provider calls.
func (a *SMSAdapter) Attempt(ctx context.Context, item *queue.Item) bool {
	if a.sender == nil || !a.sender.Available() {
		a.logger.Debug("sms capability unavailable",
			logging.Int64(logging.FieldItemID, item.ID),
		)
		return false
	}
	if a.recipient == "" {
		a.logger.Warn("no sms recipient configured",
			logging.String(logging.FieldEventType, "sms_recipient_missing"),
			logging.String(logging.FieldErrorHint, "set sms.recipient in the config file"),
		)
		return false
	}

	body := EncodeBody(item.Kind, item.Payload)

	sendCtx, cancel := context.WithTimeout(ctx, smsSendTimeout)
	defer cancel()

	if err := a.sender.Send(sendCtx, a.recipient, body); err != nil {
		a.logger.Debug("sms send failed",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Error(err),
		)
		return false
	}
	return true
}

// EncodeBody renders a payload as a compact fixed-format SMS body:
// B1|<type>|<subject>|<lat,lon>|<unix>|<note>, ASCII only, at most 160 bytes.
func EncodeBody(kind queue.Kind, payload queue.Payload) string {
	var (
		lat, lon *float64
		when     = time.Now().UTC()
		note     string
	)

	switch p := payload.(type) {
	case queue.SOSPayload:
		lat, lon = p.Latitude, p.Longitude
		if !p.RaisedAt.IsZero() {
			when = p.RaisedAt.UTC()
		}
		if p.Battery != nil {
			note = fmt.Sprintf("bat %d%%", *p.Battery)
		}
	case queue.CheckinPayload:
		lat, lon = p.Latitude, p.Longitude
		note = p.Note
	case queue.StatusPayload:
		lat, lon = p.Latitude, p.Longitude
		note = p.Status
	case queue.MessagePayload:
		note = p.Body
	}

	coords := "-"
	if lat != nil && lon != nil {
		coords = fmt.Sprintf("%.5f,%.5f", *lat, *lon)
	}

	body := fmt.Sprintf("B1|%s|%s|%s|%d|%s",
		strings.ToUpper(string(kind)),
		payload.SubjectRef(),
		coords,
		when.Unix(),
		note,
	)

	if folded, _, err := transform.String(asciiFold, body); err == nil {
		body = folded
	}
	if len(body) > smsBodyBudget {
		body = body[:smsBodyBudget]
	}
	return body
}
