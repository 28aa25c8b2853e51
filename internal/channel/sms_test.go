package channel_test

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode"

	"beacon/internal/channel"
	"beacon/internal/logging"
	"beacon/internal/queue"
	"beacon/internal/testsupport"
)

func TestEncodeBodyStaysWithinSingleSegment(t *testing.T) {
	lat := 48.13743
	lon := 11.57549
	battery := 9
	payload := queue.SOSPayload{
		SubjectID: "subject-with-a-rather-long-identifier-0001",
		SessionID: "session",
		Latitude:  &lat,
		Longitude: &lon,
		Battery:   &battery,
		RaisedAt:  time.Unix(1700000000, 0),
	}

	body := channel.EncodeBody(queue.KindSOS, payload)
	if len(body) > 160 {
		t.Fatalf("body exceeds single segment: %d bytes", len(body))
	}
	if !strings.HasPrefix(body, "B1|SOS|") {
		t.Fatalf("unexpected body prefix: %q", body)
	}
	if !strings.Contains(body, "48.13743,11.57549") {
		t.Fatalf("expected coordinates in body: %q", body)
	}
	if !strings.Contains(body, "1700000000") {
		t.Fatalf("expected unix timestamp in body: %q", body)
	}
}

func TestEncodeBodyTransliteratesToASCII(t *testing.T) {
	payload := queue.MessagePayload{SubjectID: "söüj", Body: "Hilfe — Café überfüllt"}
	body := channel.EncodeBody(queue.KindMessage, payload)
	for _, r := range body {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune %q survived transliteration: %q", r, body)
		}
	}
	if !strings.Contains(body, "Cafe") {
		t.Fatalf("expected diacritics stripped, got %q", body)
	}
}

func TestEncodeBodyWithoutLocation(t *testing.T) {
	payload := queue.CheckinPayload{SubjectID: "s1", Note: "ok"}
	body := channel.EncodeBody(queue.KindCheckin, payload)
	if !strings.Contains(body, "|-|") {
		t.Fatalf("expected placeholder coordinates, got %q", body)
	}
}

func TestSMSAdapterChecksCapabilityFirst(t *testing.T) {
	item := &queue.Item{
		ID:      1,
		Kind:    queue.KindSOS,
		Payload: queue.SOSPayload{SubjectID: "s1", SessionID: "sess"},
		Channel: queue.ChannelSMS,
	}

	sender := &testsupport.FakeSMS{Capable: false}
	adapter := channel.NewSMSAdapter(sender, "+491511234567", logging.NewNop())
	if adapter.Attempt(context.Background(), item) {
		t.Fatal("expected failure when device cannot send SMS")
	}
	if len(sender.Bodies()) != 0 {
		t.Fatal("capability check must run before any send")
	}

	sender.Capable = true
	if !adapter.Attempt(context.Background(), item) {
		t.Fatal("expected success with capable sender")
	}
	bodies := sender.Bodies()
	if len(bodies) != 1 || !strings.HasPrefix(bodies[0], "B1|SOS|s1|") {
		t.Fatalf("unexpected sent bodies: %v", bodies)
	}
	if sender.Recipient != "+491511234567" {
		t.Fatalf("unexpected recipient %q", sender.Recipient)
	}
}

func TestSMSAdapterWithoutRecipient(t *testing.T) {
	item := &queue.Item{ID: 1, Kind: queue.KindSOS, Payload: queue.SOSPayload{SubjectID: "s1"}}
	adapter := channel.NewSMSAdapter(&testsupport.FakeSMS{Capable: true}, "", logging.NewNop())
	if adapter.Attempt(context.Background(), item) {
		t.Fatal("expected failure without a configured recipient")
	}
}

func TestMeshAdapterAlwaysFails(t *testing.T) {
	adapter := channel.NewMeshAdapter(logging.NewNop())
	item := &queue.Item{ID: 7, Kind: queue.KindSOS, Payload: queue.SOSPayload{SubjectID: "s1"}}
	if adapter.Attempt(context.Background(), item) {
		t.Fatal("mesh stub must never report success")
	}
	if adapter.Name() != queue.ChannelMesh {
		t.Fatalf("unexpected channel name %q", adapter.Name())
	}
}
