package channel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"beacon/internal/channel"
	"beacon/internal/config"
	"beacon/internal/logging"
	"beacon/internal/queue"
)

type ingestRecorder struct {
	mu    sync.Mutex
	paths []string
	auth  string
}

func (r *ingestRecorder) handler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.paths = append(r.paths, req.URL.Path)
		r.auth = req.Header.Get("Authorization")
		r.mu.Unlock()
		w.WriteHeader(status)
	})
}

func newTestClient(t *testing.T, serverURL string) *channel.Client {
	t.Helper()
	cfg := config.Default()
	cfg.Server.BaseURL = serverURL
	cfg.Server.APIToken = "token-1"
	cfg.Server.TimeoutSeconds = 2
	return channel.NewClient(&cfg)
}

func TestNetworkAdapterDispatchesByKind(t *testing.T) {
	rec := &ingestRecorder{}
	srv := httptest.NewServer(rec.handler(http.StatusAccepted))
	defer srv.Close()

	adapter := channel.NewNetworkAdapter(newTestClient(t, srv.URL), logging.NewNop())

	items := []*queue.Item{
		{ID: 1, Kind: queue.KindSOS, Payload: queue.SOSPayload{SubjectID: "s1", SessionID: "x"}},
		{ID: 2, Kind: queue.KindCheckin, Payload: queue.CheckinPayload{SubjectID: "s1"}},
		{ID: 3, Kind: queue.KindStatus, Payload: queue.StatusPayload{SubjectID: "s1", Status: "ok"}},
		{ID: 4, Kind: queue.KindMessage, Payload: queue.MessagePayload{SubjectID: "s1", Body: "hello"}},
	}
	for _, item := range items {
		if !adapter.Attempt(context.Background(), item) {
			t.Fatalf("attempt for kind %q failed", item.Kind)
		}
	}

	want := []string{"/api/v1/sos", "/api/v1/checkin", "/api/v1/status", "/api/v1/message"}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.paths) != len(want) {
		t.Fatalf("expected %d requests, got %v", len(want), rec.paths)
	}
	for i := range want {
		if rec.paths[i] != want[i] {
			t.Fatalf("request %d hit %q, want %q", i, rec.paths[i], want[i])
		}
	}
	if rec.auth != "Bearer token-1" {
		t.Fatalf("missing bearer token, got %q", rec.auth)
	}
}

func TestNetworkAdapterReturnsFalseOnServerError(t *testing.T) {
	rec := &ingestRecorder{}
	srv := httptest.NewServer(rec.handler(http.StatusInternalServerError))
	defer srv.Close()

	adapter := channel.NewNetworkAdapter(newTestClient(t, srv.URL), logging.NewNop())
	item := &queue.Item{ID: 1, Kind: queue.KindCheckin, Payload: queue.CheckinPayload{SubjectID: "s1"}}
	if adapter.Attempt(context.Background(), item) {
		t.Fatal("expected failure on 500 response")
	}
}

func TestNetworkAdapterEnforcesTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := channel.NewClientWithDoer(srv.URL, "", 150*time.Millisecond, &http.Client{})
	adapter := channel.NewNetworkAdapter(client, logging.NewNop())

	start := time.Now()
	item := &queue.Item{ID: 1, Kind: queue.KindCheckin, Payload: queue.CheckinPayload{SubjectID: "s1"}}
	if adapter.Attempt(context.Background(), item) {
		t.Fatal("expected timeout failure")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("attempt did not respect timeout, took %s", elapsed)
	}
}

func TestClientRejectsMissingBaseURL(t *testing.T) {
	cfg := config.Default()
	client := channel.NewClient(&cfg)
	err := client.SubmitCheckin(context.Background(), queue.CheckinPayload{SubjectID: "s1"})
	if err == nil {
		t.Fatal("expected error without base URL")
	}
}

func TestClientPostsJSONBody(t *testing.T) {
	var got queue.SOSPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	lat := 52.5
	payload := queue.SOSPayload{SubjectID: "s1", SessionID: "sess", Latitude: &lat, RaisedAt: time.Now().UTC()}
	if err := newTestClient(t, srv.URL).SubmitSOS(context.Background(), payload); err != nil {
		t.Fatalf("SubmitSOS failed: %v", err)
	}
	if got.SubjectID != "s1" || got.Latitude == nil || *got.Latitude != lat {
		t.Fatalf("payload did not round trip: %#v", got)
	}
}
