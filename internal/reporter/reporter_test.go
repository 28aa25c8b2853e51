package reporter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"beacon/internal/device"
	"beacon/internal/logging"
	"beacon/internal/queue"
	"beacon/internal/testsupport"
)

type recordingSubmitter struct {
	mu     sync.Mutex
	err    error
	status []queue.StatusPayload
}

func (s *recordingSubmitter) SubmitStatus(_ context.Context, payload queue.StatusPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.status = append(s.status, payload)
	return nil
}

func (s *recordingSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.status)
}

func (s *recordingSubmitter) last() queue.StatusPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[len(s.status)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestArmedUpdatesAreSubmittedAsUrgent(t *testing.T) {
	source := testsupport.NewFakeSource()
	submitter := &recordingSubmitter{}
	r := New("subject-test", source, submitter, logging.NewNop())
	go r.Run()
	defer r.Stop()

	r.Arm("session-1")
	source.Ch <- device.Location{Latitude: 52.52, Longitude: 13.405}

	waitFor(t, "urgent report", func() bool { return submitter.count() == 1 })
	got := submitter.last()
	if got.Status != "urgent" || got.SubjectID != "subject-test" {
		t.Fatalf("payload = %+v", got)
	}
	if got.Latitude == nil || *got.Latitude != 52.52 {
		t.Fatalf("latitude = %v", got.Latitude)
	}
}

func TestDisarmedUpdatesAreDiscarded(t *testing.T) {
	source := testsupport.NewFakeSource()
	submitter := &recordingSubmitter{}
	r := New("subject-test", source, submitter, logging.NewNop())
	go r.Run()
	defer r.Stop()

	source.Ch <- device.Location{Latitude: 1}

	r.Arm("session-1")
	r.Disarm()
	source.Ch <- device.Location{Latitude: 2}

	// Give the loop a moment; nothing should come through.
	time.Sleep(50 * time.Millisecond)
	if submitter.count() != 0 {
		t.Fatalf("submitted %d reports while disarmed", submitter.count())
	}
}

func TestArmIsIdempotent(t *testing.T) {
	source := testsupport.NewFakeSource()
	r := New("subject-test", source, &recordingSubmitter{}, logging.NewNop())

	r.Arm("session-1")
	r.Arm("session-1")
	if !r.Armed() {
		t.Fatal("reporter should be armed")
	}
	r.Disarm()
	r.Disarm()
	if r.Armed() {
		t.Fatal("reporter should be disarmed")
	}
}

func TestSubmitFailureDoesNotStopTheLoop(t *testing.T) {
	source := testsupport.NewFakeSource()
	submitter := &recordingSubmitter{err: errors.New("server unreachable")}
	r := New("subject-test", source, submitter, logging.NewNop())
	go r.Run()
	defer r.Stop()

	r.Arm("session-1")
	source.Ch <- device.Location{Latitude: 1}

	time.Sleep(50 * time.Millisecond)
	submitter.mu.Lock()
	submitter.err = nil
	submitter.mu.Unlock()

	source.Ch <- device.Location{Latitude: 2}
	waitFor(t, "report after recovery", func() bool { return submitter.count() == 1 })
}

func TestStopDrainsTheLoop(t *testing.T) {
	source := testsupport.NewFakeSource()
	r := New("subject-test", source, &recordingSubmitter{}, logging.NewNop())
	go r.Run()

	r.Stop()
	// A second Stop must not panic or hang.
	r.Stop()
}

func TestRunToleratesSilentSource(t *testing.T) {
	r := New("subject-test", device.UnavailableSource{}, &recordingSubmitter{}, logging.NewNop())
	go r.Run()

	r.Arm("session-1")
	if !r.Armed() {
		t.Fatal("reporter should arm over a silent source")
	}
	r.Disarm()
	r.Stop()
}
