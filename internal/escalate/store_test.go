package escalate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStorePath(filepath.Join(t.TempDir(), "coord.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestUpsertSubjectPreservesKnownFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := Subject{
		ID:        "s1",
		Name:      "Ada",
		Country:   "DE",
		Status:    "ok",
		Battery:   intPtr(80),
		Latitude:  floatPtr(52.52),
		Longitude: floatPtr(13.405),
	}
	if err := store.UpsertSubject(ctx, first); err != nil {
		t.Fatalf("UpsertSubject: %v", err)
	}

	// A later report without name, coordinates, or battery must not erase
	// what is already known.
	update := Subject{ID: "s1", Status: "urgent"}
	if err := store.UpsertSubject(ctx, update); err != nil {
		t.Fatalf("UpsertSubject update: %v", err)
	}

	got, err := store.GetSubject(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSubject: %v", err)
	}
	if got.Status != "urgent" {
		t.Fatalf("status = %q, want urgent", got.Status)
	}
	if got.Name != "Ada" || got.Country != "DE" {
		t.Fatalf("identity fields lost: %+v", got)
	}
	if got.Battery == nil || *got.Battery != 80 {
		t.Fatalf("battery = %v, want 80", got.Battery)
	}
	if got.Latitude == nil || *got.Latitude != 52.52 {
		t.Fatalf("latitude = %v, want 52.52", got.Latitude)
	}
}

func TestRecordCheckinRequiresKnownSubject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RecordCheckin(ctx, "ghost", time.Now()); err == nil {
		t.Fatal("expected error for unknown subject")
	}

	if err := store.UpsertSubject(ctx, Subject{ID: "s1"}); err != nil {
		t.Fatalf("UpsertSubject: %v", err)
	}
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	if err := store.RecordCheckin(ctx, "s1", at); err != nil {
		t.Fatalf("RecordCheckin: %v", err)
	}

	got, err := store.GetSubject(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSubject: %v", err)
	}
	if got.LastCheckinAt == nil || !got.LastCheckinAt.Equal(at) {
		t.Fatalf("last_checkin_at = %v, want %v", got.LastCheckinAt, at)
	}
}

func TestListSubjectsFiltersByCountry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, subject := range []Subject{
		{ID: "s1", Country: "DE"},
		{ID: "s2", Country: "FR"},
		{ID: "s3", Country: "de"},
	} {
		if err := store.UpsertSubject(ctx, subject); err != nil {
			t.Fatalf("UpsertSubject(%s): %v", subject.ID, err)
		}
	}

	// Country codes fold to upper case on write and on filter.
	for _, filter := range []string{"DE", "de"} {
		german, err := store.ListSubjects(ctx, filter)
		if err != nil {
			t.Fatalf("ListSubjects(%q): %v", filter, err)
		}
		if len(german) != 2 {
			t.Fatalf("subjects for %q = %d, want 2", filter, len(german))
		}
		for _, subject := range german {
			if subject.Country != "DE" {
				t.Fatalf("stored country = %q, want DE", subject.Country)
			}
		}
	}
	all, err := store.ListSubjects(ctx, "")
	if err != nil {
		t.Fatalf("ListSubjects all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all subjects = %d, want 3", len(all))
	}
}

func TestEscalationLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	escalation := Escalation{
		ID:          "e1",
		SubjectID:   "s1",
		Type:        TypeMissedCheckin,
		Severity:    SeverityWarning,
		Description: "no check-in for 26h",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.InsertEscalation(ctx, escalation); err != nil {
		t.Fatalf("InsertEscalation: %v", err)
	}

	open, err := store.UnresolvedEscalation(ctx, "s1", TypeMissedCheckin)
	if err != nil {
		t.Fatalf("UnresolvedEscalation: %v", err)
	}
	if open == nil || open.ID != "e1" {
		t.Fatalf("open escalation = %+v", open)
	}

	changed, err := store.AcknowledgeEscalation(ctx, "e1", time.Now())
	if err != nil || !changed {
		t.Fatalf("AcknowledgeEscalation: changed=%v err=%v", changed, err)
	}
	changed, err = store.AcknowledgeEscalation(ctx, "e1", time.Now())
	if err != nil {
		t.Fatalf("second Acknowledge: %v", err)
	}
	if changed {
		t.Fatal("second acknowledge must not change anything")
	}

	changed, err = store.ResolveEscalation(ctx, "e1", time.Now())
	if err != nil || !changed {
		t.Fatalf("ResolveEscalation: changed=%v err=%v", changed, err)
	}

	open, err = store.UnresolvedEscalation(ctx, "s1", TypeMissedCheckin)
	if err != nil {
		t.Fatalf("UnresolvedEscalation after resolve: %v", err)
	}
	if open != nil {
		t.Fatalf("escalation still open: %+v", open)
	}
}

func TestInsertEscalationRejectsOpenDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := Escalation{
		ID:        "e1",
		SubjectID: "s1",
		Type:      TypeMissedCheckin,
		Severity:  SeverityWarning,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.InsertEscalation(ctx, first); err != nil {
		t.Fatalf("InsertEscalation: %v", err)
	}

	dup := first
	dup.ID = "e2"
	if err := store.InsertEscalation(ctx, dup); !errors.Is(err, ErrDuplicateUnresolved) {
		t.Fatalf("duplicate insert error = %v, want ErrDuplicateUnresolved", err)
	}

	// A different type for the same subject is a distinct condition.
	other := first
	other.ID = "e3"
	other.Type = TypeBatteryCritical
	if err := store.InsertEscalation(ctx, other); err != nil {
		t.Fatalf("insert of other type: %v", err)
	}

	if _, err := store.ResolveEscalation(ctx, "e1", time.Now()); err != nil {
		t.Fatalf("ResolveEscalation: %v", err)
	}
	reopened := first
	reopened.ID = "e4"
	if err := store.InsertEscalation(ctx, reopened); err != nil {
		t.Fatalf("insert after resolve: %v", err)
	}
}

func TestRecentActivityIsBounded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.AppendActivity(ctx, "s1", "message", "hello"); err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
	}

	entries, err := store.RecentActivity(ctx, 3)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
}
