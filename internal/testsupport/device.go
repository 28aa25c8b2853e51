package testsupport

import (
	"context"
	"errors"
	"sync"

	"beacon/internal/device"
)

// FakeLocation is a LocationProvider returning a fixed fix or error.
type FakeLocation struct {
	Fix device.Location
	Err error
}

func (f FakeLocation) Current(context.Context) (device.Location, error) {
	if f.Err != nil {
		return device.Location{}, f.Err
	}
	return f.Fix, nil
}

// FakeBattery is a BatteryProvider returning a fixed level or error.
type FakeBattery struct {
	Percent int
	Err     error
}

func (f FakeBattery) Level(context.Context) (int, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	return f.Percent, nil
}

// FakeRecorder is an AudioRecorder that tracks start/stop calls.
type FakeRecorder struct {
	mu       sync.Mutex
	Ref      string
	StartErr error

	started bool
	stops   int
}

func (f *FakeRecorder) Start(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.started = true
	return nil
}

func (f *FakeRecorder) Stop() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if !f.started {
		return "", errors.New("recorder not started")
	}
	f.started = false
	return f.Ref, nil
}

// Stops returns how many times Stop was called.
func (f *FakeRecorder) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// FakeSMS is an SMSSender that records sent messages.
type FakeSMS struct {
	mu        sync.Mutex
	Capable   bool
	SendErr   error
	Sent      []string
	Recipient string
}

func (f *FakeSMS) Available() bool { return f.Capable }

func (f *FakeSMS) Send(_ context.Context, recipient, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Recipient = recipient
	f.Sent = append(f.Sent, body)
	return nil
}

// Bodies returns a copy of the sent SMS bodies.
func (f *FakeSMS) Bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]string, len(f.Sent))
	copy(cp, f.Sent)
	return cp
}

// FakeSource is a LocationSource fed manually by tests.
type FakeSource struct {
	Ch chan device.Location
}

// NewFakeSource creates a FakeSource with a small buffer.
func NewFakeSource() *FakeSource {
	return &FakeSource{Ch: make(chan device.Location, 8)}
}

func (f *FakeSource) Updates() <-chan device.Location { return f.Ch }
