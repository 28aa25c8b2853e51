package device

import (
	"context"
	"errors"
)

// ErrUnavailable indicates a device capability is absent on this platform.
// Callers on safety-critical paths treat it as a missing reading, never as a
// reason to abort.
var ErrUnavailable = errors.New("device capability unavailable")

// Location is a positional fix from the platform location service.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// LocationProvider produces a best-effort current location fix.
type LocationProvider interface {
	Current(ctx context.Context) (Location, error)
}

// BatteryProvider reports the current battery level in percent.
type BatteryProvider interface {
	Level(ctx context.Context) (int, error)
}

// AudioRecorder captures audio evidence during an emergency session.
// Start begins capture into dir; Stop ends it and returns a reference to the
// captured file. Stop without a prior Start returns ErrUnavailable.
type AudioRecorder interface {
	Start(ctx context.Context, dir string) error
	Stop() (string, error)
}

// SMSSender abstracts the platform SMS capability.
type SMSSender interface {
	// Available reports whether the device can send SMS at all.
	Available() bool
	Send(ctx context.Context, recipient, body string) error
}

// LocationSource streams platform-delivered location updates while the
// background reporter is armed. The delivery cadence belongs to the platform.
type LocationSource interface {
	Updates() <-chan Location
}
