package device

import "context"

// UnavailableLocation is a LocationProvider for platforms without a location
// service. Activation paths tolerate it by leaving location fields null.
type UnavailableLocation struct{}

func (UnavailableLocation) Current(context.Context) (Location, error) {
	return Location{}, ErrUnavailable
}

// UnavailableSMS is an SMSSender for devices without SMS capability.
type UnavailableSMS struct{}

func (UnavailableSMS) Available() bool { return false }

func (UnavailableSMS) Send(context.Context, string, string) error { return ErrUnavailable }

// UnavailableSource is a LocationSource for platforms that deliver no
// location updates. Updates returns a nil channel, which never delivers, so
// an armed reporter simply stays quiet.
type UnavailableSource struct{}

func (UnavailableSource) Updates() <-chan Location { return nil }

// UnavailableRecorder is an AudioRecorder for devices without a microphone.
type UnavailableRecorder struct{}

func (UnavailableRecorder) Start(context.Context, string) error { return ErrUnavailable }

func (UnavailableRecorder) Stop() (string, error) { return "", ErrUnavailable }
