package sos

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"beacon/internal/device"
	"beacon/internal/logging"
)

// captureTimeout bounds how long activation waits for sensors.
const captureTimeout = 5 * time.Second

type captureResult struct {
	latitude  *float64
	longitude *float64
	accuracy  *float64
	battery   *int
}

// captureContext gathers location and battery in parallel. Either probe may
// fail without blocking the other; failures are logged and leave the
// corresponding fields nil.
func captureContext(ctx context.Context, location device.LocationProvider, battery device.BatteryProvider, logger *slog.Logger) captureResult {
	ctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	var (
		result captureResult
		mu     sync.Mutex
		wg     sync.WaitGroup
	)

	if location != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fix, err := location.Current(ctx)
			if err != nil {
				logger.Warn("location capture failed", logging.Error(err))
				return
			}
			mu.Lock()
			result.latitude = &fix.Latitude
			result.longitude = &fix.Longitude
			result.accuracy = &fix.Accuracy
			mu.Unlock()
		}()
	}

	if battery != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			level, err := battery.Level(ctx)
			if err != nil {
				logger.Warn("battery capture failed", logging.Error(err))
				return
			}
			mu.Lock()
			result.battery = &level
			mu.Unlock()
		}()
	}

	wg.Wait()
	return result
}
