package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const powerSupplyRoot = "/sys/class/power_supply"

// SysfsBatteryProvider reads the battery level from the Linux power_supply
// sysfs tree. Devices without a battery entry report ErrUnavailable.
type SysfsBatteryProvider struct {
	root string
}

// NewSysfsBatteryProvider constructs a battery provider over /sys/class/power_supply.
func NewSysfsBatteryProvider() *SysfsBatteryProvider {
	return &SysfsBatteryProvider{root: powerSupplyRoot}
}

// NewSysfsBatteryProviderAt constructs a battery provider over an alternate
// sysfs root (used in tests).
func NewSysfsBatteryProviderAt(root string) *SysfsBatteryProvider {
	return &SysfsBatteryProvider{root: root}
}

// Level returns the first readable battery capacity in percent.
func (p *SysfsBatteryProvider) Level(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(p.root)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", ErrUnavailable, p.root, err)
	}

	for _, entry := range entries {
		supplyDir := filepath.Join(p.root, entry.Name())
		kind, err := os.ReadFile(filepath.Join(supplyDir, "type"))
		if err != nil || strings.TrimSpace(string(kind)) != "Battery" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(supplyDir, "capacity"))
		if err != nil {
			continue
		}
		level, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		if level < 0 {
			level = 0
		}
		if level > 100 {
			level = 100
		}
		return level, nil
	}

	return 0, fmt.Errorf("%w: no battery under %s", ErrUnavailable, p.root)
}
