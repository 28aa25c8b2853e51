package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"beacon/internal/logging"
)

// connectivityMonitor listens for udev netlink events on network interfaces
// and kicks the flush loop when connectivity may have returned. This avoids
// waiting out the periodic interval after a dead zone ends.
type connectivityMonitor struct {
	logger *slog.Logger
	onUp   func(iface string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newConnectivityMonitor(logger *slog.Logger, onUp func(iface string)) *connectivityMonitor {
	return &connectivityMonitor{
		logger: logging.NewComponentLogger(logger, "connectivity-monitor"),
		onUp:   onUp,
	}
}

// Start begins listening for netlink events. Failure to reach the netlink
// socket is non-fatal; the flush loop still runs on its timer.
func (m *connectivityMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.KernelEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; flushes will rely on the periodic timer",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("connectivity monitor started",
		logging.String(logging.FieldEventType, "connectivity_monitor_started"))
	return nil
}

// Stop shuts down the monitor.
func (m *connectivityMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("connectivity monitor stopped",
		logging.String(logging.FieldEventType, "connectivity_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *connectivityMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *connectivityMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(events, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"))
		}
	}
}

// buildMatcher selects interface state changes: SUBSYSTEM=net,
// ACTION=add|change|move.
func (m *connectivityMonitor) buildMatcher() netlink.Matcher {
	action := "add|change|move"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

func (m *connectivityMonitor) handleEvent(uevent netlink.UEvent) {
	iface := uevent.Env["INTERFACE"]
	if iface == "" {
		iface = uevent.KObj
	}
	// Loopback flaps carry no delivery signal.
	if iface == "lo" {
		return
	}

	m.logger.Info("network interface event",
		logging.String(logging.FieldEventType, "connectivity_change"),
		logging.String("interface", iface),
		logging.String("action", string(uevent.Action)))

	if m.onUp != nil {
		m.onUp(iface)
	}
}
