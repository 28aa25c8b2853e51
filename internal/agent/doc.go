// Package agent runs the field daemon: single-instance locking, the
// serialized flush loop with its periodic timer and connectivity kicks, and
// the control surface exposed to the CLI over IPC.
package agent
