// Package fanout pushes coordination events to connected operator sessions
// through named groups. Delivery is fire and forget: a consumer that cannot
// keep up loses events instead of slowing the rest.
package fanout
