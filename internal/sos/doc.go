// Package sos coordinates panic sessions on the field device: capturing
// location and battery, persisting the session, alerting over every
// available channel, and recording audio until deactivation.
package sos
