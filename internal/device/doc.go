// Package device defines the platform capability contracts the agent depends
// on: location fixes, battery level, audio capture, SMS, and streaming
// location updates.
//
// Every capability may legitimately be absent; ErrUnavailable is the
// normal-operations signal for that, and safety-critical callers must proceed
// without the reading rather than fail. The package ships a Linux sysfs
// battery reader and explicit unavailable stand-ins for the rest; real mobile
// integrations plug in behind the same interfaces.
package device
