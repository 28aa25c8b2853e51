// Package notify pushes operator notifications through ntfy. Without a
// configured topic it degrades to a noop service.
package notify
