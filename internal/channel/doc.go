// Package channel implements the transport adapters behind the outbound
// queue: HTTP submission to the coordination server, single-segment SMS
// fallback, and the acknowledged mesh stub.
//
// Adapters share one contract: Attempt reports success or failure and never
// propagates transport errors upward; the queue owns retry bookkeeping, the
// adapter owns bounded-time delivery. The network client is also used
// directly by the background location reporter, which bypasses the queue.
package channel
