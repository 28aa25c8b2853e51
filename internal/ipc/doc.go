// Package ipc connects the beacon CLI to the running agent daemon over a
// Unix domain socket using JSON-RPC.
package ipc
