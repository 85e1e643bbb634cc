// Package ipc exposes daemon control over JSON-RPC on a Unix domain socket:
// start/stop, status, queue inspection, pings, and notification tests.
package ipc
