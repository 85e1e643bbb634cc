// Command inkwire is the CLI for controlling the inkwire daemon: starting and
// stopping it, inspecting tracked books, draining errors and published pastes,
// and managing configuration.
package main
