// Package pastebin uploads rendered chapter text to the paste-hosting
// service and returns the public URL.
package pastebin
