// Package vfslog is a minimal logging shim, matching worldiety/vfs's
// own standard-library-only logging (its silentClose helper) instead
// of pulling in a structured logger: no repo in the retrieval pack
// imports one directly, so diagnostic logging here stays on stdlib log
// too (see DESIGN.md).
package vfslog

import "log"

var std = log.Default()

// SilentClose closes c, logging (rather than returning) any failure.
// Generalizes worldiety/vfs's silentClose to any named operation.
func SilentClose(op string, c interface{ Close() error }) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		std.Printf("%s: failed to close: %v", op, err)
	}
}

// Warnf logs a warning-level diagnostic: a dropped event, a rollback
// attempt, a swallowed batch error.
func Warnf(format string, args ...interface{}) {
	std.Printf("warn: "+format, args...)
}

// Errorf logs an error-level diagnostic.
func Errorf(format string, args ...interface{}) {
	std.Printf("error: "+format, args...)
}
