// Package log provides a small wrapper around the standard library logger
// used across the frontend. It adds per-component named loggers via
// ForComponent(name), an automatic "[name]" message prefix, Warn and Debug
// levels, and the ability to enable debug output globally or per component.
//
// Basic usage:
//
//	l := log.ForComponent("frontend")
//	l.Infof("serving package page for %s", name)
//	l.Debugf("cache key: %s", key) // only prints when debug is enabled
//
// Debug can be enabled globally (SetGlobalDebug) or selectively
// (EnableDebugFor). Tests can redirect output with SetOutput and a
// bytes.Buffer to assert on log contents.
//
// The package name intentionally collides with the stdlib "log"; alias one
// of them when both are imported.
package log
