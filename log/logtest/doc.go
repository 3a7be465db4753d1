/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package logtest provides Recorder, an implementation of log.FieldLogger that keeps logged entries in memory
// so tests can check what and at which level was logged.
package logtest
