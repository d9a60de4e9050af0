// Package apperrors provides the core's error taxonomy: a small typed
// wrapper used to decide whether a failure is surfaced to the requesting
// frontend, logged and otherwise ignored, or fatal to the process.
//
// Modeled on the teacher's internal/errors package, but with classes drawn
// from the failure taxonomy in spec.md §7 instead of HTTP status codes:
// there is no HTTP surface here, only the three policies a CoreError can
// carry.
package apperrors

import (
	"errors"
	"fmt"
)

// Class classifies a CoreError by how the event loop should react to it.
type Class string

const (
	// ClassTransport covers frontend connection I/O and decode failures.
	ClassTransport Class = "transport"
	// ClassPluginLoad covers dynamic-loading failures (missing symbol, ABI
	// mismatch, dlopen failure). The affected plugin is skipped.
	ClassPluginLoad Class = "plugin_load"
	// ClassPluginRuntime covers a plugin task ending, with or without a
	// self-reported reason.
	ClassPluginRuntime Class = "plugin_runtime"
	// ClassLibrarySemantic covers item/provider/plugin lookup misses
	// triggered by a frontend request; these are reported back to that
	// frontend as a CoreActions.Error.
	ClassLibrarySemantic Class = "library_semantic"
	// ClassPrefCorrelation covers an unmatched preference dialog response;
	// policy is to drop silently.
	ClassPrefCorrelation Class = "pref_correlation"
	// ClassDatabaseFatal covers database supervisor failures that require
	// an orderly shutdown of the whole core.
	ClassDatabaseFatal Class = "database_fatal"
)

// Sentinel errors for errors.Is/errors.As composition.
var (
	ErrItemNotFound       = errors.New("library item not available")
	ErrProviderNotFound   = errors.New("provider not available for item")
	ErrModuleNotAvailable = errors.New("module not available")
	ErrModuleABI          = errors.New("module ABI mismatch")
	ErrPreferenceDropped  = errors.New("preference response has no matching request")
)

// CoreError is the wrapper type attached to every error the core produces
// that isn't a trivial local return. Tag is the short human phrase named in
// spec.md §7 (e.g. "Error running item", "Error changing provider"); it is
// what gets echoed verbatim in a CoreActions.Error's tag field.
type CoreError struct {
	Class Class
	Tag   string
	Err   error
}

// New builds a CoreError.
func New(class Class, tag string, err error) *CoreError {
	return &CoreError{Class: class, Tag: tag, Err: err}
}

func (e *CoreError) Error() string {
	if e.Err == nil {
		return e.Tag
	}
	return fmt.Sprintf("%s: %s", e.Tag, e.Err.Error())
}

func (e *CoreError) Unwrap() error { return e.Err }

// Detail returns the underlying error text for embedding in a
// CoreActions.Error's detail field, or "" if there is none.
func (e *CoreError) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Reportable reports whether this error class is meant to be surfaced to
// the requesting frontend (as opposed to logged-and-dropped or fatal).
func (e *CoreError) Reportable() bool {
	return e.Class == ClassLibrarySemantic || e.Class == ClassTransport
}

// Fatal reports whether this error should terminate the event loop.
func (e *CoreError) Fatal() bool {
	return e.Class == ClassDatabaseFatal
}
