// Package prefs implements the Preference Correlator (spec.md §4.7): it
// remembers which frontend asked a plugin for a preference dialog so the
// eventual PreferenceDiagResponse can be routed back, and drops any
// response that doesn't match an outstanding request.
//
// It also keeps the field shapes of the most recently handed-out dialog
// per scope (SPEC_FULL.md §4 "preference dialog field validation echo"),
// so a later PreferenceDiagUpdate naming an unrecognized field uuid or a
// value of the wrong shape can be rejected before it ever reaches the
// plugin.
package prefs

import (
	"encoding/json"
	"fmt"

	"github.com/projekt-utopia/uCore/internal/pluginapi"
)

// waiting is who should receive the eventual response.
type waiting struct {
	frontendID    string
	correlationID *string
}

// Correlator is exclusively owned and mutated by the Event Loop
// (spec.md §3 "Ownership"). Entries are keyed by PrefScope.Key(pluginID).
type Correlator struct {
	entries map[string]waiting
	dialogs map[string]map[string]pluginapi.FieldType
}

// New builds an empty Correlator.
func New() *Correlator {
	return &Correlator{
		entries: make(map[string]waiting),
		dialogs: make(map[string]map[string]pluginapi.FieldType),
	}
}

// Request records (pluginID, scope) → (frontendID, correlationID) and
// reports whether a prior request for the same key was overwritten — per
// spec.md §3 "at most one outstanding entry per key", the newer request
// wins and the caller should log the eviction rather than treat it as an
// error.
func (c *Correlator) Request(pluginID string, scope pluginapi.PrefScope, frontendID string, correlationID *string) (evicted bool) {
	k := scope.Key(pluginID)
	_, evicted = c.entries[k]
	c.entries[k] = waiting{frontendID: frontendID, correlationID: correlationID}
	return evicted
}

// Resolve looks up and removes the entry for (pluginID, scope), for a
// PreferenceDiagResponse the named plugin sent. ok is false if no
// request is outstanding, in which case spec.md §4.7 says the response
// must be dropped silently.
func (c *Correlator) Resolve(pluginID string, scope pluginapi.PrefScope) (frontendID string, correlationID *string, ok bool) {
	k := scope.Key(pluginID)
	w, ok := c.entries[k]
	if !ok {
		return "", nil, false
	}
	delete(c.entries, k)
	return w.frontendID, w.correlationID, true
}

// Len reports how many requests are currently outstanding.
func (c *Correlator) Len() int {
	return len(c.entries)
}

// RecordDialog remembers dialog's field shapes for (pluginID, scope), so
// a later PreferenceDiagUpdate against the same scope can be checked by
// ValidateUpdate. It replaces whatever was recorded before for that key
// — only the most recently handed-out dialog's shape matters.
func (c *Correlator) RecordDialog(pluginID string, scope pluginapi.PrefScope, dialog pluginapi.Dialog) {
	fields := make(map[string]pluginapi.FieldType)
	for _, pane := range dialog.Panes {
		for _, group := range pane.Groups {
			for _, f := range group.Fields {
				fields[f.UUID] = f.Type
			}
		}
	}
	c.dialogs[scope.Key(pluginID)] = fields
}

// ValidateUpdate checks values against the field shapes RecordDialog
// last saw for (pluginID, scope). A field uuid absent from that dialog
// is almost certainly a frontend bug and is rejected outright; a known
// field whose value doesn't decode as its type's shape is rejected too.
// If no dialog has been recorded for this scope yet, validation is
// skipped — forwarding is still spec.md §4.7's unconditional default.
func (c *Correlator) ValidateUpdate(pluginID string, scope pluginapi.PrefScope, values map[string]pluginapi.FieldValue) error {
	fields, ok := c.dialogs[scope.Key(pluginID)]
	if !ok {
		return nil
	}
	for uuid, raw := range values {
		ft, ok := fields[uuid]
		if !ok {
			return fmt.Errorf("preference update names unknown field %q", uuid)
		}
		if err := checkShape(ft, raw); err != nil {
			return fmt.Errorf("preference update for field %q: %w", uuid, err)
		}
	}
	return nil
}

func checkShape(ft pluginapi.FieldType, raw pluginapi.FieldValue) error {
	switch ft.Kind {
	case "Checkbox":
		var b bool
		return decodeAs(raw, &b)
	case "Input":
		if ft.InputType == "Number" {
			var n float64
			return decodeAs(raw, &n)
		}
		var s string
		return decodeAs(raw, &s)
	case "Dropdown":
		var idx int
		return decodeAs(raw, &idx)
	case "List":
		var items []string
		return decodeAs(raw, &items)
	case "KeyValueList":
		var kv map[string]string
		return decodeAs(raw, &kv)
	default:
		return nil
	}
}

func decodeAs(raw pluginapi.FieldValue, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("value does not match field's shape: %w", err)
	}
	return nil
}
