package pluginapi

import (
	"encoding/json"
	"fmt"
)

// PrefScope identifies what a preference dialog applies to: the plugin
// as a whole, or one specific library item (spec.md §3).
type PrefScope struct {
	// Kind is "Module" or "Item".
	Kind string
	// ItemUUID is populated only when Kind == "Item".
	ItemUUID string
}

// ModuleScope is the module-wide preference scope.
func ModuleScope() PrefScope { return PrefScope{Kind: "Module"} }

// ItemScope is the per-item preference scope.
func ItemScope(uuid string) PrefScope { return PrefScope{Kind: "Item", ItemUUID: uuid} }

// Key returns a string usable as a map key for the preference correlator
// (spec.md §3's "(plugin-id, scope)").
func (s PrefScope) Key(pluginID string) string {
	if s.Kind == "Item" {
		return pluginID + "\x00Item\x00" + s.ItemUUID
	}
	return pluginID + "\x00Module"
}

func (s PrefScope) MarshalJSON() ([]byte, error) {
	if s.Kind == "Item" {
		return json.Marshal(map[string]string{"Item": s.ItemUUID})
	}
	return json.Marshal("Module")
}

func (s *PrefScope) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if asString != "Module" {
			return fmt.Errorf("pluginapi: unknown unit PrefScope %q", asString)
		}
		s.Kind = "Module"
		s.ItemUUID = ""
		return nil
	}
	var asMap map[string]string
	if err := json.Unmarshal(data, &asMap); err != nil {
		return fmt.Errorf("pluginapi: invalid PrefScope: %w", err)
	}
	uuid, ok := asMap["Item"]
	if !ok {
		return fmt.Errorf("pluginapi: invalid PrefScope variant in %s", data)
	}
	s.Kind = "Item"
	s.ItemUUID = uuid
	return nil
}

// FieldType is the tagged union of preference field widgets (spec.md
// §6).
type FieldType struct {
	Kind string // Input | Checkbox | Dropdown | List | KeyValueList

	// Input fields.
	InputType  string // Text | Email | Phone | Url | Password | Number
	TextValue  string
	NumberLow  float64
	NumberHigh float64
	NumberVal  float64
	NumberStep float64

	// Checkbox.
	BoolValue bool

	// Dropdown.
	Selected int
	Options  []string

	// List.
	Items []string

	// KeyValueList.
	KV map[string]string
}

type numberInputJSON struct {
	Range [2]float64 `json:"range"`
	Value float64    `json:"value"`
	Step  float64    `json:"step"`
}

func (f FieldType) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case "Input":
		if f.InputType == "Number" {
			inner, err := json.Marshal(map[string]numberInputJSON{
				"Number": {Range: [2]float64{f.NumberLow, f.NumberHigh}, Value: f.NumberVal, Step: f.NumberStep},
			})
			if err != nil {
				return nil, err
			}
			return json.Marshal(map[string]json.RawMessage{"Input": inner})
		}
		inner, err := json.Marshal(map[string]string{f.InputType: f.TextValue})
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{"Input": inner})
	case "Checkbox":
		return json.Marshal(map[string]bool{"Checkbox": f.BoolValue})
	case "Dropdown":
		return json.Marshal(map[string]interface{}{"Dropdown": [2]interface{}{f.Selected, f.Options}})
	case "List":
		return json.Marshal(map[string][]string{"List": f.Items})
	case "KeyValueList":
		return json.Marshal(map[string]map[string]string{"KeyValueList": f.KV})
	default:
		return nil, fmt.Errorf("pluginapi: unknown FieldType kind %q", f.Kind)
	}
}

func (f *FieldType) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("pluginapi: invalid FieldType: %w", err)
	}
	if in, ok := raw["Input"]; ok {
		var innerRaw map[string]json.RawMessage
		if err := json.Unmarshal(in, &innerRaw); err != nil {
			return err
		}
		if num, ok := innerRaw["Number"]; ok {
			var n numberInputJSON
			if err := json.Unmarshal(num, &n); err != nil {
				return err
			}
			*f = FieldType{Kind: "Input", InputType: "Number",
				NumberLow: n.Range[0], NumberHigh: n.Range[1], NumberVal: n.Value, NumberStep: n.Step}
			return nil
		}
		for _, kind := range []string{"Text", "Email", "Phone", "Url", "Password"} {
			if v, ok := innerRaw[kind]; ok {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					return err
				}
				*f = FieldType{Kind: "Input", InputType: kind, TextValue: s}
				return nil
			}
		}
		return fmt.Errorf("pluginapi: unknown Input variant in %s", in)
	}
	if v, ok := raw["Checkbox"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return err
		}
		*f = FieldType{Kind: "Checkbox", BoolValue: b}
		return nil
	}
	if v, ok := raw["Dropdown"]; ok {
		var tup [2]json.RawMessage
		if err := json.Unmarshal(v, &tup); err != nil {
			return err
		}
		var idx int
		var opts []string
		if err := json.Unmarshal(tup[0], &idx); err != nil {
			return err
		}
		if err := json.Unmarshal(tup[1], &opts); err != nil {
			return err
		}
		*f = FieldType{Kind: "Dropdown", Selected: idx, Options: opts}
		return nil
	}
	if v, ok := raw["List"]; ok {
		var items []string
		if err := json.Unmarshal(v, &items); err != nil {
			return err
		}
		*f = FieldType{Kind: "List", Items: items}
		return nil
	}
	if v, ok := raw["KeyValueList"]; ok {
		var kv map[string]string
		if err := json.Unmarshal(v, &kv); err != nil {
			return err
		}
		*f = FieldType{Kind: "KeyValueList", KV: kv}
		return nil
	}
	return fmt.Errorf("pluginapi: FieldType has no recognized variant: %s", data)
}

// Field is one entry in a preference group.
type Field struct {
	UUID     string    `json:"uuid"`
	Title    string    `json:"title"`
	Subtitle *string   `json:"subtitle,omitempty"`
	Type     FieldType `json:"type"`
}

// Group is a titled collection of fields within a pane.
type Group struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// Pane is a titled collection of groups within a dialog.
type Pane struct {
	Title  string  `json:"title"`
	Groups []Group `json:"groups"`
}

// Dialog is the full hierarchical preference dialog body (spec.md §6).
type Dialog struct {
	Panes []Pane `json:"panes"`
}

// FieldValue is one entry in a PreferenceDiagUpdate payload: a raw JSON
// value keyed by field uuid, forwarded to the plugin without
// interpretation beyond the shape check in SPEC_FULL.md §4, which
// rejects an update that fails it instead of forwarding it.
type FieldValue = json.RawMessage
