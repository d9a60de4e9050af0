// Package wire defines the JSON message envelopes and tagged-union
// action types exchanged between a frontend and the core over the
// framed Unix-socket transport (spec.md §6).
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/projekt-utopia/uCore/internal/library"
	"github.com/projekt-utopia/uCore/internal/pluginapi"
)

// ProtocolVersion is the envelope's fixed version field.
const ProtocolVersion = "0.0.0"

// GameMethod is the payload of FrontendActions.GameMethod (spec.md §6).
// Launch, LaunchViaProvider, and ChangeSelectedProvider are implemented;
// the rest are accepted and reported back as unimplemented.
type GameMethod struct {
	Kind     string // Launch | LaunchViaProvider | ChangeSelectedProvider | Close | GetPid | Kill | Update | Uninstall
	ItemUUID string
	PluginID string // set for LaunchViaProvider / ChangeSelectedProvider
}

func (m GameMethod) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case "LaunchViaProvider", "ChangeSelectedProvider":
		return json.Marshal(map[string][2]string{m.Kind: {m.ItemUUID, m.PluginID}})
	case "Launch", "Close", "GetPid", "Kill", "Update", "Uninstall":
		return json.Marshal(map[string]string{m.Kind: m.ItemUUID})
	default:
		return nil, fmt.Errorf("wire: unknown GameMethod kind %q", m.Kind)
	}
}

func (m *GameMethod) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("wire: invalid GameMethod: %w", err)
	}
	for _, kind := range []string{"LaunchViaProvider", "ChangeSelectedProvider"} {
		if v, ok := raw[kind]; ok {
			var tup [2]string
			if err := json.Unmarshal(v, &tup); err != nil {
				return err
			}
			*m = GameMethod{Kind: kind, ItemUUID: tup[0], PluginID: tup[1]}
			return nil
		}
	}
	for _, kind := range []string{"Launch", "Close", "GetPid", "Kill", "Update", "Uninstall"} {
		if v, ok := raw[kind]; ok {
			var uuid string
			if err := json.Unmarshal(v, &uuid); err != nil {
				return err
			}
			*m = GameMethod{Kind: kind, ItemUUID: uuid}
			return nil
		}
	}
	return fmt.Errorf("wire: GameMethod has no recognized variant: %s", data)
}

// Unimplemented reports whether this method is accepted but not acted on
// (spec.md §6).
func (m GameMethod) Unimplemented() bool {
	switch m.Kind {
	case "Close", "GetPid", "Kill", "Update", "Uninstall":
		return true
	default:
		return false
	}
}

type prefScopePair struct {
	PluginID string
	Scope    pluginapi.PrefScope
}

func (p prefScopePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.PluginID, p.Scope})
}

func (p *prefScopePair) UnmarshalJSON(data []byte) error {
	var tup [2]json.RawMessage
	if err := json.Unmarshal(data, &tup); err != nil {
		return fmt.Errorf("wire: invalid (plugin-id, scope) pair: %w", err)
	}
	if err := json.Unmarshal(tup[0], &p.PluginID); err != nil {
		return err
	}
	return json.Unmarshal(tup[1], &p.Scope)
}

// FrontendAction is the tagged union of FrontendActions (spec.md §6).
type FrontendAction struct {
	Kind string

	ItemUUID string                        // GetGameDetails
	Method   GameMethod                     // GameMethod
	PluginID string                         // RequestPreferenceDiag / PreferenceDiagUpdate
	Scope    pluginapi.PrefScope            // RequestPreferenceDiag / PreferenceDiagUpdate
	Values   map[string]pluginapi.FieldValue // PreferenceDiagUpdate
}

func (a FrontendAction) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case "GetGameLibrary", "GetFullGameLibrary", "GetModuleList":
		return json.Marshal(a.Kind)
	case "GetGameDetails":
		return json.Marshal(map[string]string{"GetGameDetails": a.ItemUUID})
	case "GameMethod":
		return json.Marshal(map[string]GameMethod{"GameMethod": a.Method})
	case "RequestPreferenceDiag":
		return json.Marshal(map[string]prefScopePair{
			"RequestPreferenceDiag": {PluginID: a.PluginID, Scope: a.Scope},
		})
	case "PreferenceDiagUpdate":
		return json.Marshal(map[string][2]interface{}{
			"PreferenceDiagUpdate": {prefScopePair{PluginID: a.PluginID, Scope: a.Scope}, a.Values},
		})
	default:
		return nil, fmt.Errorf("wire: unknown FrontendAction kind %q", a.Kind)
	}
}

func (a *FrontendAction) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		switch asString {
		case "GetGameLibrary", "GetFullGameLibrary", "GetModuleList":
			*a = FrontendAction{Kind: asString}
			return nil
		default:
			return fmt.Errorf("wire: unknown unit FrontendAction %q", asString)
		}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("wire: invalid FrontendAction: %w", err)
	}

	if v, ok := raw["GetGameDetails"]; ok {
		var uuid string
		if err := json.Unmarshal(v, &uuid); err != nil {
			return err
		}
		*a = FrontendAction{Kind: "GetGameDetails", ItemUUID: uuid}
		return nil
	}
	if v, ok := raw["GameMethod"]; ok {
		var m GameMethod
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		*a = FrontendAction{Kind: "GameMethod", Method: m}
		return nil
	}
	if v, ok := raw["RequestPreferenceDiag"]; ok {
		var pair prefScopePair
		if err := json.Unmarshal(v, &pair); err != nil {
			return err
		}
		*a = FrontendAction{Kind: "RequestPreferenceDiag", PluginID: pair.PluginID, Scope: pair.Scope}
		return nil
	}
	if v, ok := raw["PreferenceDiagUpdate"]; ok {
		var tup [2]json.RawMessage
		if err := json.Unmarshal(v, &tup); err != nil {
			return err
		}
		var pair prefScopePair
		if err := json.Unmarshal(tup[0], &pair); err != nil {
			return err
		}
		var values map[string]pluginapi.FieldValue
		if err := json.Unmarshal(tup[1], &values); err != nil {
			return err
		}
		*a = FrontendAction{Kind: "PreferenceDiagUpdate", PluginID: pair.PluginID, Scope: pair.Scope, Values: values}
		return nil
	}
	return fmt.Errorf("wire: FrontendAction has no recognized variant: %s", data)
}

// CoreAction is the tagged union of CoreActions (spec.md §6).
type CoreAction struct {
	Kind string

	HandshakeName string // SignalSuccessHandshake

	Library     []library.CompactItem       // ResponseGameLibrary
	FullLibrary []library.FullItem          // ResponseFullGameLibrary
	Details     pluginapi.LibraryItemDetails // ResponseItemDetails
	Update      library.CompactItem         // ResponseGameUpdate

	PluginID string              // PreferenceDiagResponse
	Scope    pluginapi.PrefScope // PreferenceDiagResponse
	Dialog   pluginapi.Dialog    // PreferenceDiagResponse

	ErrTag    string // Error
	ErrDetail string // Error

	ModuleList []pluginapi.ModuleInfo // ResponseModuleList (SPEC_FULL.md §4)
}

func (a CoreAction) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case "SignalSuccessHandshake":
		return json.Marshal(map[string]string{"SignalSuccessHandshake": a.HandshakeName})
	case "ResponseGameLibrary":
		items := a.Library
		if items == nil {
			items = []library.CompactItem{}
		}
		return json.Marshal(map[string][]library.CompactItem{"ResponseGameLibrary": items})
	case "ResponseFullGameLibrary":
		items := a.FullLibrary
		if items == nil {
			items = []library.FullItem{}
		}
		return json.Marshal(map[string][]library.FullItem{"ResponseFullGameLibrary": items})
	case "ResponseItemDetails":
		return json.Marshal(map[string]pluginapi.LibraryItemDetails{"ResponseItemDetails": a.Details})
	case "ResponseGameUpdate":
		return json.Marshal(map[string]library.CompactItem{"ResponseGameUpdate": a.Update})
	case "PreferenceDiagResponse":
		return json.Marshal(map[string][2]interface{}{
			"PreferenceDiagResponse": {prefScopePair{PluginID: a.PluginID, Scope: a.Scope}, a.Dialog},
		})
	case "Error":
		return json.Marshal(map[string][2]string{"Error": {a.ErrTag, a.ErrDetail}})
	case "ResponseModuleList":
		list := a.ModuleList
		if list == nil {
			list = []pluginapi.ModuleInfo{}
		}
		return json.Marshal(map[string][]pluginapi.ModuleInfo{"ResponseModuleList": list})
	default:
		return nil, fmt.Errorf("wire: unknown CoreAction kind %q", a.Kind)
	}
}

func (a *CoreAction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("wire: invalid CoreAction: %w", err)
	}
	if v, ok := raw["SignalSuccessHandshake"]; ok {
		var name string
		if err := json.Unmarshal(v, &name); err != nil {
			return err
		}
		*a = CoreAction{Kind: "SignalSuccessHandshake", HandshakeName: name}
		return nil
	}
	if v, ok := raw["ResponseGameLibrary"]; ok {
		var items []library.CompactItem
		if err := json.Unmarshal(v, &items); err != nil {
			return err
		}
		*a = CoreAction{Kind: "ResponseGameLibrary", Library: items}
		return nil
	}
	if v, ok := raw["ResponseFullGameLibrary"]; ok {
		var items []library.FullItem
		if err := json.Unmarshal(v, &items); err != nil {
			return err
		}
		*a = CoreAction{Kind: "ResponseFullGameLibrary", FullLibrary: items}
		return nil
	}
	if v, ok := raw["ResponseItemDetails"]; ok {
		var d pluginapi.LibraryItemDetails
		if err := json.Unmarshal(v, &d); err != nil {
			return err
		}
		*a = CoreAction{Kind: "ResponseItemDetails", Details: d}
		return nil
	}
	if v, ok := raw["ResponseGameUpdate"]; ok {
		var item library.CompactItem
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}
		*a = CoreAction{Kind: "ResponseGameUpdate", Update: item}
		return nil
	}
	if v, ok := raw["PreferenceDiagResponse"]; ok {
		var tup [2]json.RawMessage
		if err := json.Unmarshal(v, &tup); err != nil {
			return err
		}
		var pair prefScopePair
		if err := json.Unmarshal(tup[0], &pair); err != nil {
			return err
		}
		var dialog pluginapi.Dialog
		if err := json.Unmarshal(tup[1], &dialog); err != nil {
			return err
		}
		*a = CoreAction{Kind: "PreferenceDiagResponse", PluginID: pair.PluginID, Scope: pair.Scope, Dialog: dialog}
		return nil
	}
	if v, ok := raw["Error"]; ok {
		var tup [2]string
		if err := json.Unmarshal(v, &tup); err != nil {
			return err
		}
		*a = CoreAction{Kind: "Error", ErrTag: tup[0], ErrDetail: tup[1]}
		return nil
	}
	if v, ok := raw["ResponseModuleList"]; ok {
		var list []pluginapi.ModuleInfo
		if err := json.Unmarshal(v, &list); err != nil {
			return err
		}
		*a = CoreAction{Kind: "ResponseModuleList", ModuleList: list}
		return nil
	}
	return fmt.Errorf("wire: CoreAction has no recognized variant: %s", data)
}
