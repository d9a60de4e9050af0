package pluginapi

// ToCoreEvent is a message a plugin sends to the core over its outbound
// channel (spec.md §4.3). Concrete types below are the only
// implementations.
type ToCoreEvent interface{ isToCoreEvent() }

// AddLibraryItem reports a new or additional-provider library entry.
type AddLibraryItem struct{ Item ItemInsert }

// Launched reports that the plugin started a child process for an item.
type Launched struct {
	ItemUUID string
	Pid      int
}

// PreferenceDiagResponse answers an outstanding RequestPreferenceDiag.
type PreferenceDiagResponse struct {
	Scope  PrefScope
	Dialog Dialog
}

func (AddLibraryItem) isToCoreEvent()         {}
func (Launched) isToCoreEvent()               {}
func (PreferenceDiagResponse) isToCoreEvent() {}

// ToPluginEvent is a message the core sends to a plugin over its inbound
// channel.
type ToPluginEvent interface{ isToPluginEvent() }

// LaunchLibraryItem asks the plugin to launch the named item.
type LaunchLibraryItem struct{ ItemUUID string }

// RequestPreferenceDiag asks the plugin to produce a preference dialog
// for the given scope.
type RequestPreferenceDiag struct{ Scope PrefScope }

// PreferenceDiagUpdate forwards frontend-submitted field values for the
// given scope; the core does not wait for a reply (spec.md §4.7).
type PreferenceDiagUpdate struct {
	Scope  PrefScope
	Values map[string]FieldValue
}

func (LaunchLibraryItem) isToPluginEvent()     {}
func (RequestPreferenceDiag) isToPluginEvent() {}
func (PreferenceDiagUpdate) isToPluginEvent()  {}

// FromPlugin wraps a ToCoreEvent with the id of the plugin that sent it.
// The host's per-plugin task forwarding goroutine is the sole place this
// tag is attached — see spec.md §4.3 ("tagged at the sending end").
type FromPlugin struct {
	PluginID string
	Event    ToCoreEvent
}
