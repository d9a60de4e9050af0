package wire

// FrontendEvent is one complete message from a frontend to the core
// (spec.md §6). UUID is an optional correlation id the frontend chooses
// and the matching CoreEvent echoes back verbatim.
type FrontendEvent struct {
	Version string          `json:"version"`
	UUID    *string         `json:"uuid"`
	Action  FrontendAction  `json:"action"`
}

// CoreEvent is one complete message from the core to a frontend
// (spec.md §6).
type CoreEvent struct {
	Version string     `json:"version"`
	UUID    *string     `json:"uuid"`
	Action  CoreAction `json:"action"`
}

// NewCoreEvent builds a CoreEvent at the fixed protocol version,
// optionally correlated to a request uuid.
func NewCoreEvent(uuid *string, action CoreAction) CoreEvent {
	return CoreEvent{Version: ProtocolVersion, UUID: uuid, Action: action}
}
