package pluginapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ItemKind distinguishes a library item as a full game or a generic app
// (spec.md §3).
type ItemKind string

const (
	KindGame ItemKind = "Game"
	KindApp  ItemKind = "App"
)

// StatusKind enumerates the ItemStatus variants (spec.md §3). Running is
// the only variant carrying data (an optional pid); the rest are unit
// variants.
type StatusKind string

const (
	StatusRunning   StatusKind = "Running"
	StatusClosing   StatusKind = "Closing"
	StatusUpdatable StatusKind = "Updatable"
	StatusUpdating  StatusKind = "Updating"
	StatusInstalled StatusKind = "Installed"
)

// ItemStatus is one member of a status set. Equality (used for set
// semantics) is structural: two Running statuses are equal only if their
// Pid fields are both nil or both point at the same value.
type ItemStatus struct {
	Kind StatusKind
	// Pid is set only when Kind == StatusRunning, and may itself be nil
	// (spec.md's "Running(pid?)" — the pid is optional even within the
	// Running variant, matching a launch that hasn't yet reported one).
	Pid *int
}

// Running builds a Running(pid) status.
func Running(pid int) ItemStatus { return ItemStatus{Kind: StatusRunning, Pid: &pid} }

// Unit builds a status from one of the non-Running kinds. Panics if kind
// is StatusRunning, since that variant requires Running().
func Unit(kind StatusKind) ItemStatus {
	if kind == StatusRunning {
		panic("pluginapi: Unit called with StatusRunning; use Running(pid)")
	}
	return ItemStatus{Kind: kind}
}

// Equal reports structural equality, per spec.md §3/§8 invariant 3.
func (s ItemStatus) Equal(other ItemStatus) bool {
	if s.Kind != other.Kind {
		return false
	}
	if s.Kind != StatusRunning {
		return true
	}
	switch {
	case s.Pid == nil && other.Pid == nil:
		return true
	case s.Pid == nil || other.Pid == nil:
		return false
	default:
		return *s.Pid == *other.Pid
	}
}

// MarshalJSON renders unit variants as a bare string and Running as
// {"Running": <pid-or-null>}, matching an externally-tagged Rust enum.
func (s ItemStatus) MarshalJSON() ([]byte, error) {
	if s.Kind != StatusRunning {
		return json.Marshal(string(s.Kind))
	}
	return json.Marshal(map[string]*int{"Running": s.Pid})
}

func (s *ItemStatus) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		s.Kind = StatusKind(asString)
		s.Pid = nil
		return nil
	}

	var asMap map[string]*int
	if err := json.Unmarshal(data, &asMap); err != nil {
		return fmt.Errorf("pluginapi: invalid ItemStatus: %w", err)
	}
	pid, ok := asMap["Running"]
	if !ok {
		return fmt.Errorf("pluginapi: invalid ItemStatus variant in %s", data)
	}
	s.Kind = StatusRunning
	s.Pid = pid
	return nil
}

// StatusSet is an unordered collection of ItemStatus with no duplicates
// (spec.md §3, §8 invariant 3).
type StatusSet []ItemStatus

// Contains reports whether value is present in the set.
func (set StatusSet) Contains(value ItemStatus) bool {
	for _, s := range set {
		if s.Equal(value) {
			return true
		}
	}
	return false
}

// Add returns the set with value added if absent (no-op if already
// present), per spec.md §3/§8.
func (set StatusSet) Add(value ItemStatus) StatusSet {
	if set.Contains(value) {
		return set
	}
	return append(set, value)
}

// Remove returns the set with value removed if present (no-op if
// absent).
func (set StatusSet) Remove(value ItemStatus) StatusSet {
	out := make(StatusSet, 0, len(set))
	for _, s := range set {
		if !s.Equal(value) {
			out = append(out, s)
		}
	}
	return out
}

// AgeRating holds optional age-rating board classifications.
type AgeRating struct {
	PEGI *string `json:"pegi,omitempty"`
	ESRB *string `json:"esrb,omitempty"`
	FSK  *string `json:"fsk,omitempty"`
}

// Credits names the people/entities behind an item. Developer is
// required; everything else is optional free-form attribution.
type Credits struct {
	Developer string            `json:"developer"`
	Publisher *string           `json:"publisher,omitempty"`
	Director  *string           `json:"director,omitempty"`
	Others    map[string]string `json:"others,omitempty"`
}

// ArtworkType tags the role an artwork plays. Misc carries a free-form
// name for roles not otherwise enumerated.
type ArtworkType struct {
	Kind string // SquareCover | CaseCover | Logo | LandscapeCover | Background | Misc
	Misc string // populated only when Kind == "Misc"
}

func (t ArtworkType) MarshalJSON() ([]byte, error) {
	if t.Kind == "Misc" {
		return json.Marshal(map[string]string{"Misc": t.Misc})
	}
	return json.Marshal(t.Kind)
}

func (t *ArtworkType) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		t.Kind = asString
		t.Misc = ""
		return nil
	}
	var asMap map[string]string
	if err := json.Unmarshal(data, &asMap); err != nil {
		return fmt.Errorf("pluginapi: invalid ArtworkType: %w", err)
	}
	name, ok := asMap["Misc"]
	if !ok {
		return fmt.Errorf("pluginapi: invalid ArtworkType variant in %s", data)
	}
	t.Kind = "Misc"
	t.Misc = name
	return nil
}

// ArtworkPayload is one of three ways artwork bytes can be delivered.
type ArtworkPayload struct {
	// Variant is "Bytes", "Uri", or "Path".
	Variant string

	// Bytes fields, valid when Variant == "Bytes".
	Data         []byte `json:"-"`
	Alpha        bool   `json:"-"`
	BitsPerSample int   `json:"-"`
	Width        int    `json:"-"`
	Height       int    `json:"-"`
	Rowstride    int    `json:"-"`

	// Uri/Path fields.
	Ref string `json:"-"`
}

type artworkBytesJSON struct {
	Data          []byte `json:"data"`
	Alpha         bool   `json:"alpha"`
	BitsPerSample int    `json:"bits_per_sample"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Rowstride     int    `json:"rowstride"`
}

func (p ArtworkPayload) MarshalJSON() ([]byte, error) {
	switch p.Variant {
	case "Bytes":
		return json.Marshal(map[string]artworkBytesJSON{"Bytes": {
			Data: p.Data, Alpha: p.Alpha, BitsPerSample: p.BitsPerSample,
			Width: p.Width, Height: p.Height, Rowstride: p.Rowstride,
		}})
	case "Uri":
		return json.Marshal(map[string]string{"Uri": p.Ref})
	case "Path":
		return json.Marshal(map[string]string{"Path": p.Ref})
	default:
		return nil, fmt.Errorf("pluginapi: unknown ArtworkPayload variant %q", p.Variant)
	}
}

func (p *ArtworkPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("pluginapi: invalid ArtworkPayload: %w", err)
	}
	if b, ok := raw["Bytes"]; ok {
		var v artworkBytesJSON
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*p = ArtworkPayload{Variant: "Bytes", Data: v.Data, Alpha: v.Alpha,
			BitsPerSample: v.BitsPerSample, Width: v.Width, Height: v.Height, Rowstride: v.Rowstride}
		return nil
	}
	if u, ok := raw["Uri"]; ok {
		var v string
		if err := json.Unmarshal(u, &v); err != nil {
			return err
		}
		*p = ArtworkPayload{Variant: "Uri", Ref: v}
		return nil
	}
	if pa, ok := raw["Path"]; ok {
		var v string
		if err := json.Unmarshal(pa, &v); err != nil {
			return err
		}
		*p = ArtworkPayload{Variant: "Path", Ref: v}
		return nil
	}
	return fmt.Errorf("pluginapi: ArtworkPayload has no recognized variant: %s", data)
}

// Artwork is one piece of cover/logo/background art for an item.
type Artwork struct {
	UUID     string         `json:"uuid"`
	Type     ArtworkType    `json:"type"`
	MimeType string         `json:"mime_type"`
	Payload  ArtworkPayload `json:"payload"`
}

// LibraryItemDetails is the immutable-after-insert metadata body of an
// item (spec.md §3). A later insert by another provider never overwrites
// these fields.
type LibraryItemDetails struct {
	AgeRating          AgeRating `json:"age_rating"`
	Artworks           []Artwork `json:"artworks"`
	Description        *string   `json:"description,omitempty"`
	Genres             []string  `json:"genres"`
	GameModes          []string  `json:"game_modes"`
	Credits            Credits   `json:"credits"`
	ControllerSupport  []string  `json:"controller_support"`
}

// ItemInsert is the payload a plugin sends over AddLibraryItem
// (spec.md §4.4): everything needed to either create a new LibraryItem or
// register the sender as an additional provider of an existing one.
type ItemInsert struct {
	UUID    string              `json:"uuid"`
	Name    string              `json:"name"`
	Kind    ItemKind            `json:"kind"`
	Details LibraryItemDetails  `json:"details"`
	Status  StatusSet           `json:"status"`
}

// String implements fmt.Stringer for compact logging.
func (i ItemInsert) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "ItemInsert{uuid=%s name=%q kind=%s}", i.UUID, i.Name, i.Kind)
	return b.String()
}
