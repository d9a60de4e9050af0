package library

import "github.com/projekt-utopia/uCore/internal/pluginapi"

// ProviderRecord is the frontend-facing projection of an ItemProvider
// (spec.md §6).
type ProviderRecord struct {
	Name       string                `json:"name"`
	Icon       *string               `json:"icon,omitempty"`
	Module     string                `json:"module"`
	Stati      pluginapi.StatusSet   `json:"stati"`
	ModuleInfo pluginapi.ModuleInfo  `json:"module_info"`
}

// ActiveProviderRef is the compact pointer-plus-cache the frontend uses
// to render the default launch target without a second lookup
// (spec.md §6). Per spec.md §9 it is always recomputed from the
// providers map, never cached across calls.
type ActiveProviderRef struct {
	UUID  string              `json:"uuid"`
	Name  string              `json:"name"`
	Icon  *string             `json:"icon,omitempty"`
	Stati pluginapi.StatusSet `json:"stati"`
}

// CompactItem is the ResponseGameLibrary/ResponseGameUpdate projection
// (spec.md §6).
type CompactItem struct {
	UUID           string                    `json:"uuid"`
	Name           string                    `json:"name"`
	Kind           pluginapi.ItemKind        `json:"kind"`
	ActiveProvider ActiveProviderRef         `json:"active_provider"`
	Providers      map[string]ProviderRecord `json:"providers"`
}

// FullItem is CompactItem plus the immutable details body
// (spec.md §6).
type FullItem struct {
	CompactItem
	Details pluginapi.LibraryItemDetails `json:"details"`
}

func toCompact(item *LibraryItem) CompactItem {
	providers := make(map[string]ProviderRecord, len(item.Providers))
	for id, p := range item.Providers {
		providers[id] = ProviderRecord{
			Name: p.Title, Icon: p.Icon, Module: p.Module,
			Stati: append(pluginapi.StatusSet(nil), p.Status...), ModuleInfo: p.ModuleInfo,
		}
	}

	active := item.Providers[item.ActiveProvider]
	ref := ActiveProviderRef{UUID: item.ActiveProvider}
	if active != nil {
		ref.Name = active.Title
		ref.Icon = active.Icon
		ref.Stati = append(pluginapi.StatusSet(nil), active.Status...)
	}

	return CompactItem{
		UUID: item.UUID, Name: item.Name, Kind: item.Kind,
		ActiveProvider: ref, Providers: providers,
	}
}

// SnapshotShort projects one item to its CompactItem shape.
func (idx *Index) SnapshotShort(uuid string) (CompactItem, error) {
	item, err := idx.Get(uuid)
	if err != nil {
		return CompactItem{}, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return toCompact(item), nil
}

// SnapshotFull projects one item to its FullItem shape.
func (idx *Index) SnapshotFull(uuid string) (FullItem, error) {
	item, err := idx.Get(uuid)
	if err != nil {
		return FullItem{}, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return FullItem{CompactItem: toCompact(item), Details: item.Details}, nil
}

// SnapshotAllShort projects the whole index to CompactItems, for
// ResponseGameLibrary.
func (idx *Index) SnapshotAllShort() []CompactItem {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	out := make([]CompactItem, 0, len(idx.items))
	for _, item := range idx.items {
		out = append(out, toCompact(item))
	}
	return out
}

// SnapshotAllFull projects the whole index to FullItems, for
// ResponseFullGameLibrary.
func (idx *Index) SnapshotAllFull() []FullItem {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	out := make([]FullItem, 0, len(idx.items))
	for _, item := range idx.items {
		out = append(out, FullItem{CompactItem: toCompact(item), Details: item.Details})
	}
	return out
}
