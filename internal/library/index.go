package library

import (
	"fmt"
	"sync"

	"github.com/projekt-utopia/uCore/internal/apperrors"
	"github.com/projekt-utopia/uCore/internal/pluginapi"
)

// Op distinguishes Add from Remove in UpdateState, per spec.md §4.4.
type Op int

const (
	OpAdd Op = iota
	OpRemove
)

// Index is the deduplicated item store. It is owned exclusively by the
// event loop (spec.md §3 "Ownership") — callers outside that loop must
// not share an Index instance across goroutines without external
// synchronization; the internal mutex exists only to make
// snapshot-for-broadcast safe against future callers, not to invite
// concurrent mutation.
type Index struct {
	mu    sync.Mutex
	items map[string]*LibraryItem
}

// New builds an empty Index.
func New() *Index {
	return &Index{items: make(map[string]*LibraryItem)}
}

// moduleInfoProvider supplies the display title/icon/module_info a new
// ItemProvider is stamped with at insert time — the event loop passes
// the plugin host, which already holds each loaded plugin's
// ModuleInfo().
type ModuleInfoProvider interface {
	ModuleInfoFor(pluginID string) (pluginapi.ModuleInfo, bool)
}

// Insert applies one plugin's AddLibraryItem (spec.md §4.4): if the
// item's uuid is unseen, a new LibraryItem is created with pluginID as
// its sole (and therefore active) provider; otherwise pluginID is added
// as an additional provider, and the existing item's name, kind,
// details, and active provider are left untouched (SPEC_FULL.md §1,
// Open Question frozen as spec.md intends).
func (idx *Index) Insert(pluginID string, item pluginapi.ItemInsert, infos ModuleInfoProvider) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	info, _ := infos.ModuleInfoFor(pluginID)
	provider := &ItemProvider{
		Title:      info.Name,
		Module:     pluginID,
		Status:     append(pluginapi.StatusSet(nil), item.Status...),
		ModuleInfo: info,
	}
	if info.Icon != nil {
		provider.Icon = info.Icon
	}

	existing, ok := idx.items[item.UUID]
	if !ok {
		idx.items[item.UUID] = &LibraryItem{
			UUID:           item.UUID,
			Name:           item.Name,
			Kind:           item.Kind,
			Details:        item.Details,
			Providers:      map[string]*ItemProvider{pluginID: provider},
			ActiveProvider: pluginID,
		}
		return nil
	}

	existing.Providers[pluginID] = provider
	return nil
}

// BulkInsert folds Insert over items; the first failure aborts the
// remainder (spec.md §4.4).
func (idx *Index) BulkInsert(pluginID string, items []pluginapi.ItemInsert, infos ModuleInfoProvider) error {
	for i, item := range items {
		if err := idx.Insert(pluginID, item, infos); err != nil {
			return fmt.Errorf("bulk insert aborted at item %d (%s): %w", i, item.UUID, err)
		}
	}
	return nil
}

// Get returns a copy-free pointer to the item (still under the Index's
// lock discipline: callers in the event loop may read/mutate fields
// directly since the loop is single-threaded).
func (idx *Index) Get(uuid string) (*LibraryItem, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	item, ok := idx.items[uuid]
	if !ok {
		return nil, apperrors.New(apperrors.ClassLibrarySemantic, "Error looking up item", apperrors.ErrItemNotFound)
	}
	return item, nil
}

// LaunchDefault resolves the active provider for uuid, for the caller to
// then send LaunchLibraryItem(uuid) to it (spec.md §4.4).
func (idx *Index) LaunchDefault(uuid string) (pluginID string, err error) {
	item, err := idx.Get(uuid)
	if err != nil {
		return "", apperrors.New(apperrors.ClassLibrarySemantic, "Error running item", err)
	}
	return item.ActiveProvider, nil
}

// LaunchVia resolves pluginID as a provider of uuid, erroring with
// ProvModuleNotAvailable semantics if it isn't one (spec.md §4.4).
func (idx *Index) LaunchVia(uuid, pluginID string) error {
	item, err := idx.Get(uuid)
	if err != nil {
		return apperrors.New(apperrors.ClassLibrarySemantic, "Error running item via provider", err)
	}
	if _, ok := item.Providers[pluginID]; !ok {
		return apperrors.New(apperrors.ClassLibrarySemantic, "Error running item via provider",
			fmt.Errorf("%w: %s is not a provider of %s", apperrors.ErrProviderNotFound, pluginID, uuid))
	}
	return nil
}

// ChangeActive sets uuid's active provider to pluginID, which must
// already be a provider (spec.md §4.4).
func (idx *Index) ChangeActive(uuid, pluginID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	item, ok := idx.items[uuid]
	if !ok {
		return apperrors.New(apperrors.ClassLibrarySemantic, "Error changing provider", apperrors.ErrItemNotFound)
	}
	if _, ok := item.Providers[pluginID]; !ok {
		return apperrors.New(apperrors.ClassLibrarySemantic, "Error changing provider",
			fmt.Errorf("%w: %s is not a provider of %s", apperrors.ErrProviderNotFound, pluginID, uuid))
	}
	item.ActiveProvider = pluginID
	return nil
}

// UpdateState mutates pluginID's status set for uuid by set-Add or
// set-Remove of status (spec.md §4.4). The active provider's cached view
// is a pure projection per SPEC_FULL.md/spec.md §9, so there is nothing
// further to refresh here beyond the mutation itself.
func (idx *Index) UpdateState(uuid, pluginID string, op Op, status pluginapi.ItemStatus) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	item, ok := idx.items[uuid]
	if !ok {
		return apperrors.New(apperrors.ClassLibrarySemantic, "Error updating item state", apperrors.ErrItemNotFound)
	}
	provider, ok := item.Providers[pluginID]
	if !ok {
		return apperrors.New(apperrors.ClassLibrarySemantic, "Error updating item state",
			fmt.Errorf("%w: %s is not a provider of %s", apperrors.ErrProviderNotFound, pluginID, uuid))
	}
	switch op {
	case OpAdd:
		provider.Status = provider.Status.Add(status)
	case OpRemove:
		provider.Status = provider.Status.Remove(status)
	}
	return nil
}

// Len reports how many distinct items are currently indexed.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.items)
}

// All returns every item currently indexed, for snapshotting.
func (idx *Index) All() []*LibraryItem {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	out := make([]*LibraryItem, 0, len(idx.items))
	for _, item := range idx.items {
		out = append(out, item)
	}
	return out
}
