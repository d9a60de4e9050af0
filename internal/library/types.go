// Package library implements the aggregated, deduplicated game/app index
// described in spec.md §4.4: one LibraryItem per unique uuid, with one
// ItemProvider per plugin that has published that uuid.
package library

import "github.com/projekt-utopia/uCore/internal/pluginapi"

// ItemProvider is one plugin's view of a library item (spec.md §3).
type ItemProvider struct {
	Title      string
	Icon       *string
	Module     string
	Status     pluginapi.StatusSet
	ModuleInfo pluginapi.ModuleInfo
}

// LibraryItem is the aggregated, multi-provider entry for one uuid
// (spec.md §3). Details is immutable after the item is first created: a
// later insert by another provider never overwrites it.
type LibraryItem struct {
	UUID           string
	Name           string
	Kind           pluginapi.ItemKind
	Details        pluginapi.LibraryItemDetails
	Providers      map[string]*ItemProvider
	ActiveProvider string
}
