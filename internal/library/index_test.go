package library

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projekt-utopia/uCore/internal/apperrors"
	"github.com/projekt-utopia/uCore/internal/pluginapi"
)

type staticInfos map[string]pluginapi.ModuleInfo

func (s staticInfos) ModuleInfoFor(pluginID string) (pluginapi.ModuleInfo, bool) {
	info, ok := s[pluginID]
	return info, ok
}

func TestInsertCreatesItemWithSoleProviderActive(t *testing.T) {
	idx := New()
	infos := staticInfos{"steam": {Name: "Steam", Developer: "Valve"}}

	err := idx.Insert("steam", pluginapi.ItemInsert{
		UUID: "g1", Name: "G", Kind: pluginapi.KindGame,
		Status: pluginapi.StatusSet{pluginapi.Unit(pluginapi.StatusInstalled)},
	}, infos)
	require.NoError(t, err)

	item, err := idx.Get("g1")
	require.NoError(t, err)
	assert.Equal(t, "steam", item.ActiveProvider)
	assert.Len(t, item.Providers, 1)
}

func TestInsertDualProviderDedup(t *testing.T) {
	// scenario 2 from spec.md §8
	idx := New()
	infos := staticInfos{
		"A": {Name: "PluginA", Developer: "dev"},
		"B": {Name: "PluginB", Developer: "dev"},
	}

	require.NoError(t, idx.Insert("A", pluginapi.ItemInsert{
		UUID: "g1", Name: "G", Kind: pluginapi.KindGame,
		Status: pluginapi.StatusSet{pluginapi.Unit(pluginapi.StatusInstalled)},
	}, infos))
	require.NoError(t, idx.Insert("B", pluginapi.ItemInsert{
		UUID: "g1", Name: "G", Kind: pluginapi.KindGame,
		Status: pluginapi.StatusSet{
			pluginapi.Unit(pluginapi.StatusInstalled),
			pluginapi.Unit(pluginapi.StatusUpdatable),
		},
	}, infos))

	snap, err := idx.SnapshotShort("g1")
	require.NoError(t, err)
	assert.Equal(t, "A", snap.ActiveProvider.UUID)
	require.Contains(t, snap.Providers, "A")
	require.Contains(t, snap.Providers, "B")
	assert.Len(t, snap.Providers["A"].Stati, 1)
	assert.Len(t, snap.Providers["B"].Stati, 2)
}

func TestChangeActiveRequiresExistingProvider(t *testing.T) {
	idx := New()
	infos := staticInfos{"A": {Name: "A", Developer: "d"}}
	require.NoError(t, idx.Insert("A", pluginapi.ItemInsert{UUID: "g1", Name: "G", Kind: pluginapi.KindGame}, infos))

	err := idx.ChangeActive("g1", "Z")
	assert.Error(t, err)

	require.NoError(t, idx.Insert("B", pluginapi.ItemInsert{UUID: "g1", Name: "G", Kind: pluginapi.KindGame}, infos))
	require.NoError(t, idx.ChangeActive("g1", "B"))

	snap, err := idx.SnapshotShort("g1")
	require.NoError(t, err)
	assert.Equal(t, "B", snap.ActiveProvider.UUID)
}

func TestUpdateStateAddRemoveIsIdempotentAndReversible(t *testing.T) {
	idx := New()
	infos := staticInfos{"A": {Name: "A", Developer: "d"}}
	require.NoError(t, idx.Insert("A", pluginapi.ItemInsert{UUID: "g1", Name: "G", Kind: pluginapi.KindGame}, infos))

	running := pluginapi.Running(4242)
	require.NoError(t, idx.UpdateState("g1", "A", OpAdd, running))
	require.NoError(t, idx.UpdateState("g1", "A", OpAdd, running)) // idempotent

	item, err := idx.Get("g1")
	require.NoError(t, err)
	assert.Len(t, item.Providers["A"].Status, 1)

	require.NoError(t, idx.UpdateState("g1", "A", OpRemove, running))
	require.NoError(t, idx.UpdateState("g1", "A", OpRemove, running)) // idempotent

	item, err = idx.Get("g1")
	require.NoError(t, err)
	assert.Empty(t, item.Providers["A"].Status)
}

func TestUpdateStateUnknownProvider(t *testing.T) {
	idx := New()
	infos := staticInfos{"A": {Name: "A", Developer: "d"}}
	require.NoError(t, idx.Insert("A", pluginapi.ItemInsert{UUID: "g1", Name: "G", Kind: pluginapi.KindGame}, infos))

	err := idx.UpdateState("g1", "Z", OpAdd, pluginapi.Unit(pluginapi.StatusInstalled))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrProviderNotFound))
}

func TestLaunchViaUnknownProvider(t *testing.T) {
	// scenario 5 from spec.md §8
	idx := New()
	infos := staticInfos{"A": {Name: "A", Developer: "d"}}
	require.NoError(t, idx.Insert("A", pluginapi.ItemInsert{UUID: "g1", Name: "G", Kind: pluginapi.KindGame}, infos))

	err := idx.LaunchVia("g1", "Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Z")
}
