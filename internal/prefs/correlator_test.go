package prefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projekt-utopia/uCore/internal/pluginapi"
)

func ptr(s string) *string { return &s }

func TestRequestThenResolveRoundTrips(t *testing.T) {
	// spec.md §8 scenario 6
	c := New()
	evicted := c.Request("steam", pluginapi.ModuleScope(), "frontA", ptr("r9"))
	assert.False(t, evicted)
	assert.Equal(t, 1, c.Len())

	frontendID, correlationID, ok := c.Resolve("steam", pluginapi.ModuleScope())
	require.True(t, ok)
	assert.Equal(t, "frontA", frontendID)
	require.NotNil(t, correlationID)
	assert.Equal(t, "r9", *correlationID)
	assert.Equal(t, 0, c.Len())
}

func TestResolveWithNoOutstandingRequestIsDroppedSilently(t *testing.T) {
	c := New()
	_, _, ok := c.Resolve("steam", pluginapi.ItemScope("g1"))
	assert.False(t, ok)
}

func TestModuleAndItemScopesAreDistinctKeys(t *testing.T) {
	c := New()
	c.Request("steam", pluginapi.ModuleScope(), "frontA", nil)
	c.Request("steam", pluginapi.ItemScope("g1"), "frontB", nil)
	assert.Equal(t, 2, c.Len())

	frontendID, _, ok := c.Resolve("steam", pluginapi.ItemScope("g1"))
	require.True(t, ok)
	assert.Equal(t, "frontB", frontendID)
	assert.Equal(t, 1, c.Len())
}

func TestValidateUpdateSkipsWhenNoDialogRecorded(t *testing.T) {
	c := New()
	err := c.ValidateUpdate("steam", pluginapi.ModuleScope(), map[string]pluginapi.FieldValue{
		"f1": pluginapi.FieldValue(`true`),
	})
	assert.NoError(t, err)
}

func TestValidateUpdateRejectsUnknownField(t *testing.T) {
	c := New()
	c.RecordDialog("steam", pluginapi.ModuleScope(), pluginapi.Dialog{Panes: []pluginapi.Pane{{
		Groups: []pluginapi.Group{{Fields: []pluginapi.Field{
			{UUID: "f1", Type: pluginapi.FieldType{Kind: "Checkbox"}},
		}}},
	}}})

	err := c.ValidateUpdate("steam", pluginapi.ModuleScope(), map[string]pluginapi.FieldValue{
		"unknown": pluginapi.FieldValue(`true`),
	})
	assert.Error(t, err)
}

func TestValidateUpdateRejectsShapeMismatch(t *testing.T) {
	c := New()
	c.RecordDialog("steam", pluginapi.ModuleScope(), pluginapi.Dialog{Panes: []pluginapi.Pane{{
		Groups: []pluginapi.Group{{Fields: []pluginapi.Field{
			{UUID: "f1", Type: pluginapi.FieldType{Kind: "Checkbox"}},
		}}},
	}}})

	err := c.ValidateUpdate("steam", pluginapi.ModuleScope(), map[string]pluginapi.FieldValue{
		"f1": pluginapi.FieldValue(`"not a bool"`),
	})
	assert.Error(t, err)
}

func TestValidateUpdateAcceptsMatchingShape(t *testing.T) {
	c := New()
	c.RecordDialog("steam", pluginapi.ModuleScope(), pluginapi.Dialog{Panes: []pluginapi.Pane{{
		Groups: []pluginapi.Group{{Fields: []pluginapi.Field{
			{UUID: "f1", Type: pluginapi.FieldType{Kind: "Checkbox"}},
		}}},
	}}})

	err := c.ValidateUpdate("steam", pluginapi.ModuleScope(), map[string]pluginapi.FieldValue{
		"f1": pluginapi.FieldValue(`true`),
	})
	assert.NoError(t, err)
}

func TestSecondRequestForSameKeyEvictsFirst(t *testing.T) {
	c := New()
	evicted := c.Request("steam", pluginapi.ModuleScope(), "frontA", ptr("r1"))
	assert.False(t, evicted)

	evicted = c.Request("steam", pluginapi.ModuleScope(), "frontB", ptr("r2"))
	assert.True(t, evicted)

	frontendID, correlationID, ok := c.Resolve("steam", pluginapi.ModuleScope())
	require.True(t, ok)
	assert.Equal(t, "frontB", frontendID)
	assert.Equal(t, "r2", *correlationID)
}
