package rulestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticStoreGet(t *testing.T) {
	store := NewStaticStore([]RuleSet{
		{PresetID: "default", BaseRules: []string{"rule1"}},
		{PresetID: "sheet-metal", BaseRules: []string{"rule2"}},
	})

	set, err := store.Get(context.Background(), "sheet-metal")
	require.NoError(t, err)
	require.Equal(t, []string{"rule2"}, set.BaseRules)
}

func TestStaticStoreGetEmptyPresetDefaultsToDefault(t *testing.T) {
	store := NewStaticStore([]RuleSet{{PresetID: "default", BaseRules: []string{"rule1"}}})
	set, err := store.Get(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "default", set.PresetID)
}

func TestStaticStoreGetMissing(t *testing.T) {
	store := NewStaticStore([]RuleSet{{PresetID: "default"}})
	_, err := store.Get(context.Background(), "nonexistent")
	require.ErrorIs(t, err, ErrPresetNotFound)
}

func TestFilterRecipesByVersion(t *testing.T) {
	recipes := []Recipe{
		{Title: "legacy", MaxVersion: "1.9.0"},
		{Title: "current", MinVersion: "2.0.0", MaxVersion: "2.9.0"},
		{Title: "future", MinVersion: "3.0.0"},
	}
	filtered := FilterRecipesByVersion(recipes, "2.3.0")
	require.Len(t, filtered, 1)
	require.Equal(t, "current", filtered[0].Title)
}
