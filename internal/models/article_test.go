package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringListRoundTrip(t *testing.T) {
	list := StringList{"Economy", "Sports"}

	value, err := list.Value()
	require.NoError(t, err)

	var got StringList
	require.NoError(t, got.Scan(value))
	assert.Equal(t, list, got)
}

func TestStringListScanEmpty(t *testing.T) {
	var got StringList
	require.NoError(t, got.Scan(nil))
	assert.Empty(t, got)
}

func TestStringListContains(t *testing.T) {
	list := StringList{"Economy", "Sports"}
	assert.True(t, list.Contains("Sports"))
	assert.False(t, list.Contains("History"))
}

func TestNewArticleDefaults(t *testing.T) {
	a := NewArticle("hindu")
	assert.Equal(t, "hindu", a.Source)
	assert.Equal(t, StringList{CategoryGeneral}, a.Categories)
	assert.False(t, a.IsCurrentAffair)
	assert.Equal(t, CategoryGeneral, a.CurrentAffairsCategory)
	assert.False(t, a.QuestionsGenerationFailed)
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory("Economy"))
	assert.True(t, ValidCategory(CategoryGeneral))
	assert.False(t, ValidCategory("World"))
	assert.False(t, ValidCategory(""))
}
