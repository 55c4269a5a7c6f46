package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeature(t *testing.T) {
	t.Parallel()

	t.Run("bare name", func(t *testing.T) {
		t.Parallel()
		f, err := ParseFeature("Ellensburg", false)
		require.NoError(t, err)
		assert.Equal(t, "Ellensburg", f.Name())
		assert.Empty(t, f.FeatureKind())
		assert.False(t, f.Specific())
	})

	t.Run("classified land feature", func(t *testing.T) {
		t.Parallel()
		f, err := ParseFeature("Kittitas County", false)
		require.NoError(t, err)
		assert.Equal(t, "Kittitas County", f.Name())
		assert.Equal(t, "county", f.FeatureKind())
		assert.Equal(t, DomainLand, f.Domain())
		assert.True(t, f.Specific())
	})

	t.Run("classified marine feature", func(t *testing.T) {
		t.Parallel()
		f, err := ParseFeature("Puget Sound", false)
		require.NoError(t, err)
		assert.Equal(t, DomainMarine, f.Domain())
		assert.Equal(t, "sound", f.FeatureKind())
	})

	t.Run("leading type word", func(t *testing.T) {
		t.Parallel()
		f, err := ParseFeature("Lake Chelan", false)
		require.NoError(t, err)
		assert.Equal(t, "lake", f.FeatureKind())
	})

	t.Run("generic placeholder", func(t *testing.T) {
		t.Parallel()
		f, err := ParseFeature("city", true)
		require.NoError(t, err)
		assert.Equal(t, "{municipality}", f.Name())
		assert.False(t, f.Specific())
	})

	t.Run("rejections", func(t *testing.T) {
		t.Parallel()
		for _, val := range []string{
			"summit",
			"East Coast",
			"lowercase name",
			"12345",
			"river",
			"Ellensburg and",
			"with Ellensburg",
			"Border of Kittitas and King Counties",
		} {
			_, err := ParseFeature(val, false)
			assert.ErrorIs(t, err, ErrNotParseable, val)
		}
	})
}

func TestIsGenericFeature(t *testing.T) {
	t.Parallel()

	assert.True(t, IsGenericFeature("East Coast"))
	assert.True(t, IsGenericFeature("summit"))
	assert.True(t, IsGenericFeature("Northern side"))
	assert.False(t, IsGenericFeature("Ellensburg"))
	assert.False(t, IsGenericFeature("Puget Sound"))
}

func TestAppendFeatureType(t *testing.T) {
	t.Parallel()

	t.Run("type copied across conjoined names", func(t *testing.T) {
		t.Parallel()
		got := AppendFeatureType([]string{"Turks", "Caicos Islands"})
		assert.Equal(t, []string{"Turks Island", "Caicos Island"}, got)
	})

	t.Run("no trailing type word", func(t *testing.T) {
		t.Parallel()
		got := AppendFeatureType([]string{"Ellensburg", "Kittitas"})
		assert.Equal(t, []string{"Ellensburg", "Kittitas"}, got)
	})

	t.Run("earlier entry keeps its own type", func(t *testing.T) {
		t.Parallel()
		got := AppendFeatureType([]string{"Snake River", "Cascade Mountains"})
		assert.Equal(t, []string{"Snake River", "Cascade Mountains"}, got)
	})
}

func TestStripOfModifiers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Maine", StripOfModifiers("coast of Maine"))
	assert.Equal(t, "Lake Chelan", StripOfModifiers("head of Lake Chelan"))
	assert.Equal(t, "Ellensburg", StripOfModifiers("Ellensburg"))
}
