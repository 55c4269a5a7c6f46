package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocalities(t *testing.T) {
	t.Parallel()

	t.Run("direction with admin trail", func(t *testing.T) {
		t.Parallel()
		nodes := ParseLocalities("5 mi W of Ellensburg, Kittitas County, Washington")
		require.Len(t, nodes, 3)

		assert.Equal(t, KindDirection, nodes[0].Kind())
		d, ok := Unwrap(nodes[0]).(*Direction)
		require.True(t, ok)
		assert.Equal(t, "Ellensburg", d.Feature)
		assert.Equal(t, "W", d.Bearing)

		assert.Equal(t, "Kittitas County", nodes[1].Name())
		assert.Equal(t, "Washington", nodes[2].Name())
	})

	t.Run("longer phrase wins over contained phrase", func(t *testing.T) {
		t.Parallel()
		nodes := ParseLocalities("5 mi W of Ellensburg")
		require.Len(t, nodes, 1)
		assert.Equal(t, KindDirection, nodes[0].Kind())
		assert.Equal(t, "5 mi W of Ellensburg", nodes[0].Verbatim())
	})

	t.Run("plss reference in noisy string", func(t *testing.T) {
		t.Parallel()
		nodes := ParseLocalities("NW 1/4 Sec. 7, T2N, R1E")
		require.Len(t, nodes, 1)
		assert.Equal(t, KindPLSS, nodes[0].Kind())
		assert.Equal(t, `"NW Sec. 7 T2N R1E"`, nodes[0].Name())
	})

	t.Run("measurements excluded", func(t *testing.T) {
		t.Parallel()
		nodes := ParseLocalities("Olympia, 500 ft")
		require.Len(t, nodes, 1)
		assert.Equal(t, "Olympia", nodes[0].Name())
	})

	t.Run("question mark marks uncertain", func(t *testing.T) {
		t.Parallel()
		nodes := ParseLocalities("Ellensburg?")
		require.Len(t, nodes, 1)
		u, ok := nodes[0].(*Uncertain)
		require.True(t, ok)
		assert.Equal(t, "Ellensburg?", u.Verbatim())
		assert.Equal(t, "Ellensburg", u.Name())
	})

	t.Run("between phrase", func(t *testing.T) {
		t.Parallel()
		nodes := ParseLocalities("Between Ellensburg and Kittitas")
		require.Len(t, nodes, 1)
		assert.Equal(t, KindBetween, nodes[0].Kind())
		assert.Equal(t, []string{"Ellensburg", "Kittitas"}, nodes[0].FeatureNames())
	})

	t.Run("simple fallback", func(t *testing.T) {
		t.Parallel()
		nodes := ParseLocalities("old quarry near the creek")
		require.Len(t, nodes, 1)
		assert.Equal(t, KindSimple, nodes[0].Kind())
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, ParseLocalities(""))
		assert.Empty(t, ParseLocalities("   "))
	})

	t.Run("results ordered by position", func(t *testing.T) {
		t.Parallel()
		nodes := ParseLocalities("Tampico, 5 mi W of Ellensburg")
		require.NotEmpty(t, nodes)
		assert.Equal(t, "Tampico", nodes[0].Name())
	})
}

func TestParseLocalitiesNonOverlapping(t *testing.T) {
	t.Parallel()

	// Accepted spans never overlap in the cleaned string.
	for _, val := range []string{
		"5 mi W of Ellensburg, Kittitas County, Washington",
		"Tampico, 5 mi W of Ellensburg",
		"NW 1/4 Sec. 7, T2N, R1E, Kittitas County",
	} {
		nodes := ParseLocalities(val)
		cleaned := CleanLocality(val)
		used := make([]bool, len(cleaned))
		for _, node := range nodes {
			verbatim := CleanLocality(node.Verbatim())
			i := indexOf(cleaned, verbatim)
			require.GreaterOrEqual(t, i, 0, "%s: %s", val, verbatim)
			for j := i; j < i+len(verbatim); j++ {
				assert.False(t, used[j], "%s: overlap at %d", val, j)
				used[j] = true
			}
		}
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestLeftover(t *testing.T) {
	t.Parallel()

	t.Run("unparsed residue", func(t *testing.T) {
		t.Parallel()
		val := "5 mi W of Ellensburg, unspecified swamp"
		nodes := ParseLocalities(val)
		assert.Equal(t, "unspecified swamp", Leftover(val, nodes))
	})

	t.Run("fully consumed", func(t *testing.T) {
		t.Parallel()
		val := "5 mi W of Ellensburg"
		nodes := ParseLocalities(val)
		assert.Empty(t, Leftover(val, nodes))
	})

	t.Run("measurement text remains", func(t *testing.T) {
		t.Parallel()
		val := "Olympia, 500 ft"
		nodes := ParseLocalities(val)
		assert.Equal(t, "500 ft", Leftover(val, nodes))
	})
}

func TestRoundTripNames(t *testing.T) {
	t.Parallel()

	// Reparsing a node's canonical name yields the same reading.
	for _, val := range []string{
		"1 km N of Ellensburg",
		"Between Ellensburg and Kittitas",
		"Kittitas County",
	} {
		nodes := ParseLocalities(val)
		require.Len(t, nodes, 1, val)
		again := ParseLocalities(nodes[0].Name())
		require.Len(t, again, 1, val)
		assert.Equal(t, nodes[0].Name(), again[0].Name(), val)
	}
}
