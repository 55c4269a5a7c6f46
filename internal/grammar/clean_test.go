package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanLocality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"all caps title cased", "MOUNT RAINIER NATL PARK", "Mount Rainier National Park"},
		{"diacritics folded", "Río Grande", "Rio Grande"},
		{"whitespace collapsed", "  Ellensburg,   Kittitas  Co ", "Ellensburg, Kittitas Co"},
		{"parenthetic question mark", "Ellensburg (?)", "Ellensburg?"},
		{"compass abbreviations", "N.W. of Tampico", "NW of Tampico"},
		{"thousands separator", "1,500 ft below rim", "1500 ft below rim"},
		{"circa dropped", "ca. 5 mi N of Olympia", "5 mi N of Olympia"},
		{"feet tick expanded", "summit, 500'", "summit, 500 ft"},
		{"national park expanded", "Olympic N.P.", "Olympic National Park"},
		{"sentence period becomes delimiter", "Ellensburg. Kittitas Co", "Ellensburg; Kittitas Co"},
		{"abbreviation period kept", "Mt. Rainier", "Mt. Rainier"},
		{"duplicate punctuation merged", "Ellensburg,, Washington", "Ellensburg, Washington"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CleanLocality(tc.in))
		})
	}
}

func TestStripDiacritics(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Canon de Anos", StripDiacritics("Cañon de Años"))
	assert.Equal(t, "plain ascii", StripDiacritics("plain ascii"))
}

func TestSingularPlural(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "county", singular("counties"))
	assert.Equal(t, "island", singular("islands"))
	assert.Equal(t, "pass", singular("pass"))
	assert.Equal(t, "marsh", singular("marshes"))

	assert.Equal(t, "counties", plural("county"))
	assert.Equal(t, "islands", plural("island"))
	assert.Equal(t, "marshes", plural("marsh"))
}

func TestOxfordComma(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", oxfordComma(nil))
	assert.Equal(t, "A", oxfordComma([]string{"A"}))
	assert.Equal(t, "A and B", oxfordComma([]string{"A", "B"}))
	assert.Equal(t, "A, B, and C", oxfordComma([]string{"A", "B", "C"}))
}
