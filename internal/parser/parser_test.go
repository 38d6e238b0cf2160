package parser

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/musicreview/scraper/internal/review"
)

const fullPage = `<!DOCTYPE html>
<html><body>
<div id="rezension">
  <div class="headerbox">
    <h1><a href="rezi.php?show=21235">Wilco - Cruel Country</a></h1>
    <p>dBpm / Sony <br>VÖ: 27.05.2022</p>
    <p class="bewertung b8">Unsere Bewertung: <strong>8/10</strong></p>
    <p class="bewertung b7">Eure &Oslash;-Bewertung: <strong>7,5/10</strong></p>
  </div>
  <div id="rezitext">
    <h2>American Abgrund</h2>
    <p>Erster Absatz der Rezension.</p>
    <p>Zweiter Absatz mit mehr Text.</p>
    <p class="autor">(Christian Schachinger)</p>
  </div>
  <div id="rezitracklist">
    <h4>Tracklist</h4>
    <p>Gesamtspielzeit: 77:35 min.</p>
    <ul>
      <li>CD 1
        <ol>
          <li>I Am My Mother</li>
          <li>Cruel Country</li>
        </ol>
      </li>
      <li>CD 2
        <ol>
          <li>The Universe</li>
        </ol>
      </li>
    </ul>
  </div>
  <div id="rezihighlights">
    <h4>Highlights</h4>
    <ul>
      <li>Cruel Country</li>
      <li>The Universe</li>
    </ul>
  </div>
  <div id="reziref">
    <h4>Referenzen</h4>
    <p>
      <a href="suche.php?q=tweedy">Tweedy</a>;
      <a href="suche.php?q=wilco">Wilco</a>;
      <a href="suche.php?q=tweedy2">tweedy</a>
    </p>
  </div>
</div>
</body></html>`

func TestParseFullPage(t *testing.T) {
	t.Parallel()

	p := New("https://www.plattentests.de/rezi.php")
	rev, err := p.Parse(21235, fullPage)
	require.NoError(t, err)
	require.NotNil(t, rev)

	require.Equal(t, 21235, rev.ID)
	require.Equal(t, "https://www.plattentests.de/rezi.php?show=21235", rev.URL)
	require.Equal(t, "Wilco", rev.Artist)
	require.Equal(t, "Cruel Country", rev.Album)
	require.Equal(t, []string{"dBpm", "Sony"}, rev.Labels)

	wantDate, err := review.NewDate(2022, time.May, 27)
	require.NoError(t, err)
	require.NotNil(t, rev.ReleaseDate)
	require.Equal(t, wantDate, *rev.ReleaseDate)
	require.NotNil(t, rev.ReleaseYear)
	require.Equal(t, 2022, *rev.ReleaseYear)

	require.NotNil(t, rev.Rating)
	require.InDelta(t, 8.0, *rev.Rating, 1e-9)
	require.NotNil(t, rev.UserRating)
	require.InDelta(t, 7.5, *rev.UserRating, 1e-9)

	require.NotNil(t, rev.Title)
	require.Equal(t, "American Abgrund", *rev.Title)
	require.NotNil(t, rev.Author)
	require.Equal(t, "Christian Schachinger", *rev.Author)
	require.Equal(t, "Erster Absatz der Rezension.\n\nZweiter Absatz mit mehr Text.", rev.Text)

	require.NotNil(t, rev.TotalDuration)
	require.Equal(t, "77:35", *rev.TotalDuration)

	// Numbering continues across disc boundaries.
	require.Equal(t, []review.Track{
		{Number: 1, Title: "I Am My Mother"},
		{Number: 2, Title: "Cruel Country", IsHighlight: true},
		{Number: 3, Title: "The Universe", IsHighlight: true},
	}, rev.Tracklist)
	require.Equal(t, []string{"Cruel Country", "The Universe"}, rev.Highlights)

	// References are case-insensitively de-duplicated, order preserved.
	require.Equal(t, []string{"Tweedy", "Wilco"}, rev.References)

	require.Nil(t, rev.RawHTML)
}

func TestParseNoContainer(t *testing.T) {
	t.Parallel()

	p := New("")
	_, err := p.Parse(1, `<html><body><div id="other">nix</div></body></html>`)
	require.ErrorIs(t, err, ErrNoContainer)
}

func minimalPage(heading, text string) string {
	return fmt.Sprintf(`<div id="rezension">
  <div class="headerbox"><h1>%s</h1></div>
  <div id="rezitext"><p>%s</p></div>
</div>`, heading, text)
}

func TestParseGateRejectsMissingArtist(t *testing.T) {
	t.Parallel()

	p := New("")
	_, err := p.Parse(1, minimalPage("Test", "Test review"))

	var missing *MissingFieldsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"artist"}, missing.Fields)
}

func TestParseGateRejectsEmptyText(t *testing.T) {
	t.Parallel()

	p := New("")
	_, err := p.Parse(1, minimalPage("A - B", ""))

	var missing *MissingFieldsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"text"}, missing.Fields)
}

func TestParseMinimalValidReview(t *testing.T) {
	t.Parallel()

	p := New("")
	rev, err := p.Parse(9, minimalPage("A - B", "C"))
	require.NoError(t, err)

	require.Equal(t, "A", rev.Artist)
	require.Equal(t, "B", rev.Album)
	require.Equal(t, "C", rev.Text)
	require.Nil(t, rev.Title)
	require.Nil(t, rev.Author)
	require.Nil(t, rev.ReleaseDate)
	require.Nil(t, rev.ReleaseYear)
	require.Nil(t, rev.Rating)
	require.Nil(t, rev.UserRating)
	require.Nil(t, rev.TotalDuration)
	require.Empty(t, rev.Labels)
	require.Empty(t, rev.Tracklist)
	require.Empty(t, rev.Highlights)
	require.Empty(t, rev.References)
}

func TestParseHeadingWithoutSeparatorIsAlbumOnly(t *testing.T) {
	t.Parallel()

	p := New("")
	_, err := p.Parse(1, minimalPage("Selbstbetitelt", "Text"))

	var missing *MissingFieldsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"artist"}, missing.Fields)
}

func TestParseSingleListTracklist(t *testing.T) {
	t.Parallel()

	page := `<div id="rezension">
  <div class="headerbox"><h1>A - B</h1></div>
  <div id="rezitext"><p>Text</p></div>
  <div id="rezitracklist">
    <p>Gesamtspielzeit: 42:10 min.</p>
    <ol>
      <li>Intro</li>
      <li>Main Event</li>
    </ol>
  </div>
  <div id="rezihighlights"><ul><li>MAIN EVENT</li></ul></div>
</div>`

	p := New("")
	rev, err := p.Parse(1, page)
	require.NoError(t, err)

	require.Equal(t, []review.Track{
		{Number: 1, Title: "Intro"},
		{Number: 2, Title: "Main Event", IsHighlight: true},
	}, rev.Tracklist)
	require.NotNil(t, rev.TotalDuration)
	require.Equal(t, "42:10", *rev.TotalDuration)
}

func TestParseBareYearFallback(t *testing.T) {
	t.Parallel()

	page := `<div id="rezension">
  <div class="headerbox">
    <h1>A - B</h1>
    <p>Label <br>VÖ: 1997</p>
  </div>
  <div id="rezitext"><p>Text</p></div>
</div>`

	p := New("")
	rev, err := p.Parse(1, page)
	require.NoError(t, err)

	require.Nil(t, rev.ReleaseDate)
	require.NotNil(t, rev.ReleaseYear)
	require.Equal(t, 1997, *rev.ReleaseYear)
}

func TestParseImpossibleDateKeepsYear(t *testing.T) {
	t.Parallel()

	page := `<div id="rezension">
  <div class="headerbox">
    <h1>A - B</h1>
    <p>Label <br>VÖ: 31.02.2020</p>
  </div>
  <div id="rezitext"><p>Text</p></div>
</div>`

	p := New("")
	rev, err := p.Parse(1, page)
	require.NoError(t, err)

	require.Nil(t, rev.ReleaseDate)
	require.NotNil(t, rev.ReleaseYear)
	require.Equal(t, 2020, *rev.ReleaseYear)
}

func TestParseRatingValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want *float64
	}{
		{"8/10", ptr(8.0)},
		{"7,5/10", ptr(7.5)},
		{"9.5/10", ptr(9.5)},
		{"n/a", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := parseRatingValue(tc.raw)
		if tc.want == nil {
			require.Nil(t, got, "input %q", tc.raw)
			continue
		}
		require.NotNil(t, got, "input %q", tc.raw)
		require.InDelta(t, *tc.want, *got, 1e-9, "input %q", tc.raw)
	}
}

func TestSplitLabels(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"Sony", "Sub Label"}, splitLabels("Sony / Sub Label"))
	require.Equal(t, []string{"A", "B", "C"}, splitLabels("A,B;C"))
	require.Empty(t, splitLabels(" / "))
}

func ptr[T any](v T) *T {
	return &v
}
