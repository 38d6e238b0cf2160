package review

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewDateRejectsImpossibleDates(t *testing.T) {
	t.Parallel()

	_, err := NewDate(2024, time.February, 31)
	require.Error(t, err)

	d, err := NewDate(2024, time.February, 29)
	require.NoError(t, err)
	require.Equal(t, "2024-02-29", d.String())
}

func TestDateJSON(t *testing.T) {
	t.Parallel()

	d, err := NewDate(2025, time.September, 26)
	require.NoError(t, err)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `"2025-09-26"`, string(data))

	var back Date
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, d, back)

	require.Error(t, json.Unmarshal([]byte(`"26.09.2025"`), &back))
}

func TestMinimalReviewSerializesAbsentFieldsAsNull(t *testing.T) {
	t.Parallel()

	rev := New(7, "https://example.com/rezi.php?show=7")
	rev.Artist = "A"
	rev.Album = "B"
	rev.Text = "C"

	data, err := json.Marshal(rev)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, key := range []string{"title", "author", "release_date", "release_year", "rating", "user_rating", "total_duration", "raw_html"} {
		require.Contains(t, raw, key)
		require.Nil(t, raw[key], "field %s", key)
	}
	for _, key := range []string{"labels", "tracklist", "highlights", "references"} {
		require.Equal(t, []any{}, raw[key], "field %s", key)
	}
	require.Equal(t, float64(7), raw["id"])
}

func TestNormalizeFillsNilCollections(t *testing.T) {
	t.Parallel()

	var rev Review
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"url":"u","artist":"a","album":"b","text":"t"}`), &rev))
	rev.Normalize()

	require.NotNil(t, rev.Labels)
	require.NotNil(t, rev.Tracklist)
	require.NotNil(t, rev.Highlights)
	require.NotNil(t, rev.References)
	require.NotNil(t, rev.Extra)
}

func TestMissingCoreFields(t *testing.T) {
	t.Parallel()

	rev := New(1, "u")
	require.Equal(t, []string{"artist", "album", "text"}, rev.MissingCoreFields())

	rev.Artist = "A"
	rev.Album = "B"
	rev.Text = "C"
	require.Empty(t, rev.MissingCoreFields())
}
