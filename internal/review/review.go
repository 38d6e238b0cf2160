// Package review defines the canonical record types persisted in the corpus.
// All boundary I/O (corpus files, parser output) converts through these types
// exactly once; there is no ad hoc JSON handling elsewhere.
package review

// Track is a single track on an album. Number is 1-based and continues
// across disc boundaries; zero means unknown.
type Track struct {
	Number      int     `json:"number"`
	Title       string  `json:"title"`
	Duration    *string `json:"duration"`
	IsHighlight bool    `json:"is_highlight"`
}

// Review is one scraped album review, keyed by the source's immutable
// numeric page identifier. Artist, album and text are required; everything
// else is optional and serializes as null (scalars) or [] (lists) when
// absent.
type Review struct {
	ID            int            `json:"id"`
	URL           string         `json:"url"`
	Artist        string         `json:"artist"`
	Album         string         `json:"album"`
	Text          string         `json:"text"`
	Title         *string        `json:"title"`
	Author        *string        `json:"author"`
	Labels        []string       `json:"labels"`
	ReleaseDate   *Date          `json:"release_date"`
	ReleaseYear   *int           `json:"release_year"`
	Rating        *float64       `json:"rating"`
	UserRating    *float64       `json:"user_rating"`
	Tracklist     []Track        `json:"tracklist"`
	Highlights    []string       `json:"highlights"`
	TotalDuration *string        `json:"total_duration"`
	References    []string       `json:"references"`
	RawHTML       *string        `json:"raw_html"`
	Extra         map[string]any `json:"extra"`
}

// New returns a Review with all list and map fields initialized, so a
// minimal record still serializes with [] and {} rather than null.
func New(id int, url string) *Review {
	return &Review{
		ID:         id,
		URL:        url,
		Labels:     []string{},
		Tracklist:  []Track{},
		Highlights: []string{},
		References: []string{},
		Extra:      map[string]any{},
	}
}

// Normalize replaces nil list/map fields with empty ones. Records decoded
// from older corpus lines may omit them entirely.
func (r *Review) Normalize() {
	if r.Labels == nil {
		r.Labels = []string{}
	}
	if r.Tracklist == nil {
		r.Tracklist = []Track{}
	}
	if r.Highlights == nil {
		r.Highlights = []string{}
	}
	if r.References == nil {
		r.References = []string{}
	}
	if r.Extra == nil {
		r.Extra = map[string]any{}
	}
}

// MissingCoreFields reports which of the required fields are empty.
// A review with any missing core field must never be persisted.
func (r *Review) MissingCoreFields() []string {
	var missing []string
	if r.Artist == "" {
		missing = append(missing, "artist")
	}
	if r.Album == "" {
		missing = append(missing, "album")
	}
	if r.Text == "" {
		missing = append(missing, "text")
	}
	return missing
}
