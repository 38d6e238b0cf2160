// Package parser turns raw review-page HTML into structured Review records.
//
// Extraction is best-effort: any single field that cannot be extracted is
// left empty, and only the final gate on the required fields (artist, album,
// text) makes the whole page unusable.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/musicreview/scraper/internal/review"
)

// ErrNoContainer means the page has no recognizable content container, so
// its structure is not a review page at all.
var ErrNoContainer = errors.New("no review container found")

// MissingFieldsError reports a page whose structure was recognized but whose
// required fields were empty after extraction.
type MissingFieldsError struct {
	ID     int
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("review %d is missing required fields: %s", e.ID, strings.Join(e.Fields, ", "))
}

var (
	labelSeparators = regexp.MustCompile(`[/,;]`)
	fullDatePattern = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	bareYearPattern = regexp.MustCompile(`\b(\d{4})\b`)
	ratingPattern   = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)`)
	timePattern     = regexp.MustCompile(`\d{1,3}:\d{2}`)
)

// Rating paragraphs carry a marker word distinguishing the site's own score
// from the reader aggregate.
const (
	siteRatingMarker = "Unsere"
	userRatingMarker = "Eure"
)

// Parser extracts Review records from review pages.
type Parser struct {
	baseURL string
}

// New builds a Parser. baseURL is used for the canonical record URL.
func New(baseURL string) *Parser {
	if baseURL == "" {
		baseURL = "https://www.plattentests.de/rezi.php"
	}
	return &Parser{baseURL: baseURL}
}

// Parse extracts a Review from one page. It returns ErrNoContainer when the
// content structure is unrecognized and a *MissingFieldsError when a required
// field is empty; both are expected, non-fatal outcomes.
func (p *Parser) Parse(id int, rawHTML string) (*review.Review, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html for review %d: %w", id, err)
	}

	container := doc.Find("div#rezension").First()
	if container.Length() == 0 {
		return nil, ErrNoContainer
	}

	rev := review.New(id, fmt.Sprintf("%s?show=%d", p.baseURL, id))

	p.parseHeader(container, rev)
	p.parseTextBlock(container, rev)
	p.parseTracklist(container, rev)
	rev.References = parseReferences(container)
	markHighlights(rev)

	if missing := rev.MissingCoreFields(); len(missing) > 0 {
		return nil, &MissingFieldsError{ID: id, Fields: missing}
	}
	return rev, nil
}

// parseHeader fills artist, album, labels, release date/year and both
// ratings from the header box containing the main heading.
func (p *Parser) parseHeader(container *goquery.Selection, rev *review.Review) {
	box := findHeaderBox(container)
	if box == nil {
		return
	}

	rev.Artist, rev.Album = parseArtistAlbum(box)
	rev.Labels, rev.ReleaseDate, rev.ReleaseYear = parseLabelAndRelease(box)
	rev.Rating, rev.UserRating = parseRatings(box)
}

// findHeaderBox returns the first header box that contains the main <h1>.
func findHeaderBox(container *goquery.Selection) *goquery.Selection {
	var box *goquery.Selection
	container.Find("div.headerbox").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Find("h1").Length() > 0 {
			box = s
			return false
		}
		return true
	})
	return box
}

// parseArtistAlbum splits the heading "Artist - Album" on the first " - ".
// Without a separator the whole heading is the album and artist stays unset.
func parseArtistAlbum(box *goquery.Selection) (artist, album string) {
	heading := box.Find("h1").First()
	if heading.Length() == 0 {
		return "", ""
	}
	text := cleanText(heading.Text())
	if text == "" {
		return "", ""
	}
	if before, after, found := strings.Cut(text, " - "); found {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return "", text
}

// parseLabelAndRelease reads the first non-rating paragraph of the header
// box. Its first text line holds the label(s); the remaining lines may hold
// a release date or bare year, e.g. "Sony <br>VÖ: 26.09.2025".
func parseLabelAndRelease(box *goquery.Selection) ([]string, *review.Date, *int) {
	labels := []string{}

	var infoP *goquery.Selection
	box.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("bewertung") {
			return true
		}
		infoP = s
		return false
	})
	if infoP == nil {
		return labels, nil, nil
	}

	parts := strippedStrings(infoP)
	if len(parts) == 0 {
		return labels, nil, nil
	}

	labels = splitLabels(parts[0])

	var (
		relDate *review.Date
		relYear *int
	)
	for _, part := range parts[1:] {
		d, y := extractDateAndYear(part)
		if d != nil {
			relDate = d
		}
		if y != nil {
			relYear = y
		}
	}
	// The year is derived from a full date when one parsed.
	if relDate != nil {
		year := relDate.Year
		relYear = &year
	}
	return labels, relDate, relYear
}

// parseRatings extracts the site score and the reader aggregate from the
// rating paragraphs. The value is the leading decimal of the emphasized
// "N/10" text; "." and "," both work as decimal separators.
func parseRatings(box *goquery.Selection) (rating, userRating *float64) {
	box.Find("p.bewertung").Each(func(_ int, s *goquery.Selection) {
		strong := s.Find("strong").First()
		if strong.Length() == 0 {
			return
		}
		value := parseRatingValue(cleanText(strong.Text()))
		if value == nil {
			return
		}
		text := cleanText(s.Text())
		switch {
		case strings.Contains(text, siteRatingMarker):
			rating = value
		case strings.Contains(text, userRatingMarker):
			userRating = value
		}
	})
	return rating, userRating
}

// parseTextBlock fills title, author and the review body. The body is every
// non-author paragraph joined with blank lines.
func (p *Parser) parseTextBlock(container *goquery.Selection, rev *review.Review) {
	textDiv := container.Find("div#rezitext").First()
	if textDiv.Length() == 0 {
		return
	}

	if title := cleanText(textDiv.Find("h2").First().Text()); title != "" {
		rev.Title = &title
	}

	authorP := textDiv.Find("p.autor").First()
	if authorP.Length() > 0 {
		if author := strings.TrimSpace(strings.Trim(cleanText(authorP.Text()), "() ")); author != "" {
			rev.Author = &author
		}
	}

	var paragraphs []string
	textDiv.Find("p").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("autor") {
			return
		}
		if text := cleanText(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	rev.Text = strings.Join(paragraphs, "\n\n")
}

// parseTracklist fills the ordered tracklist, the highlights list and the
// total duration. Multi-disc albums nest an <ol> per disc inside the
// top-level <ul> items; numbering continues across discs. Single-disc pages
// use a bare <ol>.
func (p *Parser) parseTracklist(container *goquery.Selection, rev *review.Review) {
	container.Find("div#rezihighlights li").Each(func(_ int, s *goquery.Selection) {
		if name := cleanText(s.Text()); name != "" {
			rev.Highlights = append(rev.Highlights, name)
		}
	})

	trackDiv := container.Find("div#rezitracklist").First()
	if trackDiv.Length() == 0 {
		return
	}

	if intro := trackDiv.Find("p").First(); intro.Length() > 0 {
		if m := timePattern.FindString(cleanText(intro.Text())); m != "" {
			rev.TotalDuration = &m
		}
	}

	number := 1
	appendTracks := func(ol *goquery.Selection) {
		ol.Find("li").Each(func(_ int, li *goquery.Selection) {
			title := cleanText(li.Text())
			if title == "" {
				return
			}
			rev.Tracklist = append(rev.Tracklist, review.Track{Number: number, Title: title})
			number++
		})
	}

	if ul := trackDiv.Find("ul").First(); ul.Length() > 0 {
		ul.ChildrenFiltered("li").Each(func(_ int, disc *goquery.Selection) {
			if ol := disc.Find("ol").First(); ol.Length() > 0 {
				appendTracks(ol)
			}
		})
		return
	}
	if ol := trackDiv.Find("ol").First(); ol.Length() > 0 {
		appendTracks(ol)
	}
}

// parseReferences collects the linked related-artist names, de-duplicated
// case-insensitively while preserving order.
func parseReferences(container *goquery.Selection) []string {
	refs := []string{}
	seen := map[string]struct{}{}
	container.Find("div#reziref a").Each(func(_ int, s *goquery.Selection) {
		name := cleanText(s.Text())
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		refs = append(refs, name)
	})
	return refs
}

// markHighlights flags every track whose title case-insensitively matches a
// highlights entry.
func markHighlights(rev *review.Review) {
	if len(rev.Tracklist) == 0 || len(rev.Highlights) == 0 {
		return
	}
	set := make(map[string]struct{}, len(rev.Highlights))
	for _, h := range rev.Highlights {
		set[strings.ToLower(h)] = struct{}{}
	}
	for i := range rev.Tracklist {
		if _, ok := set[strings.ToLower(rev.Tracklist[i].Title)]; ok {
			rev.Tracklist[i].IsHighlight = true
		}
	}
}

// splitLabels splits a label line like "Sony / Sub Label" on / , ; and
// trims the pieces.
func splitLabels(raw string) []string {
	parts := labelSeparators.Split(raw, -1)
	out := []string{}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// extractDateAndYear finds a d.m.yyyy date in the text, falling back to a
// bare 4-digit year. An impossible calendar date still yields its year.
func extractDateAndYear(text string) (*review.Date, *int) {
	if m := fullDatePattern.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		d, err := review.NewDate(year, time.Month(month), day)
		if err != nil {
			return nil, &year
		}
		return &d, &year
	}
	if m := bareYearPattern.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		return nil, &year
	}
	return nil, nil
}

// parseRatingValue parses values like "8/10" or "7,5/10"; anything without
// a leading number (e.g. "n/a") yields nil.
func parseRatingValue(raw string) *float64 {
	m := ratingPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil
	}
	return &value
}

// cleanText collapses all whitespace runs to single spaces and trims.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// strippedStrings returns the trimmed, non-empty text nodes of a selection
// in document order. Unlike cleanText it keeps text separated by markup
// (e.g. around <br>) as distinct entries.
func strippedStrings(s *goquery.Selection) []string {
	var out []string
	for _, node := range s.Nodes {
		collectTextNodes(node, &out)
	}
	return out
}

func collectTextNodes(n *html.Node, out *[]string) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*out = append(*out, text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectTextNodes(c, out)
	}
}
