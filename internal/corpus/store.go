// Package corpus persists reviews as a JSONL file, one record per line.
//
// The store is the sole owner of identifier uniqueness within a corpus.
// Appends are crash-safe (each record is one complete line); full rewrites
// go through a temporary file and an atomic rename, so the real path is
// never touched until every record has been gathered. Concurrent writers
// against the same path are not supported.
package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/musicreview/scraper/internal/review"
)

// Review bodies with raw HTML captures can produce very long lines.
const maxLineBytes = 16 * 1024 * 1024

// Store reads and writes one JSONL corpus file.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore builds a Store for the given path. The file may not exist yet.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the corpus file path.
func (s *Store) Path() string {
	return s.path
}

// LoadIDs scans the corpus once and returns the set of identifiers present.
// A missing file is an empty corpus.
func (s *Store) LoadIDs() (map[int]struct{}, error) {
	ids := make(map[int]struct{})
	err := s.forEachLine(func(lineNo int, data []byte) {
		var probe struct {
			ID int `json:"id"`
		}
		if err := json.Unmarshal(data, &probe); err != nil || probe.ID <= 0 {
			s.warnMalformed(lineNo, err)
			return
		}
		ids[probe.ID] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Load reads the full corpus into an identifier-keyed map. Later lines
// overwrite earlier ones; malformed lines are logged and skipped.
func (s *Store) Load() (map[int]review.Review, error) {
	reviews := make(map[int]review.Review)
	err := s.forEachLine(func(lineNo int, data []byte) {
		var rev review.Review
		if err := json.Unmarshal(data, &rev); err != nil {
			s.warnMalformed(lineNo, err)
			return
		}
		if rev.ID <= 0 {
			s.warnMalformed(lineNo, errors.New("missing or non-positive id"))
			return
		}
		rev.Normalize()
		reviews[rev.ID] = rev
	})
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// Append writes one review as one complete line, creating the file and its
// directory as needed. A run interrupted between appends retains every
// record written so far.
func (s *Store) Append(rev review.Review) error {
	line, err := marshalLine(rev)
	if err != nil {
		return fmt.Errorf("encode review %d: %w", rev.ID, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open corpus %s: %w", s.path, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append review %d: %w", rev.ID, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close corpus %s: %w", s.path, err)
	}
	return nil
}

// WriteAll replaces the corpus with the given records sorted by identifier,
// via a temporary file and an atomic rename. On any failure the original
// file is left untouched.
func (s *Store) WriteAll(reviews map[int]review.Review) error {
	ids := make([]int, 0, len(reviews))
	for id := range reviews {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".reviews-*.jsonl")
	if err != nil {
		return fmt.Errorf("create temp corpus: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	w := bufio.NewWriter(tmp)
	for _, id := range ids {
		line, err := marshalLine(reviews[id])
		if err != nil {
			cleanup()
			return fmt.Errorf("encode review %d: %w", id, err)
		}
		if _, err := w.Write(line); err != nil {
			cleanup()
			return fmt.Errorf("write review %d: %w", id, err)
		}
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("flush temp corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp corpus: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace corpus %s: %w", s.path, err)
	}
	return nil
}

// NextID returns one past the highest identifier present, the natural
// starting point for a resumed run. An empty or missing corpus yields 1,
// regardless of gaps below the maximum.
func (s *Store) NextID() (int, error) {
	ids, err := s.LoadIDs()
	if err != nil {
		return 0, err
	}
	maxID := 0
	for id := range ids {
		if id > maxID {
			maxID = id
		}
	}
	return maxID + 1, nil
}

// forEachLine streams the corpus line by line, skipping empty lines.
// A missing file is not an error.
func (s *Store) forEachLine(fn func(lineNo int, data []byte)) error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open corpus %s: %w", s.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		fn(lineNo, data)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read corpus %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) warnMalformed(lineNo int, err error) {
	s.logger.Warn("skipping malformed corpus line",
		zap.String("path", s.path),
		zap.Int("line", lineNo),
		zap.Error(err),
	)
}

// marshalLine encodes one review as a single JSON line. HTML escaping is
// disabled so the stored text matches the page content byte for byte.
func marshalLine(rev review.Review) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rev); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
