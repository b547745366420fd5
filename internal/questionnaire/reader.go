package questionnaire

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Reader loads questionnaire definitions from disk. Every read goes to the
// file; only the JSON decode is skipped when the bytes hash to the same
// digest as the previous read of that path.
type Reader struct {
	mu      sync.Mutex
	entries map[string]cachedDefinition
}

type cachedDefinition struct {
	digest     [sha256.Size]byte
	definition Definition
}

func NewReader() *Reader {
	return &Reader{entries: make(map[string]cachedDefinition)}
}

// Read returns the definition stored at path.
//
// An empty path and a missing file both yield (nil, nil); the latter tells
// callers that the questionnaire was deleted. Content that is not valid
// JSON yields an error wrapping ErrMalformedDefinition.
func (r *Reader) Read(path string) (*Definition, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.forget(path)
			return nil, nil
		}
		return nil, fmt.Errorf("read questionnaire file %s: %w", path, err)
	}

	digest := sha256.Sum256(data)
	if def, ok := r.lookup(path, digest); ok {
		return &def, nil
	}

	def, err := ParseDefinition(data)
	if err != nil {
		r.forget(path)
		return nil, fmt.Errorf("parse questionnaire file %s: %w", path, err)
	}

	r.store(path, digest, def)

	return &def, nil
}

func (r *Reader) lookup(path string, digest [sha256.Size]byte) (Definition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cached, ok := r.entries[path]
	if !ok || cached.digest != digest {
		return Definition{}, false
	}
	return cloneDefinition(cached.definition), true
}

func (r *Reader) store(path string, digest [sha256.Size]byte, def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[path] = cachedDefinition{
		digest:     digest,
		definition: cloneDefinition(def),
	}
}

func (r *Reader) forget(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, path)
}

func cloneDefinition(def Definition) Definition {
	questions := make([]Question, len(def.Questions))
	for i, q := range def.Questions {
		if q.Options != nil {
			q.Options = append([]string(nil), q.Options...)
		}
		if q.Answer != nil {
			q.Answer = append(AnswerKey{}, q.Answer...)
		}
		if q.Points != nil {
			points := *q.Points
			q.Points = &points
		}
		questions[i] = q
	}
	def.Questions = questions
	return def
}

// Item is one directory member found by Scan.
type Item struct {
	Path   string
	IsFile bool
}

// Scanner discovers questionnaire files below a root directory.
type Scanner struct{}

func NewScanner() *Scanner {
	return &Scanner{}
}

// Scan lists the direct members of dir sorted by name.
func (s *Scanner) Scan(dir string) ([]Item, error) {
	members, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read questionnaire directory %s: %w", dir, err)
	}

	items := make([]Item, 0, len(members))
	for _, member := range members {
		path := filepath.Join(dir, member.Name())

		// Stat follows symlinks, matching how the file will later be read.
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		if !info.Mode().IsRegular() && !info.IsDir() {
			continue
		}

		items = append(items, Item{Path: path, IsFile: info.Mode().IsRegular()})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Path < items[j].Path
	})

	return items, nil
}

// Walk returns every regular file anywhere below dir. No extension
// filtering happens here; parsing decides what is a questionnaire.
func (s *Scanner) Walk(dir string) ([]string, error) {
	items, err := s.Scan(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, item := range items {
		if item.IsFile {
			files = append(files, item.Path)
			continue
		}

		nested, err := s.Walk(item.Path)
		if err != nil {
			return nil, err
		}
		files = append(files, nested...)
	}

	return files, nil
}
