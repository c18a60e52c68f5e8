package manifest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio"
)

// Record is one line of the manifest file: the last observed state of a
// single tracked file.
type Record struct {
	File string `json:"file"`
	MD5  string `json:"md5"`
	Size int64  `json:"size"`
}

// Manifest is the in-memory view of a manifest file. Records holds the last
// record seen per path; Seen counts how many lines mentioned each path, so
// that cleanup can report duplicate resolutions.
type Manifest struct {
	Records map[string]Record
	Seen    map[string]int
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{
		Records: make(map[string]Record),
		Seen:    make(map[string]int),
	}
}

// Load reads a manifest file line by line and folds it into a path-keyed
// mapping, later lines overwriting earlier ones for the same path. A missing
// file is treated as an empty manifest. Any line that does not parse as a
// record fails the load.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	m := New()

	scanner := bufio.NewScanner(f)
	// Allow for records with very long paths.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("malformed manifest line %d: %w", lineno, err)
		}

		m.Records[rec.File] = rec
		m.Seen[rec.File]++
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return m, nil
}

// Writer appends records to a manifest file, one JSON object per line. The
// underlying file is opened in append mode and never truncated.
type Writer struct {
	f *os.File
}

// NewWriter opens (or creates) the manifest file for appending.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest for append: %w", err)
	}
	return &Writer{f: f}, nil
}

// Append serializes a record and writes it as a single line.
func (w *Writer) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize record for %s: %w", rec.File, err)
	}
	data = append(data, '\n')

	if _, err := w.f.Write(data); err != nil {
		return fmt.Errorf("failed to append record for %s: %w", rec.File, err)
	}
	return nil
}

// Close closes the underlying manifest file.
func (w *Writer) Close() error {
	return w.f.Close()
}

// Rewrite replaces the manifest file with exactly one line per record, in map
// iteration order. The replacement is atomic: the new content is written to a
// temporary file and renamed into place, so a crash mid-rewrite cannot leave
// a truncated manifest behind.
func Rewrite(path string, records map[string]Record) error {
	var buf bytes.Buffer
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to serialize record for %s: %w", rec.File, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	if err := renameio.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to rewrite manifest: %w", err)
	}
	return nil
}
