package scan

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/raebler/hashtrack/internal/manifest"
)

// Excludes filters paths out of a scan. File patterns are matched against the
// base name, directory patterns against the full directory path.
type Excludes struct {
	files []*regexp.Regexp
	dirs  []*regexp.Regexp
}

// NewExcludes compiles the given file and directory patterns.
func NewExcludes(files, dirs []string) (*Excludes, error) {
	ex := &Excludes{}
	for _, p := range files {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid file exclude pattern %q: %w", p, err)
		}
		ex.files = append(ex.files, re)
	}
	for _, p := range dirs {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid directory exclude pattern %q: %w", p, err)
		}
		ex.dirs = append(ex.dirs, re)
	}
	return ex, nil
}

// MatchFile reports whether a file base name is excluded.
func (e *Excludes) MatchFile(name string) bool {
	for _, re := range e.files {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// MatchDir reports whether a directory path is excluded.
func (e *Excludes) MatchDir(path string) bool {
	for _, re := range e.dirs {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Scanner runs the hashing pipeline: it walks a directory tree and appends a
// manifest record for every regular file that is new or whose size differs
// from the loaded manifest. Files whose size is unchanged are skipped without
// re-hashing; a file whose content changed but whose size did not is therefore
// not detected.
type Scanner struct {
	existing map[string]manifest.Record
	writer   *manifest.Writer
	excludes *Excludes
	logger   *slog.Logger
}

// New creates a scanner over the previously loaded manifest records.
func New(existing map[string]manifest.Record, writer *manifest.Writer, excludes *Excludes, logger *slog.Logger) *Scanner {
	return &Scanner{
		existing: existing,
		writer:   writer,
		excludes: excludes,
		logger:   logger,
	}
}

// Run walks the tree rooted at root. Records are appended as soon as they are
// computed, so a failure partway through leaves earlier appends intact.
func (s *Scanner) Run(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if s.excludes.MatchDir(path) {
				s.logger.Debug("skipping excluded directory", "path", path)
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if s.excludes.MatchFile(d.Name()) {
			s.logger.Debug("skipping excluded file", "path", path)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		prev, seen := s.existing[path]
		if seen && prev.Size == info.Size() {
			s.logger.Debug("size unchanged, skipping", "path", path)
			return nil
		}

		s.logger.Info("processing file", "path", path, "size", info.Size())

		sum, err := fileMD5(path)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}

		rec := manifest.Record{File: path, MD5: sum, Size: info.Size()}
		if err := s.writer.Append(rec); err != nil {
			return err
		}
		return nil
	})
}

// fileMD5 computes the hex MD5 digest of a file's contents.
func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
