package compact

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/raebler/hashtrack/internal/manifest"
)

// Compactor runs the cleanup pipeline: it drops manifest entries whose file
// no longer exists, resolves repeated entries to the last record per path,
// and rewrites the manifest with at most one line per surviving path.
type Compactor struct {
	logger *slog.Logger
	dryRun bool
}

// New creates a compactor.
func New(logger *slog.Logger, dryRun bool) *Compactor {
	return &Compactor{logger: logger, dryRun: dryRun}
}

// Run loads the manifest at path, filters it against the filesystem and
// rewrites it in place. In dry-run mode the manifest is left untouched and
// the planned changes are only logged.
func (c *Compactor) Run(path string) error {
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}

	survivors := make(map[string]manifest.Record, len(m.Records))
	removed := 0
	for file, rec := range m.Records {
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				c.logger.Info("entry removed for deleted file", "path", file)
				removed++
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", file, err)
		}

		if n := m.Seen[file]; n > 1 {
			c.logger.Info("duplicate entry resolved", "path", file, "occurrences", n)
		}
		survivors[file] = rec
	}

	if c.dryRun {
		c.logger.Info("dry-run complete, manifest not rewritten",
			"kept", len(survivors),
			"removed", removed)
		return nil
	}

	if err := manifest.Rewrite(path, survivors); err != nil {
		return err
	}

	c.logger.Info("manifest compacted",
		"records", len(survivors),
		"removed", removed)
	return nil
}
