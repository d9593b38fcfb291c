// Package importer loads tune files from a directory or a git
// repository into the local store through the normal mutation path, so
// imported tunes and annotations sync like any other edit.
package importer

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/conorfennell/tunequeue/internal/clock"
	"github.com/conorfennell/tunequeue/internal/domain"
	"github.com/conorfennell/tunequeue/internal/gitsource"
	"github.com/conorfennell/tunequeue/internal/storage"
	"github.com/conorfennell/tunequeue/internal/tunefile"
)

// Importer feeds parsed tune files into the store. Imported tunes are
// private to the importing user and enter the playlist's repertoire as
// explicit entries.
type Importer struct {
	store      *storage.DB
	clock      clock.Clock
	userID     string
	playlistID string
	logger     *slog.Logger
}

// New creates an Importer.
func New(store *storage.DB, clk clock.Clock, userID, playlistID string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, clock: clk, userID: userID, playlistID: playlistID, logger: logger}
}

// Stats summarizes one import run.
type Stats struct {
	Parsed   int
	Imported int
	Skipped  int
	Errors   []error
}

// ImportSource imports from a local directory or, when source looks
// like a git URL, from a clone kept under reposDir.
func (im *Importer) ImportSource(source, reposDir string) (Stats, error) {
	if isGitURL(source) {
		localPath, err := gitURLToLocalPath(reposDir, source)
		if err != nil {
			return Stats{}, err
		}
		if err := gitsource.Sync(source, localPath); err != nil {
			return Stats{}, fmt.Errorf("failed to sync git source: %w", err)
		}
		return im.ImportDir(localPath)
	}
	return im.ImportDir(source)
}

// ImportDir walks dir and imports every .tune or .md file found.
// Re-importing is idempotent: the content fingerprint is the tune id,
// so tunes already present are skipped.
func (im *Importer) ImportDir(dir string) (Stats, error) {
	var stats Stats

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isTuneFile(d.Name()) {
			return nil
		}
		tunes, parseErr := tunefile.ParseFile(path)
		if parseErr != nil {
			stats.Errors = append(stats.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		for _, t := range tunes {
			stats.Parsed++
			imported, importErr := im.importTune(t)
			if importErr != nil {
				stats.Errors = append(stats.Errors, fmt.Errorf("importing %q: %w", t.Title, importErr))
				continue
			}
			if imported {
				stats.Imported++
			} else {
				stats.Skipped++
			}
		}
		return nil
	})
	if walkErr != nil {
		return stats, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	im.logger.Info("import complete",
		"dir", dir, "parsed", stats.Parsed, "imported", stats.Imported,
		"skipped", stats.Skipped, "errors", len(stats.Errors))
	return stats, nil
}

func (im *Importer) importTune(t tunefile.Tune) (bool, error) {
	id := tunefile.Fingerprint(t)
	now := im.clock.Now()

	_, err := im.store.GetTune(id)
	if err == nil {
		return false, nil // already imported
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	tune := domain.Tune{
		ID:      id,
		Genre:   t.Genre,
		OwnerID: im.userID,
		Title:   t.Title,
	}
	if err := im.store.UpsertTune(tune, now); err != nil {
		return false, err
	}

	for i, content := range t.Notes {
		note := domain.Note{
			ID:           fmt.Sprintf("%s-n%d", id, i),
			TuneID:       id,
			DisplayOrder: i,
			Content:      content,
		}
		if err := im.store.UpsertNote(note, now); err != nil {
			return false, err
		}
	}
	for i, ref := range t.Refs {
		reference := domain.Reference{
			ID:           fmt.Sprintf("%s-r%d", id, i),
			TuneID:       id,
			DisplayOrder: i,
			URL:          ref,
		}
		if err := im.store.UpsertReference(reference, now); err != nil {
			return false, err
		}
	}

	entry := domain.RepertoireEntry{
		PlaylistID: im.playlistID,
		TuneID:     id,
		Explicit:   true,
	}
	if err := im.store.UpsertRepertoireEntry(entry, now); err != nil {
		return false, err
	}
	return true, nil
}

func isTuneFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".tune") || strings.HasSuffix(lower, ".md")
}

func isGitURL(source string) bool {
	return strings.HasSuffix(source, ".git") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://") ||
		strings.Contains(source, "@")
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-style git@host:path URLs don't parse as standard URLs.
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
