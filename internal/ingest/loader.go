package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// defaultAllowedExtensions are the file types loaded when no allow-list is
// configured. Only plain-text formats; binary formats need an extractor
// registered via the config allow-list and a matching reader.
var defaultAllowedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// LoadResult reports what a directory load did.
type LoadResult struct {
	FilesLoaded  int
	FilesSkipped int
	FilesFailed  int
	TotalBytes   int64
	Duration     time.Duration
}

// Loader reads a corpus directory into tagged Documents.
//
// Per-file failures are logged and skip only that file; a load never aborts
// because one document is unreadable.
type Loader struct {
	tagger     *Tagger
	allowedExt map[string]bool
	logger     *slog.Logger
}

// NewLoader creates a Loader. extensions is the optional allow-list
// (e.g. [".txt", ".md"]); when empty the defaults are used.
func NewLoader(tagger *Tagger, extensions []string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}

	extMap := make(map[string]bool, len(extensions))
	if len(extensions) > 0 {
		for _, ext := range extensions {
			extMap[strings.ToLower(ext)] = true
		}
	} else {
		for k, v := range defaultAllowedExtensions {
			extMap[k] = v
		}
	}

	return &Loader{
		tagger:     tagger,
		allowedExt: extMap,
		logger:     logger,
	}
}

// LoadDirectory reads every allowed file directly under dir, resolves its
// access tag from the file name, and returns the tagged documents in
// deterministic (lexical) order.
func (l *Loader) LoadDirectory(dir string) ([]Document, *LoadResult, error) {
	startTime := time.Now()
	result := &LoadResult{}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving corpus directory: %w", err)
	}

	// os.Root confines reads to the corpus directory, so a symlink inside
	// it cannot pull in files from elsewhere.
	root, err := os.OpenRoot(absDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening corpus directory: %w", err)
	}
	defer func() {
		_ = root.Close()
	}()

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading corpus directory: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !l.allowedExt[ext] {
			result.FilesSkipped++
			continue
		}

		content, err := root.ReadFile(name)
		if err != nil {
			l.logger.Warn("skipping unreadable file", "file", name, "error", err)
			result.FilesFailed++
			continue
		}

		tag := l.tagger.Tag(name)
		level, err := l.tagger.catalog.Resolve(tag)
		if err != nil {
			// Unreachable when the Tagger was built against the same
			// catalog; treated as a per-file failure regardless.
			l.logger.Warn("skipping file with unresolvable tag", "file", name, "tag", tag, "error", err)
			result.FilesFailed++
			continue
		}

		l.logger.Debug("loaded document", "file", name, "tag", tag, "level", int(level))

		docs = append(docs, Document{
			SourceID:    name,
			AccessTag:   tag,
			AccessLevel: level,
			Text:        string(content),
		})
		result.FilesLoaded++
		result.TotalBytes += int64(len(content))
	}

	result.Duration = time.Since(startTime)
	return docs, result, nil
}
