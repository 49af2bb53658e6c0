// Package species moves recordings into per-species folders named by eBird code.
package species

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/observability/metrics"
)

// GetLogger returns the species package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("species")
}

// Metadata CSV columns
const (
	colFilename   = "filename"
	colEBirdCode  = "Species eBird Code"
	nameSeparator = " - "
)

// Result counts the outcome of a bucketing run
type Result struct {
	Moved   int
	Skipped int // rows or files without a usable species code or source file
	Failed  int // moves that returned an error
}

// ParsedName holds the parts of a "XC123 - Common Name - Genus species" file name
type ParsedName struct {
	ID         string
	Common     string
	Scientific string // first two words of the third part
}

// ParseFilename splits a xeno-canto style file name
func ParseFilename(name string) (ParsedName, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(base, nameSeparator)
	if len(parts) < 3 {
		return ParsedName{}, fmt.Errorf("file name %q does not have the form '<id> - <common> - <scientific>'", name)
	}

	words := strings.Fields(parts[2])
	if len(words) < 2 {
		return ParsedName{}, fmt.Errorf("file name %q has no binomial scientific name", name)
	}

	return ParsedName{
		ID:         strings.TrimSpace(parts[0]),
		Common:     strings.TrimSpace(parts[1]),
		Scientific: words[0] + " " + words[1],
	}, nil
}

type mover struct {
	root     string
	recorder metrics.Recorder
	log      logger.Logger
	result   Result
}

// move puts <root>/<name> into <root>/<code>/<name>
func (m *mover) move(name, code string) {
	src := filepath.Join(m.root, name)
	if _, err := os.Stat(src); err != nil {
		m.log.Debug("source file not found", logger.String("file", name))
		m.result.Skipped++
		return
	}

	dir := filepath.Join(m.root, code)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.log.Error("failed to create species folder", logger.String("path", dir), logger.Error(err))
		m.recorder.RecordError(metrics.OpFileMove, string(errors.CategoryFileIO))
		m.result.Failed++
		return
	}

	start := time.Now()
	if err := conf.MoveFile(src, filepath.Join(dir, filepath.Base(name))); err != nil {
		m.log.Error("error moving file", logger.String("file", src), logger.Error(err))
		m.recorder.RecordError(metrics.OpFileMove, string(errors.CategoryFileIO))
		m.result.Failed++
		return
	}
	m.recorder.RecordOperation(metrics.OpFileMove, metrics.StatusSuccess)
	m.recorder.RecordDuration(metrics.OpFileMove, time.Since(start).Seconds())
	m.result.Moved++
}

// FromMetadata moves every file listed in metadataCSV into the folder named by
// its "Species eBird Code". Rows without a code or without the file are skipped.
func FromMetadata(ctx context.Context, root, metadataCSV string, recorder metrics.Recorder) (Result, error) {
	table, err := dataset.ReadTable(metadataCSV)
	if err != nil {
		return Result{}, err
	}
	cols, err := table.RequireColumns(colFilename, colEBirdCode)
	if err != nil {
		return Result{}, err
	}

	m := &mover{root: root, recorder: metrics.OrNoop(recorder), log: GetLogger()}
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return m.result, err
		}
		name, code := dataset.Field(row, cols[0]), dataset.Field(row, cols[1])
		if name == "" || code == "" {
			m.result.Skipped++
			continue
		}
		m.move(name, code)
	}

	m.log.Info("species folders generated from metadata",
		logger.Int("moved", m.result.Moved),
		logger.Int("skipped", m.result.Skipped),
		logger.Int("failed", m.result.Failed))
	return m.result, nil
}

// FromFilename moves top-level files with extension ext into species folders
// derived from their names. The scientific name is looked up first, the common
// name second.
func FromFilename(ctx context.Context, root string, taxonomy *Taxonomy, ext string, recorder metrics.Recorder) (Result, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Result{}, errors.New(err).
			Component("species").
			Category(errors.CategoryFileIO).
			FileContext(root, 0).
			Build()
	}

	ext = "." + strings.TrimPrefix(ext, ".")
	m := &mover{root: root, recorder: metrics.OrNoop(recorder), log: GetLogger()}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return m.result, err
		}
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}

		parsed, err := ParseFilename(e.Name())
		if err != nil {
			m.log.Warn("skipping file with unparseable name", logger.String("file", e.Name()), logger.Error(err))
			m.result.Skipped++
			continue
		}

		code, ok := taxonomy.Lookup(parsed.Scientific)
		if !ok {
			code, ok = taxonomy.LookupCommon(parsed.Common)
		}
		if !ok {
			m.log.Warn("species not found in taxonomy",
				logger.String("file", e.Name()),
				logger.String("scientific_name", parsed.Scientific))
			m.result.Skipped++
			continue
		}
		m.move(e.Name(), code)
	}

	m.log.Info("species folders generated from file names",
		logger.Int("moved", m.result.Moved),
		logger.Int("skipped", m.result.Skipped),
		logger.Int("failed", m.result.Failed))
	return m.result, nil
}
