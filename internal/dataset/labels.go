package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
)

// Column names shared by strong label and chunk CSV files.
const (
	ColInFile      = "IN FILE"
	ColStrongLabel = "STRONG LABEL"
	ColManualID    = "MANUAL ID"
	ColOffset      = "OFFSET"
	ColDuration    = "DURATION"
	ColClipLength  = "CLIP LENGTH"
	ColChunkIndex  = "CHUNK INDEX"
)

// StrongLabel is one annotated vocalization with start offset and duration in seconds.
type StrongLabel struct {
	File       string
	Label      string
	Offset     float64
	Duration   float64
	ClipLength float64 // 0 when unknown
}

// End returns the event end offset in seconds
func (l StrongLabel) End() float64 {
	return l.Offset + l.Duration
}

// ChunkRow is one fixed-duration window to cut out of a recording.
type ChunkRow struct {
	File     string
	Label    string
	Offset   float64 // chunk start in seconds
	Duration float64 // chunk duration in seconds
	Index    int     // 1-based per source file
}

// ReadStrongLabels parses a strong label CSV. Rows with unparseable numbers
// are skipped with a warning.
func ReadStrongLabels(path string) ([]StrongLabel, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, err
	}

	fileCol := table.Column(ColInFile)
	labelCol := table.Column(ColStrongLabel, ColManualID)
	offsetCol := table.Column(ColOffset)
	durationCol := table.Column(ColDuration)
	if fileCol < 0 || labelCol < 0 || offsetCol < 0 || durationCol < 0 {
		return nil, errors.Newf("strong label file %s needs %q, %q, %q and %q columns",
			filepath.Base(path), ColInFile, ColStrongLabel, ColOffset, ColDuration).
			Component("dataset").
			Category(errors.CategoryFileParsing).
			Build()
	}
	clipCol := table.Column(ColClipLength)

	log := GetLogger()
	labels := make([]StrongLabel, 0, len(table.Rows))
	for i, row := range table.Rows {
		offset, err1 := strconv.ParseFloat(Field(row, offsetCol), 64)
		duration, err2 := strconv.ParseFloat(Field(row, durationCol), 64)
		if err1 != nil || err2 != nil || duration < 0 {
			log.Warn("skipping strong label row with invalid timing",
				logger.Int("row", i+2),
				logger.String("file", Field(row, fileCol)))
			continue
		}

		var clipLength float64
		if s := Field(row, clipCol); s != "" {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				clipLength = v
			}
		}

		labels = append(labels, StrongLabel{
			File:       Field(row, fileCol),
			Label:      Field(row, labelCol),
			Offset:     offset,
			Duration:   duration,
			ClipLength: clipLength,
		})
	}
	return labels, nil
}

// ReadChunkRows parses a chunk CSV written by WriteChunkRows. Extra columns,
// such as a leading index column, are ignored. A missing CHUNK INDEX column
// is rebuilt as a per-file counter.
func ReadChunkRows(path string) ([]ChunkRow, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, err
	}

	cols, err := table.RequireColumns(ColInFile, ColOffset, ColDuration)
	if err != nil {
		return nil, err
	}
	labelCol := table.Column(ColStrongLabel, ColManualID)
	if labelCol < 0 {
		return nil, errors.Newf("missing required column %q", ColStrongLabel).
			Component("dataset").
			Category(errors.CategoryFileParsing).
			Build()
	}
	indexCol := table.Column(ColChunkIndex)

	log := GetLogger()
	rows := make([]ChunkRow, 0, len(table.Rows))
	var prevFile string
	var counter int
	for i, row := range table.Rows {
		offset, err1 := strconv.ParseFloat(Field(row, cols[1]), 64)
		duration, err2 := strconv.ParseFloat(Field(row, cols[2]), 64)
		if err1 != nil || err2 != nil {
			log.Warn("skipping chunk row with invalid timing", logger.Int("row", i+2))
			continue
		}

		file := Field(row, cols[0])
		if file != prevFile {
			prevFile = file
			counter = 0
		}
		counter++

		index := counter
		if s := Field(row, indexCol); s != "" {
			if v, err := strconv.Atoi(s); err == nil {
				index = v
			}
		}

		rows = append(rows, ChunkRow{
			File:     file,
			Label:    Field(row, labelCol),
			Offset:   offset,
			Duration: duration,
			Index:    index,
		})
	}
	return rows, nil
}

// WriteChunkRows writes rows as CSV to path
func WriteChunkRows(path string, rows []ChunkRow) (err error) {
	file, err := os.Create(path) //nolint:gosec // dataset path
	if err != nil {
		return errors.New(err).
			Component("dataset").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(file)
	if err := w.Write([]string{ColInFile, ColStrongLabel, ColOffset, ColDuration, ColChunkIndex}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.File,
			r.Label,
			strconv.FormatFloat(r.Offset, 'f', -1, 64),
			strconv.FormatFloat(r.Duration, 'f', -1, 64),
			strconv.Itoa(r.Index),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("error writing chunk row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
