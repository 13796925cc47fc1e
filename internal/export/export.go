// Package export writes the record collection to JSONL or Parquet files and
// reads it back.
package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/erazemk/findit/internal/model"
)

// File formats.
const (
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// maxLine bounds one JSONL record, which carries its image inline.
const maxLine = 16 << 20

// ErrInvalidRecord is returned by Import for records that cannot be loaded.
var ErrInvalidRecord = errors.New("invalid record")

// FormatFor picks the format from the file extension.
func FormatFor(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl", ".json", ".ndjson":
		return FormatJSONL, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported file format: %s (supported: .jsonl, .parquet)", ext)
	}
}

// WriteFile writes records to path in the format given by its extension.
func WriteFile(path string, records []model.Record) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}

	switch format {
	case FormatParquet:
		err = WriteParquet(f, records)
	default:
		err = WriteJSONL(f, records)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	slog.Info("export written", "path", path, "format", format, "records", len(records))
	return nil
}

// ReadFile reads and checks records from path.
func ReadFile(path string) ([]model.Record, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	var records []model.Record
	switch format {
	case FormatParquet:
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		records, err = ReadParquet(f, info.Size())
		if err != nil {
			return nil, err
		}
	default:
		records, err = ReadJSONL(f)
		if err != nil {
			return nil, err
		}
	}

	if err := Check(records); err != nil {
		return nil, err
	}
	slog.Info("import read", "path", path, "format", format, "records", len(records))
	return records, nil
}

// WriteJSONL writes one JSON record per line.
func WriteJSONL(w io.Writer, records []model.Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encoding record %s: %w", records[i].ID, err)
		}
	}
	return bw.Flush()
}

// ReadJSONL reads one JSON record per line, skipping blank lines.
func ReadJSONL(r io.Reader) ([]model.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	records := []model.Record{}
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var rec model.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading JSONL: %w", err)
	}
	return records, nil
}

// row is the Parquet schema of a record.
type row struct {
	ID          string   `parquet:"id"`
	Title       string   `parquet:"title"`
	Description string   `parquet:"description"`
	Location    string   `parquet:"location"`
	Contact     string   `parquet:"contact"`
	Tags        []string `parquet:"tags"`
	Status      string   `parquet:"status"`
	Image       []byte   `parquet:"image"`
	ImageMime   string   `parquet:"image_mime"`
	CreatedAtMs int64    `parquet:"created_at_ms"`
	UpdatedAtMs int64    `parquet:"updated_at_ms"`
}

func toRow(r *model.Record) row {
	return row{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Contact:     r.Contact,
		Tags:        r.Tags,
		Status:      r.Status,
		Image:       r.Image,
		ImageMime:   r.ImageMime,
		CreatedAtMs: r.CreatedAt.UnixMilli(),
		UpdatedAtMs: r.UpdatedAt.UnixMilli(),
	}
}

func (r *row) record() model.Record {
	return model.Record{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Contact:     r.Contact,
		Tags:        r.Tags,
		Status:      r.Status,
		Image:       r.Image,
		ImageMime:   r.ImageMime,
		CreatedAt:   time.UnixMilli(r.CreatedAtMs).UTC(),
		UpdatedAt:   time.UnixMilli(r.UpdatedAtMs).UTC(),
	}
}

// WriteParquet writes records as a single Parquet file.
func WriteParquet(w io.Writer, records []model.Record) error {
	rows := make([]row, len(records))
	for i := range records {
		rows[i] = toRow(&records[i])
	}

	pw := parquet.NewGenericWriter[row](w)
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("writing parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}

// ReadParquet reads every row of a Parquet file of the given size.
func ReadParquet(r io.ReaderAt, size int64) ([]model.Record, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[row](pf)
	defer reader.Close()

	records := make([]model.Record, 0, pf.NumRows())
	rows := make([]row, 128)
	for {
		n, err := reader.Read(rows)
		for i := range n {
			records = append(records, rows[i].record())
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading parquet rows: %w", err)
		}
	}
	return records, nil
}

// Check verifies that imported records have unique IDs and satisfy the same
// rules as submitted posts. Records without a status get the default.
func Check(records []model.Record) error {
	seen := make(map[string]bool, len(records))
	for i := range records {
		r := &records[i]
		switch {
		case r.ID == "":
			return fmt.Errorf("%w %d: missing id", ErrInvalidRecord, i+1)
		case seen[r.ID]:
			return fmt.Errorf("%w %d: duplicate id %s", ErrInvalidRecord, i+1, r.ID)
		}
		if r.Status == "" {
			r.Status = model.StatusFound
		}
		r.Tags = model.NormalizeTags(r.Tags)
		if err := model.ValidateRecord(r); err != nil {
			return fmt.Errorf("%w %s: %w", ErrInvalidRecord, r.ID, err)
		}
		seen[r.ID] = true
	}
	return nil
}
