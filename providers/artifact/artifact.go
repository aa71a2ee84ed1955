// Package artifact persists the documents and chart tables produced by
// capabilities. Text goes to plain files; charts are written as xlsx
// workbooks with excelize, one column per dataset.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultDir is used when no directory is configured.
const DefaultDir = "output_docs"

// DefaultName is used for documents saved without a file name.
const DefaultName = "untitled_document.txt"

// ErrInvalidName is returned for names that cannot be made safe.
var ErrInvalidName = errors.New("invalid artifact name")

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}._\- ]+`)

// Artifact describes a persisted file.
type Artifact struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
}

// Dataset is one series of a chart.
type Dataset struct {
	Label           string `json:"label"`
	Data            []any  `json:"data"`
	BorderColor     string `json:"borderColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Type            string `json:"type,omitempty"`
	Fill            *bool  `json:"fill,omitempty"`
	BorderDash      []int  `json:"borderDash,omitempty"`
}

// Chart is the chart payload produced by the analysis capabilities. Labels
// are the x axis; every dataset has one value per label.
type Chart struct {
	Type     string    `json:"type"`
	Title    string    `json:"title"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Store writes artifacts below a directory.
type Store struct {
	dir string
}

// New creates dir if needed and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// SaveText writes content as a text document. The extension of name is kept
// when present; otherwise ".txt" is added.
func (s *Store) SaveText(ctx context.Context, name, content string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	fileName, err := SafeName(name, ".txt")
	if err != nil {
		return Artifact{}, err
	}

	path := filepath.Join(s.dir, fileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write %s: %w", fileName, err)
	}
	return s.describe(fileName, path, strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// SaveChart writes chart as an xlsx workbook with a header row of dataset
// labels and one row per chart label.
func (s *Store) SaveChart(ctx context.Context, name string, chart Chart) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = chart.Title
	}
	base, err := SafeName(strings.TrimSuffix(name, filepath.Ext(name)), "")
	if err != nil {
		return Artifact{}, err
	}
	fileName := base + ".xlsx"

	workbook := excelize.NewFile()
	defer func() { _ = workbook.Close() }()

	sheet := sheetName(chart.Title)
	if err := workbook.SetSheetName("Sheet1", sheet); err != nil {
		return Artifact{}, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, 0, len(chart.Datasets)+1)
	header = append(header, "label")
	for _, dataset := range chart.Datasets {
		header = append(header, dataset.Label)
	}
	if err := workbook.SetSheetRow(sheet, "A1", &header); err != nil {
		return Artifact{}, fmt.Errorf("write header: %w", err)
	}

	for rowIndex, label := range chart.Labels {
		row := make([]any, 0, len(chart.Datasets)+1)
		row = append(row, label)
		for _, dataset := range chart.Datasets {
			var value any
			if rowIndex < len(dataset.Data) {
				value = dataset.Data[rowIndex]
			}
			row = append(row, value)
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIndex+2)
		if err != nil {
			return Artifact{}, err
		}
		if err := workbook.SetSheetRow(sheet, cell, &row); err != nil {
			return Artifact{}, fmt.Errorf("write row %d: %w", rowIndex+2, err)
		}
	}

	path := filepath.Join(s.dir, fileName)
	if err := workbook.SaveAs(path); err != nil {
		return Artifact{}, fmt.Errorf("save %s: %w", fileName, err)
	}
	return s.describe(fileName, path, "xlsx")
}

func (s *Store) describe(name, path, format string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: name, Path: path, Format: format, Size: info.Size()}, nil
}

// SafeName reduces name to a plain file name without directories or unsafe
// characters, appending defaultExt when it has no extension.
func SafeName(name, defaultExt string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	base = strings.TrimSpace(unsafeChars.ReplaceAllString(base, "_"))
	base = strings.Trim(base, ".")
	if base == "" || base == "_" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if defaultExt != "" && filepath.Ext(base) == "" {
		base += defaultExt
	}
	return base, nil
}

// sheetName fits a title into Excel's 31 character sheet name limit.
func sheetName(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if cleaned == "" {
		return "data"
	}
	runes := []rune(cleaned)
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return string(runes)
}
