package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

// Loader extracts plain text from stored source files, dispatching on the
// file extension. Each file yields one RawDocument so chunk indices stay
// unique per (owner, tag).
type Loader struct{}

func New() *Loader {
	return &Loader{}
}

func (l *Loader) Load(ctx context.Context, path string, metadata map[string]any) ([]domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	var (
		content string
		err     error
	)
	switch ext {
	case ".txt", ".md":
		content, err = loadText(path)
	case ".pdf":
		content, err = loadPDF(path)
	case ".xlsx":
		content, err = loadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported source file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["source_file"] = filepath.Base(path)

	return []domain.RawDocument{{Content: content, Metadata: meta}}, nil
}

func loadText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("file %s is not valid utf-8 text", filepath.Base(path))
	}
	return strings.TrimSpace(string(raw)), nil
}

func loadPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	raw, err := io.ReadAll(textReader)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// loadXLSX renders every sheet as markdown-ish rows so headers survive
// chunking. The first row of each sheet is treated as the header row.
func loadXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## %s\n", sheet)

		header := rows[0]
		for _, row := range rows[1:] {
			var parts []string
			for i, cell := range row {
				cell = strings.TrimSpace(cell)
				if cell == "" {
					continue
				}
				if i < len(header) && strings.TrimSpace(header[i]) != "" {
					parts = append(parts, fmt.Sprintf("%s: %s", strings.TrimSpace(header[i]), cell))
				} else {
					parts = append(parts, cell)
				}
			}
			if len(parts) > 0 {
				sb.WriteString(strings.Join(parts, ", "))
				sb.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
