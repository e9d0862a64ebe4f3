// Package export writes the journal log as a spreadsheet or markdown.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sandeepkv93/nagd/internal/model"
)

type Format string

const (
	FormatXLSX     Format = "xlsx"
	FormatMarkdown Format = "md"

	SheetName = "Journal"
)

var ErrUnknownFormat = errors.New("export: unknown format")

func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

func Write(w io.Writer, format Format, entries []model.JournalEntry) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, entries)
	case FormatMarkdown:
		return WriteMarkdown(w, entries)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

var xlsxColumns = []struct {
	header string
	width  float64
}{
	{"Date", 12},
	{"Source", 10},
	{"Written", 20},
	{"Entry", 100},
}

// WriteXLSX streams one row per entry into a single sheet.
func WriteXLSX(w io.Writer, entries []model.JournalEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top"},
	})
	if err != nil {
		return err
	}
	textStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return err
	}

	headers := make([]interface{}, len(xlsxColumns))
	for i, col := range xlsxColumns {
		if err := sw.SetColWidth(i+1, i+1, col.width); err != nil {
			return err
		}
		headers[i] = excelize.Cell{Value: col.header, StyleID: headerStyle}
	}
	cell, _ := excelize.CoordinatesToCellName(1, 1)
	if err := sw.SetRow(cell, headers); err != nil {
		return err
	}

	for i, e := range entries {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, []interface{}{
			e.DateKey(),
			string(e.Source),
			e.CreatedAt.Format(time.DateTime),
			excelize.Cell{Value: e.Text, StyleID: textStyle},
		}); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

func WriteMarkdown(w io.Writer, entries []model.JournalEntry) error {
	_, err := io.WriteString(w, Markdown(entries))
	return err
}

// Markdown renders entries under one heading per day, oldest first.
func Markdown(entries []model.JournalEntry) string {
	var b strings.Builder
	b.WriteString("# Journal\n")
	if len(entries) == 0 {
		b.WriteString("\n_No entries yet._\n")
		return b.String()
	}
	lastDate := ""
	for _, e := range entries {
		if key := e.DateKey(); key != lastDate {
			fmt.Fprintf(&b, "\n## %s\n", key)
			lastDate = key
		}
		fmt.Fprintf(&b, "\n%s\n\n_%s, %s_\n", strings.TrimSpace(e.Text), e.Source, e.CreatedAt.Format("15:04"))
	}
	return b.String()
}
