package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/tasklist/internal/tasks"
	"github.com/jung-kurt/gofpdf"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

var ErrUnknownFormat = errors.New("unknown export format")

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Lister is the read side of the task store.
type Lister interface {
	List(filter tasks.Filter) []tasks.Task
}

type Exporter struct{ store Lister }

func NewExporter(store Lister) *Exporter { return &Exporter{store: store} }

func (e *Exporter) Export(filter tasks.Filter, format Format) ([]byte, error) {
	return Render(e.store.List(filter), format)
}

// Render encodes list in the requested format. JSON uses the same record
// shape as the persisted collection.
func Render(list []tasks.Task, format Format) ([]byte, error) {
	if list == nil {
		list = []tasks.Task{}
	}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(list, "", "  ")
	case FormatCSV:
		var b bytes.Buffer
		w := csv.NewWriter(&b)
		_ = w.Write([]string{"id", "text", "completed", "createdAt"})
		for _, t := range list {
			_ = w.Write([]string{t.ID, t.Text, strconv.FormatBool(t.Completed), t.CreatedAt.UTC().Format(time.RFC3339)})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	case FormatPDF:
		return renderPDF(list)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderPDF(list []tasks.Task) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Task List")
	pdf.Ln(12)

	remaining := 0
	for _, t := range list {
		if !t.Completed {
			remaining++
		}
	}
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("%d tasks, %d remaining", len(list), remaining))
	pdf.Ln(8)

	for _, t := range list {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s  (%s)", mark, tr(t.Text), t.CreatedAt.UTC().Format("2006-01-02 15:04"))
		pdf.MultiCell(0, 6, line, "0", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
