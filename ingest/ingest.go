// Package ingest reads hand-built lattice layouts into snapshots.
// The engine can start from such a layout instead of a random draw.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TFMV/schelling/models"
	"github.com/TFMV/schelling/render"
)

// LayoutProcessor defines the interface that all layout readers must implement
type LayoutProcessor interface {
	// ProcessData takes raw data bytes and returns the lattice they describe
	ProcessData(data []byte) (*models.Snapshot, error)

	// GetName returns the name of the processor
	GetName() string
}

// ASCIIProcessor reads one line per row using the renderer's alphabet:
// '+' positive, '-' negative, '.' empty. Blank lines and lines starting
// with '#' are ignored, as is surrounding whitespace.
type ASCIIProcessor struct{}

// GetName returns the name of the processor
func (p *ASCIIProcessor) GetName() string {
	return "ASCII Processor"
}

// ProcessData parses an ASCII lattice
func (p *ASCIIProcessor) ProcessData(data []byte) (*models.Snapshot, error) {
	var rows [][]models.State
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		row := make([]models.State, 0, len(text))
		for _, ch := range text {
			s, err := stateFromSymbol(ch)
			if err != nil {
				// columns count runes, not bytes
				return nil, fmt.Errorf("line %d column %d: %w", line, len(row)+1, err)
			}
			row = append(row, s)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading layout: %w", err)
	}
	return fromRows(rows)
}

// ParseASCII is shorthand for (&ASCIIProcessor{}).ProcessData
func ParseASCII(data string) (*models.Snapshot, error) {
	return (&ASCIIProcessor{}).ProcessData([]byte(data))
}

// CSVProcessor reads comma separated state codes: 1 positive, -1 negative,
// 0 empty.
type CSVProcessor struct{}

// GetName returns the name of the processor
func (p *CSVProcessor) GetName() string {
	return "CSV Processor"
}

// ProcessData parses a CSV lattice
func (p *CSVProcessor) ProcessData(data []byte) (*models.Snapshot, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows [][]models.State
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing CSV: %w", err)
		}
		row := make([]models.State, 0, len(record))
		for col, field := range record {
			v, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", len(rows)+1, col+1, err)
			}
			s := models.State(v)
			if s != models.Positive && s != models.Negative && s != models.Empty {
				return nil, fmt.Errorf("row %d column %d: unknown state code %d", len(rows)+1, col+1, v)
			}
			row = append(row, s)
		}
		rows = append(rows, row)
	}
	return fromRows(rows)
}

// JSONProcessor reads the output of render.JSONRenderer
type JSONProcessor struct{}

// GetName returns the name of the processor
func (p *JSONProcessor) GetName() string {
	return "JSON Processor"
}

// ProcessData parses a JSON lattice
func (p *JSONProcessor) ProcessData(data []byte) (*models.Snapshot, error) {
	var doc struct {
		Size int      `json:"size"`
		Rows []string `json:"rows"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}
	snap, err := (&ASCIIProcessor{}).ProcessData([]byte(strings.Join(doc.Rows, "\n")))
	if err != nil {
		return nil, err
	}
	if doc.Size != 0 && doc.Size != snap.Size {
		return nil, fmt.Errorf("declared size %d does not match %d rows", doc.Size, snap.Size)
	}
	return snap, nil
}

// GetProcessor returns the appropriate processor for the given format
func GetProcessor(format string) (LayoutProcessor, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "ascii", "txt":
		return &ASCIIProcessor{}, nil
	case "csv":
		return &CSVProcessor{}, nil
	case "json":
		return &JSONProcessor{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// ProcessorForFile picks a processor from the file extension
func ProcessorForFile(name string) (LayoutProcessor, error) {
	return GetProcessor(filepath.Ext(name))
}

func stateFromSymbol(ch rune) (models.State, error) {
	switch ch {
	case render.SymbolPositive:
		return models.Positive, nil
	case render.SymbolNegative:
		return models.Negative, nil
	case render.SymbolEmpty:
		return models.Empty, nil
	default:
		return models.Empty, fmt.Errorf("unknown symbol %q", ch)
	}
}

func fromRows(rows [][]models.State) (*models.Snapshot, error) {
	size := len(rows)
	if size == 0 {
		return nil, fmt.Errorf("layout has no rows")
	}
	snap := models.NewSnapshot(size)
	for r, row := range rows {
		if len(row) != size {
			return nil, fmt.Errorf("row %d has %d sites, want %d for a square lattice", r+1, len(row), size)
		}
		copy(snap.States[r*size:], row)
	}
	return snap, nil
}
