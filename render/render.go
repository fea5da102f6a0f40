// Package render paints lattice snapshots. It sits outside the simulation
// engine and consumes only models.Snapshot.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"time"

	"github.com/TFMV/schelling/models"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// OutputOptions defines rendering configuration options
type OutputOptions struct {
	Format         string  // Output format (ascii, svg, png, json)
	CellSize       int     // Pixels per site (svg, png)
	Background     string  // Background color
	NoiseIntensity float64 // Shading noise (0.0-1.0), svg and png only
	NoiseSeed      int64   // Seed of the shading noise
	Title          string  // Caption, e.g. unsatisfied count and surface
	Timestamp      bool    // Include timestamp in output
	Palette        Palette // Colors per state
}

// Palette maps each state to a hex color
type Palette struct {
	Positive string
	Negative string
	Empty    string
}

// DefaultPalette paints positive agents blue, negative agents red and empty
// sites pale green.
func DefaultPalette() Palette {
	return Palette{
		Positive: "#4040EC",
		Negative: "#EC4040",
		Empty:    "#C9F7C9",
	}
}

// Color returns the hex color of s
func (p Palette) Color(s models.State) string {
	switch s {
	case models.Positive:
		return p.Positive
	case models.Negative:
		return p.Negative
	default:
		return p.Empty
	}
}

// Renderer interface defines methods that all rendering backends must implement
type Renderer interface {
	// Render creates a picture of the snapshot using the provided options
	Render(snap *models.Snapshot, options *OutputOptions) ([]byte, error)

	// Name returns the name of the renderer
	Name() string

	// Description returns a description of the renderer
	Description() string
}

// NewDefaultOptions creates a default set of output options
func NewDefaultOptions(format string) *OutputOptions {
	return &OutputOptions{
		Format:     format,
		CellSize:   10,
		Background: "#FFFFFF",
		Timestamp:  false,
		Palette:    DefaultPalette(),
	}
}

// GetRenderer returns the appropriate renderer based on format
func GetRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "ascii", "txt":
		return &ASCIIRenderer{}, nil
	case "svg":
		return &SVGRenderer{}, nil
	case "png":
		return &PNGRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Extension returns the file extension conventionally used for format
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "ascii", "txt":
		return ".txt"
	default:
		return "." + strings.ToLower(format)
	}
}

// Generate renders snap in the given format with default options
func Generate(snap *models.Snapshot, format string) ([]byte, error) {
	renderer, err := GetRenderer(format)
	if err != nil {
		return nil, err
	}
	return renderer.Render(snap, NewDefaultOptions(format))
}

func checkSnapshot(snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	return snap.Validate()
}

// ASCII symbols per state; ingest.ParseASCII reads the same alphabet
const (
	SymbolPositive = '+'
	SymbolNegative = '-'
	SymbolEmpty    = '.'
)

// Symbol returns the ASCII symbol of s
func Symbol(s models.State) rune {
	switch s {
	case models.Positive:
		return SymbolPositive
	case models.Negative:
		return SymbolNegative
	default:
		return SymbolEmpty
	}
}

// ASCIIRenderer outputs one character per site
type ASCIIRenderer struct{}

// Name returns the name of the renderer
func (r *ASCIIRenderer) Name() string {
	return "ASCII Renderer"
}

// Description returns a description of the renderer
func (r *ASCIIRenderer) Description() string {
	return "Renders the lattice as text, one character per site, for terminals and logs"
}

// Render creates an ASCII representation of the lattice
func (r *ASCIIRenderer) Render(snap *models.Snapshot, options *OutputOptions) ([]byte, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}

	var result strings.Builder
	if options != nil && options.Title != "" {
		result.WriteString("# ")
		result.WriteString(options.Title)
		result.WriteRune('\n')
	}
	for _, row := range snap.Rows() {
		for _, s := range row {
			result.WriteRune(Symbol(s))
		}
		result.WriteRune('\n')
	}
	if options != nil && options.Timestamp {
		result.WriteString("# ")
		result.WriteString(time.Now().Format("2006-01-02 15:04"))
		result.WriteRune('\n')
	}
	return []byte(result.String()), nil
}

// SVGRenderer outputs SVG format
type SVGRenderer struct{}

// Name returns the name of the renderer
func (r *SVGRenderer) Name() string {
	return "SVG Renderer"
}

// Description returns a description of the renderer
func (r *SVGRenderer) Description() string {
	return "Renders the lattice as Scalable Vector Graphics, one square per site"
}

// Render creates an SVG representation of the lattice
func (r *SVGRenderer) Render(snap *models.Snapshot, options *OutputOptions) ([]byte, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}
	options = withDefaults(options, "svg")
	shade := newShader(options)

	cell := options.CellSize
	side := cell * snap.Size
	height := side
	if options.Title != "" {
		height += 20
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg width="%d" height="%d" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
`, side, height, side, height, options.Background))

	for row := 0; row < snap.Size; row++ {
		for col := 0; col < snap.Size; col++ {
			r, g, b := parseHexColor(options.Palette.Color(snap.At(row, col)))
			r, g, b = shade(row, col, r, g, b)
			buf.WriteString(fmt.Sprintf(`<rect x="%d" y="%d" width="%d" height="%d" fill="#%02X%02X%02X"/>
`, col*cell, row*cell, cell, cell, r, g, b))
		}
	}

	if options.Title != "" {
		buf.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-family="sans-serif" font-size="12" fill="#333333" text-anchor="middle">%s</text>
`, side/2, side+15, escapeXML(options.Title)))
	}
	if options.Timestamp {
		buf.WriteString(fmt.Sprintf(`<!-- %s -->
`, time.Now().Format("2006-01-02 15:04:05")))
	}

	buf.WriteString(`</svg>`)
	return buf.Bytes(), nil
}

// PNGRenderer rasterises the lattice into a PNG image
type PNGRenderer struct{}

// Name returns the name of the renderer
func (r *PNGRenderer) Name() string {
	return "PNG Renderer"
}

// Description returns a description of the renderer
func (r *PNGRenderer) Description() string {
	return "Renders the lattice as a PNG image, one square block per site"
}

// Render creates a PNG image of the lattice
func (r *PNGRenderer) Render(snap *models.Snapshot, options *OutputOptions) ([]byte, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}
	options = withDefaults(options, "png")
	shade := newShader(options)

	cell := options.CellSize
	img := image.NewRGBA(image.Rect(0, 0, cell*snap.Size, cell*snap.Size))
	for row := 0; row < snap.Size; row++ {
		for col := 0; col < snap.Size; col++ {
			r, g, b := parseHexColor(options.Palette.Color(snap.At(row, col)))
			r, g, b = shade(row, col, r, g, b)
			c := color.RGBA{R: r, G: g, B: b, A: 255}
			for y := row * cell; y < (row+1)*cell; y++ {
				for x := col * cell; x < (col+1)*cell; x++ {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encoding failed: %w", err)
	}
	return buf.Bytes(), nil
}

// JSONRenderer outputs the snapshot as JSON for custom front ends
type JSONRenderer struct{}

// Name returns the name of the renderer
func (r *JSONRenderer) Name() string {
	return "JSON Renderer"
}

// Description returns a description of the renderer
func (r *JSONRenderer) Description() string {
	return "Renders the lattice as JSON rows of state names for machine consumption"
}

// Render creates a JSON representation of the lattice
func (r *JSONRenderer) Render(snap *models.Snapshot, options *OutputOptions) ([]byte, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}

	type jsonLattice struct {
		Size     int                    `json:"size"`
		Rows     []string               `json:"rows"`
		Counts   models.Counts          `json:"counts"`
		Metadata map[string]interface{} `json:"metadata,omitempty"`
	}

	out := jsonLattice{
		Size:   snap.Size,
		Rows:   make([]string, 0, snap.Size),
		Counts: snap.Counts(),
	}
	for _, row := range snap.Rows() {
		var sb strings.Builder
		for _, s := range row {
			sb.WriteRune(Symbol(s))
		}
		out.Rows = append(out.Rows, sb.String())
	}
	if options != nil && (options.Title != "" || options.Timestamp) {
		out.Metadata = map[string]interface{}{}
		if options.Title != "" {
			out.Metadata["title"] = options.Title
		}
		if options.Timestamp {
			out.Metadata["timestamp"] = time.Now().Format(time.RFC3339)
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// Helper functions

func withDefaults(options *OutputOptions, format string) *OutputOptions {
	if options == nil {
		return NewDefaultOptions(format)
	}
	o := *options
	if o.CellSize <= 0 {
		o.CellSize = 10
	}
	if o.Background == "" {
		o.Background = "#FFFFFF"
	}
	if o.Palette == (Palette{}) {
		o.Palette = DefaultPalette()
	}
	return &o
}

type shader func(row, col int, r, g, b uint8) (uint8, uint8, uint8)

// newShader returns a brightness modulation driven by simplex noise sampled
// at each site. With zero intensity colors pass through unchanged.
func newShader(options *OutputOptions) shader {
	if options.NoiseIntensity <= 0 {
		return func(_, _ int, r, g, b uint8) (uint8, uint8, uint8) { return r, g, b }
	}
	noise := opensimplex.New(options.NoiseSeed)
	intensity := options.NoiseIntensity
	if intensity > 1 {
		intensity = 1
	}
	const scale = 0.15
	return func(row, col int, r, g, b uint8) (uint8, uint8, uint8) {
		// Eval2 is in [-1,1]; darken or lighten by up to 30% at full intensity
		f := 1 + noise.Eval2(float64(col)*scale, float64(row)*scale)*0.3*intensity
		return scaleChannel(r, f), scaleChannel(g, f), scaleChannel(b, f)
	}
}

func scaleChannel(c uint8, f float64) uint8 {
	return uint8(clamp(int(float64(c)*f+0.5), 0, 255))
}

// Parse a hex color string into RGB components
func parseHexColor(hex string) (uint8, uint8, uint8) {
	hex = strings.TrimPrefix(hex, "#")

	if len(hex) == 3 {
		r := parseHexDigit(hex[0])
		g := parseHexDigit(hex[1])
		b := parseHexDigit(hex[2])
		return r * 17, g * 17, b * 17 // Multiply by 17 to convert from 0-15 to 0-255
	} else if len(hex) >= 6 {
		return parseHexByte(hex[0:2]), parseHexByte(hex[2:4]), parseHexByte(hex[4:6])
	}

	// Default to black if invalid
	return 0, 0, 0
}

func parseHexDigit(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func parseHexByte(s string) uint8 {
	var result uint8
	for i := 0; i < len(s); i++ {
		result = result*16 + parseHexDigit(s[i])
	}
	return result
}

// Clamp a value between min and max
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
