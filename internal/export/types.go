// Package export renders assembled OCG documents to their
// distributable formats. It owns byte production only; the generator
// assembles the render context.
package export

import (
	"errors"
	"fmt"
	"time"
)

// Format is the export output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatDOCX Format = "docx"
	FormatJSON Format = "json"
)

// ParseFormat rejects anything outside the four supported formats.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatPDF, FormatHTML, FormatDOCX, FormatJSON:
		return Format(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
}

// Document is the fully assembled render context for one OCG, with a
// firm's selections merged in when the render is firm-specific.
type Document struct {
	OCGID       string    `json:"ocgId"`
	Title       string    `json:"title"`
	ClientName  string    `json:"clientName"`
	Version     int       `json:"version"`
	Status      string    `json:"status"`
	TotalPoints int       `json:"totalPoints"`
	FirmName    string    `json:"firmName,omitempty"`
	PointBudget int       `json:"pointBudget,omitempty"`
	PointsUsed  int       `json:"pointsUsed,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
	Sections    []Section `json:"sections"`
}

// Section mirrors one node of the OCG section tree. Selected is nil
// unless the render is firm-specific and the firm chose an alternative.
type Section struct {
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	IsNegotiable bool          `json:"isNegotiable"`
	Selected     *Alternative  `json:"selected,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Subsections  []Section     `json:"subsections,omitempty"`
}

// Alternative is one selectable variant in the render context.
type Alternative struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Points     int    `json:"points"`
	IsDefault  bool   `json:"isDefault"`
	IsSelected bool   `json:"isSelected"`
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates a format outside pdf/html/docx/json.
	ErrUnsupportedFormat = errors.New("export unsupported format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
