package export

import (
	"encoding/json"
	"fmt"
)

// Render produces the document bytes for the requested format.
func Render(doc Document, format Format) (*Result, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal document: %w", err)
		}
		return &Result{
			Data:     data,
			Filename: sanitizeFilename(doc.Title) + ".json",
			MimeType: "application/json",
		}, nil
	case FormatHTML:
		html, err := RenderHTML(doc)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(doc.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		html, err := RenderHTML(doc)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return exportPDF(html, doc.Title)
	case FormatDOCX:
		html, err := RenderHTML(doc)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return exportDOCX(html, doc.Title)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
