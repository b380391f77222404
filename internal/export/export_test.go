package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleDocument() Document {
	return Document{
		OCGID:       "ocg_test",
		Title:       "Outside Counsel Guidelines",
		ClientName:  "Acme Corp",
		Version:     2,
		Status:      "NEGOTIATING",
		TotalPoints: 10,
		FirmName:    "Smith & Jones LLP",
		PointBudget: 5,
		PointsUsed:  2,
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Sections: []Section{
			{
				Title:        "Billing",
				IsNegotiable: true,
				Selected: &Alternative{
					Title:   "Monthly invoicing",
					Content: "Invoices are submitted monthly.",
					Points:  2,
				},
			},
			{
				Title:   "Staffing",
				Content: "Staffing changes require client approval.",
				Subsections: []Section{
					{Title: "Partners", Content: "Partner rates are fixed."},
				},
			},
		},
	}
}

func TestRenderHTMLIncludesSelectionsAndHierarchy(t *testing.T) {
	html, err := RenderHTML(sampleDocument())
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	for _, want := range []string{
		"Outside Counsel Guidelines",
		"Acme Corp",
		"Smith &amp; Jones LLP",
		"Monthly invoicing",
		"2 of 5 points used",
		"Partners",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered html missing %q", want)
		}
	}
	if !strings.Contains(html, `class="alternative selected"`) {
		t.Error("selected alternative not highlighted")
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	result, err := Render(sampleDocument(), FormatJSON)
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	if result.MimeType != "application/json" {
		t.Fatalf("unexpected mime type %s", result.MimeType)
	}
	var doc Document
	if err := json.Unmarshal(result.Data, &doc); err != nil {
		t.Fatalf("unmarshal rendered json: %v", err)
	}
	if doc.Title != "Outside Counsel Guidelines" || len(doc.Sections) != 2 {
		t.Fatalf("json render lost content: %+v", doc)
	}
}

func TestRenderHTMLFormat(t *testing.T) {
	result, err := Render(sampleDocument(), FormatHTML)
	if err != nil {
		t.Fatalf("render html format: %v", err)
	}
	if result.Filename != "Outside-Counsel-Guidelines.html" {
		t.Fatalf("unexpected filename %s", result.Filename)
	}
}

func TestParseFormatRejectsUnknown(t *testing.T) {
	if _, err := ParseFormat("xlsx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	for _, raw := range []string{"pdf", "html", "docx", "json"} {
		if _, err := ParseFormat(raw); err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", raw, err)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Outside Counsel Guidelines", "Outside-Counsel-Guidelines"},
		{"a/b\\c:d", "abcd"},
		{"", "ocg"},
	}
	for _, tc := range tests {
		if got := sanitizeFilename(tc.input); got != tc.expected {
			t.Errorf("sanitizeFilename(%q)=%q, want %q", tc.input, got, tc.expected)
		}
	}
}
