package generator

import (
	"encoding/json"
	"fmt"
)

// Built-in template types. "custom" loads from a caller-supplied path
// instead of the templates directory.
const (
	TemplateLegal      = "legal"
	TemplateFinancial  = "financial"
	TemplateHealthcare = "healthcare"
	TemplateTechnology = "technology"
	TemplateGeneric    = "generic"
	TemplateCustom     = "custom"
)

// Template is the JSON structure a guideline document is seeded from.
// It carries no database identifiers, so a saved template can be applied
// to any client.
type Template struct {
	Name                   string            `json:"name"`
	Description            string            `json:"description,omitempty"`
	TotalPoints            int               `json:"totalPoints,omitempty"`
	DefaultFirmPointBudget *int              `json:"defaultFirmPointBudget,omitempty"`
	Sections               []TemplateSection `json:"sections"`
}

// TemplateSection is one node of a template's section tree.
type TemplateSection struct {
	Title        string                `json:"title"`
	Content      string                `json:"content"`
	IsNegotiable bool                  `json:"isNegotiable,omitempty"`
	Alternatives []TemplateAlternative `json:"alternatives,omitempty"`
	Subsections  []TemplateSection     `json:"subsections,omitempty"`
}

// TemplateAlternative is one priced variant within a template section.
type TemplateAlternative struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Points    int    `json:"points"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

func parseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if t.Name == "" {
		return nil, fmt.Errorf("parse template: name is required")
	}
	return &t, nil
}
