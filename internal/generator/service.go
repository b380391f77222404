// Package generator seeds guideline documents from JSON templates,
// assembles render contexts, and drives the publish step. It owns
// document structure; negotiation legality lives in the app service.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"justicebid/api/internal/archive"
	"justicebid/api/internal/docstore"
	"justicebid/api/internal/export"
	"justicebid/api/internal/store"
	"justicebid/api/internal/templatecache"
)

type dataStore interface {
	CreateOCG(ctx context.Context, params store.CreateOCGParams) (*store.OCG, error)
	GetOCG(ctx context.Context, ocgID string) (*store.OCG, error)
	AddSection(ctx context.Context, params store.AddSectionParams) (*store.Section, error)
	AddAlternative(ctx context.Context, params store.AddAlternativeParams) (*store.Alternative, error)
	GetSectionHierarchy(ctx context.Context, ocgID string) ([]store.SectionNode, error)
	GetSelectionsByFirm(ctx context.Context, ocgID, firmID string) ([]store.FirmSelection, error)
	GetFirmPointBudget(ctx context.Context, ocgID, firmID string) (int, error)
	CalculatePointsUsed(ctx context.Context, ocgID, firmID string) (int, error)
	UpdateOCGStatus(ctx context.Context, ocgID string, status store.Status) (*store.OCG, error)
	CreateNewVersion(ctx context.Context, ocgID string) (*store.OCG, error)
	GetOrganization(ctx context.Context, orgID string) (*store.Organization, error)
}

type artifactStore interface {
	PutArtifact(ctx context.Context, ocgID string, version int, filename, contentType string, data []byte) (*docstore.Artifact, error)
}

type agreementArchive interface {
	RecordSnapshot(clientID, name string, snap archive.Snapshot, actor, message string) (archive.CommitInfo, error)
	History(clientID, name string, limit int) ([]archive.CommitInfo, error)
}

// Service is the OCG generator.
type Service struct {
	store        dataStore
	cache        templatecache.Cache
	templatesDir string
	artifacts    artifactStore    // nil when object storage is not configured
	archive      agreementArchive // nil when archiving is disabled
}

func NewService(s dataStore, cache templatecache.Cache, templatesDir string) *Service {
	if cache == nil {
		cache = templatecache.NewMemoryCache()
	}
	return &Service{store: s, cache: cache, templatesDir: templatesDir}
}

// WithArtifactStore enables best-effort persistence of rendered documents.
func (g *Service) WithArtifactStore(a artifactStore) *Service {
	g.artifacts = a
	return g
}

// WithArchive enables snapshot commits at publish time.
func (g *Service) WithArchive(a agreementArchive) *Service {
	g.archive = a
	return g
}

// GetTemplate loads a template by type. Built-in types resolve to
// <templatesDir>/<type>.json and are cached; custom templates load from
// customPath on every call. forceReload bypasses and refreshes the cache.
func (g *Service) GetTemplate(ctx context.Context, templateType, customPath string, forceReload bool) (*Template, error) {
	if templateType == TemplateCustom {
		if customPath == "" {
			return nil, fmt.Errorf("custom template requires a path")
		}
		data, err := os.ReadFile(customPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, customPath)
		}
		return parseTemplate(data)
	}

	switch templateType {
	case TemplateLegal, TemplateFinancial, TemplateHealthcare, TemplateTechnology, TemplateGeneric:
	default:
		return nil, fmt.Errorf("unknown template type %q", templateType)
	}

	if !forceReload {
		cached, err := g.cache.Get(ctx, templateType)
		if err != nil {
			log.Printf("generator: template cache get %s: %v", templateType, err)
		} else if cached != nil {
			return parseTemplate(cached)
		}
	}

	path := filepath.Join(g.templatesDir, templateType+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateType)
	}
	t, err := parseTemplate(data)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Set(ctx, templateType, data); err != nil {
		log.Printf("generator: template cache set %s: %v", templateType, err)
	}
	return t, nil
}

// CreateFromTemplateParams configures template instantiation. Zero
// TotalPoints / nil DefaultFirmPointBudget defer to the template, then
// to the store defaults.
type CreateFromTemplateParams struct {
	ClientID               string
	Name                   string
	TemplateType           string
	CustomPath             string
	TotalPoints            int
	DefaultFirmPointBudget *int
}

// CreateFromTemplate creates a DRAFT guideline document and populates
// its section tree from the template.
func (g *Service) CreateFromTemplate(ctx context.Context, params CreateFromTemplateParams) (*store.OCG, error) {
	if params.ClientID == "" || params.Name == "" {
		return nil, fmt.Errorf("client id and name are required")
	}
	tpl, err := g.GetTemplate(ctx, params.TemplateType, params.CustomPath, false)
	if err != nil {
		return nil, err
	}

	totalPoints := params.TotalPoints
	if totalPoints <= 0 {
		totalPoints = tpl.TotalPoints
	}
	budget := params.DefaultFirmPointBudget
	if budget == nil {
		budget = tpl.DefaultFirmPointBudget
	}

	ocg, err := g.store.CreateOCG(ctx, store.CreateOCGParams{
		ClientID:               params.ClientID,
		Name:                   params.Name,
		TotalPoints:            totalPoints,
		DefaultFirmPointBudget: budget,
	})
	if err != nil {
		return nil, err
	}

	if err := g.addTemplateSections(ctx, ocg.ID, nil, tpl.Sections); err != nil {
		return nil, err
	}
	return ocg, nil
}

func (g *Service) addTemplateSections(ctx context.Context, ocgID string, parentID *string, sections []TemplateSection) error {
	for _, ts := range sections {
		sec, err := g.store.AddSection(ctx, store.AddSectionParams{
			OCGID:        ocgID,
			ParentID:     parentID,
			Title:        ts.Title,
			Content:      ts.Content,
			IsNegotiable: ts.IsNegotiable,
		})
		if err != nil {
			return err
		}
		if sec == nil {
			return fmt.Errorf("add template section %q: parent vanished", ts.Title)
		}
		for _, ta := range ts.Alternatives {
			isDefault := ta.IsDefault
			if _, err := g.store.AddAlternative(ctx, store.AddAlternativeParams{
				SectionID: sec.ID,
				Title:     ta.Title,
				Content:   ta.Content,
				Points:    ta.Points,
				IsDefault: &isDefault,
			}); err != nil {
				return err
			}
		}
		if err := g.addTemplateSections(ctx, ocgID, &sec.ID, ts.Subsections); err != nil {
			return err
		}
	}
	return nil
}

// GenerateDocument assembles the render context for an OCG — merging a
// firm's selections when firmID is set — and renders it in the requested
// format. Rendered artifacts are persisted to object storage best-effort.
func (g *Service) GenerateDocument(ctx context.Context, ocgID string, format export.Format, firmID string) (*export.Result, error) {
	if _, err := export.ParseFormat(string(format)); err != nil {
		return nil, err
	}
	doc, ocg, err := g.buildRenderContext(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}

	result, err := export.Render(*doc, format)
	if err != nil {
		return nil, err
	}

	if g.artifacts != nil {
		if _, err := g.artifacts.PutArtifact(ctx, ocg.ID, ocg.Version, result.Filename, result.MimeType, result.Data); err != nil {
			log.Printf("generator: persist artifact %s for %s: %v", result.Filename, ocg.ID, err)
		}
	}
	return result, nil
}

func (g *Service) buildRenderContext(ctx context.Context, ocgID, firmID string) (*export.Document, *store.OCG, error) {
	ocg, err := g.store.GetOCG(ctx, ocgID)
	if err != nil {
		return nil, nil, err
	}
	if ocg == nil {
		return nil, nil, ErrOCGNotFound
	}

	nodes, err := g.store.GetSectionHierarchy(ctx, ocgID)
	if err != nil {
		return nil, nil, err
	}

	doc := &export.Document{
		OCGID:       ocg.ID,
		Title:       ocg.Name,
		ClientName:  g.organizationName(ctx, ocg.ClientID),
		Version:     ocg.Version,
		Status:      string(ocg.Status),
		TotalPoints: ocg.TotalPoints,
		GeneratedAt: time.Now().UTC(),
	}

	selected := map[string]string{} // sectionID -> alternativeID
	if firmID != "" {
		selections, err := g.store.GetSelectionsByFirm(ctx, ocgID, firmID)
		if err != nil {
			return nil, nil, err
		}
		for _, sel := range selections {
			selected[sel.SectionID] = sel.AlternativeID
		}
		doc.FirmName = g.organizationName(ctx, firmID)
		if doc.PointBudget, err = g.store.GetFirmPointBudget(ctx, ocgID, firmID); err != nil {
			return nil, nil, err
		}
		if doc.PointsUsed, err = g.store.CalculatePointsUsed(ctx, ocgID, firmID); err != nil {
			return nil, nil, err
		}
	}

	doc.Sections = renderSections(nodes, selected)
	return doc, ocg, nil
}

func (g *Service) organizationName(ctx context.Context, orgID string) string {
	org, err := g.store.GetOrganization(ctx, orgID)
	if err != nil {
		log.Printf("generator: lookup organization %s: %v", orgID, err)
		return orgID
	}
	if org == nil {
		return orgID
	}
	return org.Name
}

func renderSections(nodes []store.SectionNode, selected map[string]string) []export.Section {
	out := make([]export.Section, 0, len(nodes))
	for _, node := range nodes {
		sec := export.Section{
			Title:        node.Title,
			Content:      node.Content,
			IsNegotiable: node.IsNegotiable,
		}
		for _, alt := range node.Alternatives {
			ra := export.Alternative{
				Title:      alt.Title,
				Content:    alt.Content,
				Points:     alt.Points,
				IsDefault:  alt.IsDefault,
				IsSelected: selected[node.ID] == alt.ID,
			}
			if ra.IsSelected {
				chosen := ra
				sec.Selected = &chosen
			}
			sec.Alternatives = append(sec.Alternatives, ra)
		}
		sec.Subsections = renderSections(node.Subsections, selected)
		out = append(out, sec)
	}
	return out
}

// PublishOCG validates a DRAFT guideline's structure and transitions it
// to PUBLISHED. A JSON snapshot is committed to the agreement archive
// best-effort.
func (g *Service) PublishOCG(ctx context.Context, ocgID string) (*store.OCG, error) {
	ocg, err := g.store.GetOCG(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	if ocg == nil {
		return nil, ErrOCGNotFound
	}
	if ocg.Status != store.StatusDraft {
		return nil, &StatusError{Operation: "publish", Current: ocg.Status, Required: store.StatusDraft}
	}

	nodes, err := g.store.GetSectionHierarchy(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	if issues := validateStructure(nodes); len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}

	published, err := g.store.UpdateOCGStatus(ctx, ocgID, store.StatusPublished)
	if err != nil {
		return nil, err
	}
	if published == nil {
		return nil, &StatusError{Operation: "publish", Current: ocg.Status, Required: store.StatusDraft}
	}

	g.snapshotBestEffort(ctx, published, "publish")
	return published, nil
}

// ArchiveHistory lists the snapshot commits recorded for the
// agreement lineage the OCG belongs to, newest first.
func (g *Service) ArchiveHistory(ctx context.Context, ocgID string, limit int) ([]archive.CommitInfo, error) {
	ocg, err := g.store.GetOCG(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	if ocg == nil {
		return nil, ErrOCGNotFound
	}
	if g.archive == nil {
		return []archive.CommitInfo{}, nil
	}
	return g.archive.History(ocg.ClientID, ocg.Name, limit)
}

// SnapshotSigned records the final state of a signed agreement. Failures
// are logged, never returned: the transition already committed.
func (g *Service) SnapshotSigned(ctx context.Context, ocg *store.OCG) {
	g.snapshotBestEffort(ctx, ocg, "sign")
}

func (g *Service) snapshotBestEffort(ctx context.Context, ocg *store.OCG, action string) {
	if g.archive == nil || ocg == nil {
		return
	}
	doc, _, err := g.buildRenderContext(ctx, ocg.ID, "")
	if err != nil {
		log.Printf("generator: %s snapshot render %s: %v", action, ocg.ID, err)
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		log.Printf("generator: %s snapshot marshal %s: %v", action, ocg.ID, err)
		return
	}
	snap := archive.Snapshot{
		OCGID:    ocg.ID,
		Version:  ocg.Version,
		Status:   string(ocg.Status),
		Document: raw,
	}
	if _, err := g.archive.RecordSnapshot(ocg.ClientID, ocg.Name, snap, ocg.ClientID, action+" v"+fmt.Sprint(ocg.Version)); err != nil {
		log.Printf("generator: %s snapshot commit %s: %v", action, ocg.ID, err)
	}
}

func validateStructure(nodes []store.SectionNode) []string {
	var issues []string
	if len(nodes) == 0 {
		issues = append(issues, "document has no sections")
		return issues
	}
	var walk func(nodes []store.SectionNode)
	walk = func(nodes []store.SectionNode) {
		for _, node := range nodes {
			if node.IsNegotiable && len(node.Alternatives) == 0 {
				issues = append(issues, fmt.Sprintf("negotiable section %q has no alternatives", node.Title))
			}
			for _, alt := range node.Alternatives {
				if alt.Points < 0 {
					issues = append(issues, fmt.Sprintf("alternative %q has negative points", alt.Title))
				}
			}
			walk(node.Subsections)
		}
	}
	walk(nodes)
	return issues
}

// CreateNewVersion clones the latest structure into a fresh DRAFT.
func (g *Service) CreateNewVersion(ctx context.Context, ocgID string) (*store.OCG, error) {
	next, err := g.store.CreateNewVersion(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, ErrOCGNotFound
	}
	return next, nil
}

// SaveAsTemplate extracts an OCG's structure into a reusable template,
// writes it under the templates directory, and invalidates the cache
// entry so the next load sees the new file.
func (g *Service) SaveAsTemplate(ctx context.Context, ocgID, templateType string) (*Template, error) {
	switch templateType {
	case TemplateLegal, TemplateFinancial, TemplateHealthcare, TemplateTechnology, TemplateGeneric:
	default:
		return nil, fmt.Errorf("cannot save to template type %q", templateType)
	}

	ocg, err := g.store.GetOCG(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	if ocg == nil {
		return nil, ErrOCGNotFound
	}
	nodes, err := g.store.GetSectionHierarchy(ctx, ocgID)
	if err != nil {
		return nil, err
	}

	budget := ocg.DefaultFirmPointBudget
	tpl := &Template{
		Name:                   ocg.Name,
		TotalPoints:            ocg.TotalPoints,
		DefaultFirmPointBudget: &budget,
		Sections:               templateSections(nodes),
	}

	data, err := json.MarshalIndent(tpl, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal template: %w", err)
	}
	path := filepath.Join(g.templatesDir, templateType+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write template %s: %w", path, err)
	}
	if err := g.cache.Invalidate(ctx, templateType); err != nil {
		log.Printf("generator: template cache invalidate %s: %v", templateType, err)
	}
	return tpl, nil
}

func templateSections(nodes []store.SectionNode) []TemplateSection {
	out := make([]TemplateSection, 0, len(nodes))
	for _, node := range nodes {
		ts := TemplateSection{
			Title:        node.Title,
			Content:      node.Content,
			IsNegotiable: node.IsNegotiable,
		}
		for _, alt := range node.Alternatives {
			ts.Alternatives = append(ts.Alternatives, TemplateAlternative{
				Title:     alt.Title,
				Content:   alt.Content,
				Points:    alt.Points,
				IsDefault: alt.IsDefault,
			})
		}
		ts.Subsections = templateSections(node.Subsections)
		out = append(out, ts)
	}
	return out
}
