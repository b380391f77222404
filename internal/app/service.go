package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"justicebid/api/internal/archive"
	"justicebid/api/internal/config"
	"justicebid/api/internal/export"
	"justicebid/api/internal/generator"
	"justicebid/api/internal/messaging"
	"justicebid/api/internal/search"
	"justicebid/api/internal/store"
)

type CreateOCGInput struct {
	ClientID               string `json:"clientId"`
	Name                   string `json:"name"`
	TemplateType           string `json:"templateType"`
	CustomTemplatePath     string `json:"customTemplatePath"`
	TotalPoints            int    `json:"totalPoints"`
	DefaultFirmPointBudget *int   `json:"defaultFirmPointBudget"`
}

type UpdateOCGInput struct {
	Name                   *string `json:"name"`
	TotalPoints            *int    `json:"totalPoints"`
	DefaultFirmPointBudget *int    `json:"defaultFirmPointBudget"`
}

type AddSectionInput struct {
	ParentID     *string `json:"parentId"`
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	IsNegotiable bool    `json:"isNegotiable"`
	SortOrder    *int    `json:"sortOrder"`
}

type AddAlternativeInput struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Points    int    `json:"points"`
	SortOrder *int   `json:"sortOrder"`
	IsDefault *bool  `json:"isDefault"`
}

type InitiateNegotiationInput struct {
	FirmID      string `json:"firmId"`
	PointBudget *int   `json:"pointBudget"`
	Message     string `json:"message"`
}

// ProposedSelection is one entry of a dry-run selection batch.
type ProposedSelection struct {
	SectionID     string `json:"sectionId"`
	AlternativeID string `json:"alternativeId"`
}

// PointsSummary is the firm's budget position on one OCG.
type PointsSummary struct {
	Budget    int `json:"budget"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// ProposalValidation reports a dry-run budget check without persisting.
type ProposalValidation struct {
	Valid    bool     `json:"valid"`
	Budget   int      `json:"budget"`
	Required int      `json:"required"`
	Issues   []string `json:"issues,omitempty"`
}

// NegotiationSummary is the aggregate view for one (OCG, firm) pair.
type NegotiationSummary struct {
	OCG        *store.OCG            `json:"ocg"`
	Firm       *store.Organization   `json:"firm,omitempty"`
	Selections []store.FirmSelection `json:"selections"`
	Points     PointsSummary         `json:"points"`
	ThreadID   string                `json:"threadId,omitempty"`
}

type dataStore interface {
	CreateOCG(context.Context, store.CreateOCGParams) (*store.OCG, error)
	GetOCG(context.Context, string) (*store.OCG, error)
	ListOCGsByClient(context.Context, string) ([]store.OCG, error)
	ListOCGsByStatus(context.Context, store.Status) ([]store.OCG, error)
	GetCurrentVersion(ctx context.Context, clientID, name string) (*store.OCG, error)
	UpdateOCG(ctx context.Context, ocgID string, update store.OCGUpdate) (*store.OCG, error)
	UpdateOCGStatus(ctx context.Context, ocgID string, status store.Status) (*store.OCG, error)
	AddSection(context.Context, store.AddSectionParams) (*store.Section, error)
	GetSection(context.Context, string) (*store.Section, error)
	UpdateSection(ctx context.Context, sectionID string, update store.SectionUpdate) (*store.Section, error)
	DeleteSection(context.Context, string) (bool, error)
	AddAlternative(context.Context, store.AddAlternativeParams) (*store.Alternative, error)
	GetAlternative(context.Context, string) (*store.Alternative, error)
	UpdateAlternative(ctx context.Context, alternativeID string, update store.AlternativeUpdate) (*store.Alternative, error)
	DeleteAlternative(context.Context, string) (bool, error)
	SelectWithinBudget(ctx context.Context, ocgID, firmID, sectionID, alternativeID string) (*store.SelectionOutcome, error)
	GetSelectionsByFirm(ctx context.Context, ocgID, firmID string) ([]store.FirmSelection, error)
	DeleteFirmSelection(context.Context, string) (bool, error)
	ClearFirmSelections(ctx context.Context, ocgID, firmID string) error
	GetFirmPointBudget(ctx context.Context, ocgID, firmID string) (int, error)
	SetFirmPointBudget(ctx context.Context, ocgID, firmID string, points int) (bool, error)
	CalculatePointsUsed(ctx context.Context, ocgID, firmID string) (int, error)
	GetRemainingPointBudget(ctx context.Context, ocgID, firmID string) (int, error)
	GetSectionHierarchy(context.Context, string) ([]store.SectionNode, error)
	CreateOrganization(ctx context.Context, name, orgType, email string) (*store.Organization, error)
	GetOrganization(context.Context, string) (*store.Organization, error)
	Ping(ctx context.Context) error
}

type documentGenerator interface {
	GetTemplate(ctx context.Context, templateType, customPath string, forceReload bool) (*generator.Template, error)
	CreateFromTemplate(ctx context.Context, params generator.CreateFromTemplateParams) (*store.OCG, error)
	GenerateDocument(ctx context.Context, ocgID string, format export.Format, firmID string) (*export.Result, error)
	PublishOCG(ctx context.Context, ocgID string) (*store.OCG, error)
	CreateNewVersion(ctx context.Context, ocgID string) (*store.OCG, error)
	SaveAsTemplate(ctx context.Context, ocgID, templateType string) (*generator.Template, error)
	SnapshotSigned(ctx context.Context, ocg *store.OCG)
	ArchiveHistory(ctx context.Context, ocgID string, limit int) ([]archive.CommitInfo, error)
}

type messenger interface {
	PostMessage(ctx context.Context, contextType, contextID, senderID string, recipientIDs []string, content string) (*store.Message, error)
	History(ctx context.Context, contextType, contextID string) ([]store.Message, error)
	Thread(ctx context.Context, contextType, contextID string) (*store.MessageThread, error)
}

type notifier interface {
	IsConfigured() bool
	SendOCGNegotiationNotification(recipientEmail, organizationName, ocgID, status string) error
}

type searchIndexer interface {
	IndexOCG(rec search.OCGRecord)
	IndexSection(rec search.SectionRecord)
	DeleteSection(id string)
	Search(q search.Query) search.Response
}

// Service is the negotiation protocol authority: it owns transition
// legality, translates rule violations into typed domain errors, and
// treats messaging, notification, search, and archiving as best-effort
// side effects that never fail a committed transition.
type Service struct {
	cfg      config.Config
	store    dataStore
	gen      documentGenerator
	messages messenger
	mail     notifier      // nil when SMTP is not configured
	search   searchIndexer // nil when search is not configured
}

func New(cfg config.Config, dataStore *store.PostgresStore, gen *generator.Service, messages *messaging.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		gen:      gen,
		messages: messages,
	}
}

// CORSOrigin exposes the configured origin for the HTTP layer.
func (s *Service) CORSOrigin() string {
	return s.cfg.CORSOrigin
}

// WithNotifier enables negotiation-lifecycle email.
func (s *Service) WithNotifier(n notifier) *Service {
	s.mail = n
	return s
}

// WithSearch enables fire-and-forget indexing and the search endpoint.
func (s *Service) WithSearch(idx searchIndexer) *Service {
	s.search = idx
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ---- OCG lifecycle ----

// CreateOCG creates a DRAFT guideline document, from a template when one
// is named, otherwise empty.
func (s *Service) CreateOCG(ctx context.Context, input CreateOCGInput) (*store.OCG, error) {
	if strings.TrimSpace(input.ClientID) == "" {
		return nil, errValidation("clientId is required", nil)
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errValidation("name is required", nil)
	}

	var ocg *store.OCG
	var err error
	if input.TemplateType != "" {
		ocg, err = s.gen.CreateFromTemplate(ctx, generator.CreateFromTemplateParams{
			ClientID:               input.ClientID,
			Name:                   input.Name,
			TemplateType:           input.TemplateType,
			CustomPath:             input.CustomTemplatePath,
			TotalPoints:            input.TotalPoints,
			DefaultFirmPointBudget: input.DefaultFirmPointBudget,
		})
		if err != nil {
			if errors.Is(err, generator.ErrTemplateNotFound) {
				return nil, errValidation(err.Error(), nil)
			}
			return nil, err
		}
	} else {
		ocg, err = s.store.CreateOCG(ctx, store.CreateOCGParams{
			ClientID:               input.ClientID,
			Name:                   input.Name,
			TotalPoints:            input.TotalPoints,
			DefaultFirmPointBudget: input.DefaultFirmPointBudget,
		})
		if err != nil {
			return nil, err
		}
	}

	s.indexOCG(ocg)
	return ocg, nil
}

func (s *Service) GetOCG(ctx context.Context, ocgID string) (*store.OCG, error) {
	ocg, err := s.store.GetOCG(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	if ocg == nil {
		return nil, errOCGNotFound(ocgID)
	}
	return ocg, nil
}

func (s *Service) ListOCGsByClient(ctx context.Context, clientID string) ([]store.OCG, error) {
	return s.store.ListOCGsByClient(ctx, clientID)
}

func (s *Service) ListOCGsByStatus(ctx context.Context, raw string) ([]store.OCG, error) {
	status, err := store.ParseStatus(raw)
	if err != nil {
		return nil, errValidation("status must be one of DRAFT, PUBLISHED, NEGOTIATING, SIGNED", nil)
	}
	return s.store.ListOCGsByStatus(ctx, status)
}

func (s *Service) GetCurrentVersion(ctx context.Context, clientID, name string) (*store.OCG, error) {
	ocg, err := s.store.GetCurrentVersion(ctx, clientID, name)
	if err != nil {
		return nil, err
	}
	if ocg == nil {
		return nil, errOCGNotFound(name)
	}
	return ocg, nil
}

// UpdateOCG applies a whitelist partial update. Structural fields only
// change while the document is a DRAFT; status never changes here.
func (s *Service) UpdateOCG(ctx context.Context, ocgID string, input UpdateOCGInput) (*store.OCG, error) {
	ocg, err := s.GetOCG(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	if ocg.Status != store.StatusDraft {
		return nil, errInvalidTransition("update ocg", ocg.Status, store.StatusDraft)
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, errValidation("name cannot be empty", nil)
	}
	if input.TotalPoints != nil && *input.TotalPoints <= 0 {
		return nil, errValidation("totalPoints must be positive", nil)
	}
	if input.DefaultFirmPointBudget != nil && *input.DefaultFirmPointBudget < 0 {
		return nil, errValidation("defaultFirmPointBudget cannot be negative", nil)
	}

	updated, err := s.store.UpdateOCG(ctx, ocgID, store.OCGUpdate{
		Name:                   input.Name,
		TotalPoints:            input.TotalPoints,
		DefaultFirmPointBudget: input.DefaultFirmPointBudget,
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, errOCGNotFound(ocgID)
	}
	s.indexOCG(updated)
	return updated, nil
}

// PublishOCG validates and transitions DRAFT → PUBLISHED via the generator.
func (s *Service) PublishOCG(ctx context.Context, ocgID string) (*store.OCG, error) {
	published, err := s.gen.PublishOCG(ctx, ocgID)
	if err != nil {
		return nil, mapGeneratorError(err, ocgID)
	}
	s.indexOCG(published)
	return published, nil
}

// CreateNewVersion clones the OCG structure into a fresh DRAFT row.
func (s *Service) CreateNewVersion(ctx context.Context, ocgID string) (*store.OCG, error) {
	next, err := s.gen.CreateNewVersion(ctx, ocgID)
	if err != nil {
		return nil, mapGeneratorError(err, ocgID)
	}
	s.indexOCG(next)
	return next, nil
}

func mapGeneratorError(err error, ocgID string) error {
	if errors.Is(err, generator.ErrOCGNotFound) {
		return errOCGNotFound(ocgID)
	}
	var se *generator.StatusError
	if errors.As(err, &se) {
		return errInvalidTransition(se.Operation, se.Current, se.Required)
	}
	var ve *generator.ValidationError
	if errors.As(err, &ve) {
		return errValidation("ocg structure is not publishable", map[string]any{"issues": ve.Issues})
	}
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return errValidation("format must be one of pdf, html, docx, json", nil)
	}
	return err
}

// ---- Structure editing (DRAFT only) ----

func (s *Service) requireDraft(ctx context.Context, ocgID, operation string) (*store.OCG, error) {
	ocg, err := s.GetOCG(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	if ocg.Status != store.StatusDraft {
		return nil, errInvalidTransition(operation, ocg.Status, store.StatusDraft)
	}
	return ocg, nil
}

func (s *Service) AddSection(ctx context.Context, ocgID string, input AddSectionInput) (*store.Section, error) {
	ocg, err := s.requireDraft(ctx, ocgID, "add section")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, errValidation("title is required", nil)
	}

	sec, err := s.store.AddSection(ctx, store.AddSectionParams{
		OCGID:        ocgID,
		ParentID:     input.ParentID,
		Title:        input.Title,
		Content:      input.Content,
		IsNegotiable: input.IsNegotiable,
		SortOrder:    input.SortOrder,
	})
	if err != nil {
		return nil, err
	}
	if sec == nil {
		// parent missing or belonging to another OCG
		if input.ParentID != nil {
			return nil, errSectionNotFound(*input.ParentID)
		}
		return nil, errOCGNotFound(ocgID)
	}
	s.indexSection(ocg, sec)
	return sec, nil
}

func (s *Service) UpdateSection(ctx context.Context, ocgID, sectionID string, update store.SectionUpdate) (*store.Section, error) {
	ocg, err := s.requireDraft(ctx, ocgID, "update section")
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.OCGID != ocgID {
		return nil, errSectionNotFound(sectionID)
	}
	sec, err := s.store.UpdateSection(ctx, sectionID, update)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, errSectionNotFound(sectionID)
	}
	s.indexSection(ocg, sec)
	return sec, nil
}

func (s *Service) DeleteSection(ctx context.Context, ocgID, sectionID string) error {
	if _, err := s.requireDraft(ctx, ocgID, "delete section"); err != nil {
		return err
	}
	existing, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return err
	}
	if existing == nil || existing.OCGID != ocgID {
		return errSectionNotFound(sectionID)
	}
	deleted, err := s.store.DeleteSection(ctx, sectionID)
	if err != nil {
		return err
	}
	if !deleted {
		return errSectionNotFound(sectionID)
	}
	if s.search != nil {
		s.search.DeleteSection(sectionID)
	}
	return nil
}

func (s *Service) AddAlternative(ctx context.Context, ocgID, sectionID string, input AddAlternativeInput) (*store.Alternative, error) {
	if _, err := s.requireDraft(ctx, ocgID, "add alternative"); err != nil {
		return nil, err
	}
	sec, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if sec == nil || sec.OCGID != ocgID {
		return nil, errSectionNotFound(sectionID)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, errValidation("title is required", nil)
	}
	if input.Points < 0 {
		return nil, errValidation("points cannot be negative", nil)
	}

	alt, err := s.store.AddAlternative(ctx, store.AddAlternativeParams{
		SectionID: sectionID,
		Title:     input.Title,
		Content:   input.Content,
		Points:    input.Points,
		SortOrder: input.SortOrder,
		IsDefault: input.IsDefault,
	})
	if err != nil {
		return nil, err
	}
	if alt == nil {
		return nil, errSectionNotFound(sectionID)
	}
	return alt, nil
}

func (s *Service) UpdateAlternative(ctx context.Context, ocgID, alternativeID string, update store.AlternativeUpdate) (*store.Alternative, error) {
	if _, err := s.requireDraft(ctx, ocgID, "update alternative"); err != nil {
		return nil, err
	}
	if update.Points != nil && *update.Points < 0 {
		return nil, errValidation("points cannot be negative", nil)
	}
	alt, err := s.store.UpdateAlternative(ctx, alternativeID, update)
	if err != nil {
		return nil, err
	}
	if alt == nil {
		return nil, errAlternativeNotFound(alternativeID)
	}
	return alt, nil
}

func (s *Service) DeleteAlternative(ctx context.Context, ocgID, alternativeID string) error {
	if _, err := s.requireDraft(ctx, ocgID, "delete alternative"); err != nil {
		return err
	}
	deleted, err := s.store.DeleteAlternative(ctx, alternativeID)
	if err != nil {
		return err
	}
	if !deleted {
		return errAlternativeNotFound(alternativeID)
	}
	return nil
}

func (s *Service) GetSectionHierarchy(ctx context.Context, ocgID string) ([]store.SectionNode, error) {
	if _, err := s.GetOCG(ctx, ocgID); err != nil {
		return nil, err
	}
	return s.store.GetSectionHierarchy(ctx, ocgID)
}

// ---- Negotiation protocol ----

// InitiateNegotiation moves a PUBLISHED OCG into NEGOTIATING with a firm,
// optionally overriding that firm's point budget. The opening message and
// the firm notification are best-effort.
func (s *Service) InitiateNegotiation(ctx context.Context, ocgID string, input InitiateNegotiationInput) (*store.OCG, error) {
	ocg, err := s.GetOCG(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	if ocg.Status != store.StatusPublished {
		return nil, errInvalidTransition("initiate negotiation", ocg.Status, store.StatusPublished)
	}

	firm, err := s.store.GetOrganization(ctx, input.FirmID)
	if err != nil {
		return nil, err
	}
	if firm == nil {
		return nil, errFirmNotFound(input.FirmID)
	}

	if input.PointBudget != nil {
		ok, err := s.store.SetFirmPointBudget(ctx, ocgID, input.FirmID, *input.PointBudget)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errValidation("pointBudget cannot be negative", nil)
		}
	}

	updated, err := s.store.UpdateOCGStatus(ctx, ocgID, store.StatusNegotiating)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// lost a transition race since the status check above
		return nil, errInvalidTransition("initiate negotiation", ocg.Status, store.StatusPublished)
	}

	s.postMessageBestEffort(ctx, ocgID, input.FirmID, ocg.ClientID, []string{input.FirmID}, input.Message)
	s.notifyBestEffort(ctx, firm, updated)
	s.indexOCG(updated)
	return updated, nil
}

// SelectAlternative records a firm's choice for one negotiable section.
// The budget check and the upsert are one atomic store operation.
func (s *Service) SelectAlternative(ctx context.Context, ocgID, firmID, sectionID, alternativeID string) (*store.FirmSelection, error) {
	ocg, err := s.GetOCG(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	if ocg.Status != store.StatusNegotiating {
		return nil, errInvalidTransition("select alternative", ocg.Status, store.StatusNegotiating)
	}

	sec, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if sec == nil || sec.OCGID != ocgID {
		return nil, errSectionNotFound(sectionID)
	}
	if !sec.IsNegotiable {
		return nil, errValidation(fmt.Sprintf("section %q is not negotiable", sec.Title), nil)
	}
	alt, err := s.store.GetAlternative(ctx, alternativeID)
	if err != nil {
		return nil, err
	}
	if alt == nil || alt.SectionID != sectionID {
		return nil, errAlternativeNotFound(alternativeID)
	}

	outcome, err := s.store.SelectWithinBudget(ctx, ocgID, firmID, sectionID, alternativeID)
	if err != nil {
		return nil, err
	}
	if outcome.InvalidRef {
		return nil, errAlternativeNotFound(alternativeID)
	}
	if outcome.Exceeded {
		return nil, errPointBudgetExceeded(outcome.Budget, outcome.Required)
	}
	return outcome.Selection, nil
}

// CompleteNegotiation checks that every negotiable section carries a
// selection and the firm is within budget, then signs the agreement.
func (s *Service) CompleteNegotiation(ctx context.Context, ocgID, firmID, message string) (*store.OCG, error) {
	ocg, err := s.GetOCG(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	if ocg.Status != store.StatusNegotiating {
		return nil, errInvalidTransition("complete negotiation", ocg.Status, store.StatusNegotiating)
	}

	nodes, err := s.store.GetSectionHierarchy(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	selections, err := s.store.GetSelectionsByFirm(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}
	selectedSections := make(map[string]bool, len(selections))
	for _, sel := range selections {
		selectedSections[sel.SectionID] = true
	}

	var missing []string
	var walk func(nodes []store.SectionNode)
	walk = func(nodes []store.SectionNode) {
		for _, node := range nodes {
			if node.IsNegotiable && len(node.Alternatives) > 0 && !selectedSections[node.ID] {
				missing = append(missing, node.Title)
			}
			walk(node.Subsections)
		}
	}
	walk(nodes)
	if len(missing) > 0 {
		return nil, errMissingRequiredSelections(missing)
	}

	budget, err := s.store.GetFirmPointBudget(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}
	used, err := s.store.CalculatePointsUsed(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}
	if used > budget {
		return nil, errPointBudgetExceeded(budget, used)
	}

	signed, err := s.store.UpdateOCGStatus(ctx, ocgID, store.StatusSigned)
	if err != nil {
		return nil, err
	}
	if signed == nil {
		return nil, errInvalidTransition("complete negotiation", ocg.Status, store.StatusNegotiating)
	}

	// Final render, archive snapshot, correspondence: all best-effort.
	if _, err := s.gen.GenerateDocument(ctx, ocgID, export.FormatHTML, firmID); err != nil {
		log.Printf("negotiation: final render %s: %v", ocgID, err)
	}
	s.gen.SnapshotSigned(ctx, signed)
	s.postMessageBestEffort(ctx, ocgID, firmID, firmID, []string{signed.ClientID}, message)
	if firm, err := s.store.GetOrganization(ctx, firmID); err == nil && firm != nil {
		s.notifyBestEffort(ctx, firm, signed)
	}
	s.indexOCG(signed)
	return signed, nil
}

// ResetFirmSelections clears every selection the firm has made on the OCG.
func (s *Service) ResetFirmSelections(ctx context.Context, ocgID, firmID string) error {
	ocg, err := s.GetOCG(ctx, ocgID)
	if err != nil {
		return err
	}
	if ocg.Status != store.StatusNegotiating {
		return errInvalidTransition("reset selections", ocg.Status, store.StatusNegotiating)
	}
	return s.store.ClearFirmSelections(ctx, ocgID, firmID)
}

func (s *Service) GetSelections(ctx context.Context, ocgID, firmID string) ([]store.FirmSelection, error) {
	if _, err := s.GetOCG(ctx, ocgID); err != nil {
		return nil, err
	}
	selections, err := s.store.GetSelectionsByFirm(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}
	if selections == nil {
		selections = []store.FirmSelection{}
	}
	return selections, nil
}

func (s *Service) GetPointsSummary(ctx context.Context, ocgID, firmID string) (*PointsSummary, error) {
	if _, err := s.GetOCG(ctx, ocgID); err != nil {
		return nil, err
	}
	return s.pointsSummary(ctx, ocgID, firmID)
}

func (s *Service) pointsSummary(ctx context.Context, ocgID, firmID string) (*PointsSummary, error) {
	budget, err := s.store.GetFirmPointBudget(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}
	used, err := s.store.CalculatePointsUsed(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}
	remaining := budget - used
	if remaining < 0 {
		remaining = 0
	}
	return &PointsSummary{Budget: budget, Used: used, Remaining: remaining}, nil
}

// UpdatePointBudget sets a firm's budget override. Lowering the budget
// below current usage is allowed and logged; existing selections stay.
func (s *Service) UpdatePointBudget(ctx context.Context, ocgID, firmID string, points int) (*PointsSummary, error) {
	if _, err := s.GetOCG(ctx, ocgID); err != nil {
		return nil, err
	}
	used, err := s.store.CalculatePointsUsed(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.SetFirmPointBudget(ctx, ocgID, firmID, points)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errValidation("pointBudget cannot be negative", nil)
	}
	if points < used {
		log.Printf("negotiation: budget for firm %s on %s lowered to %d below current usage %d", firmID, ocgID, points, used)
	}
	return s.pointsSummary(ctx, ocgID, firmID)
}

// ValidateSelectionProposal dry-runs a candidate batch of selections
// against the firm's budget without persisting anything. Proposed entries
// replace the firm's current selection for the same section.
func (s *Service) ValidateSelectionProposal(ctx context.Context, ocgID, firmID string, proposal []ProposedSelection) (*ProposalValidation, error) {
	if _, err := s.GetOCG(ctx, ocgID); err != nil {
		return nil, err
	}
	budget, err := s.store.GetFirmPointBudget(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}

	current, err := s.store.GetSelectionsByFirm(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}
	pointsBySection := make(map[string]int, len(current))
	for _, sel := range current {
		pointsBySection[sel.SectionID] = sel.PointsUsed
	}

	result := &ProposalValidation{Budget: budget}
	for _, p := range proposal {
		sec, err := s.store.GetSection(ctx, p.SectionID)
		if err != nil {
			return nil, err
		}
		if sec == nil || sec.OCGID != ocgID {
			result.Issues = append(result.Issues, fmt.Sprintf("section %s not found", p.SectionID))
			continue
		}
		if !sec.IsNegotiable {
			result.Issues = append(result.Issues, fmt.Sprintf("section %q is not negotiable", sec.Title))
			continue
		}
		alt, err := s.store.GetAlternative(ctx, p.AlternativeID)
		if err != nil {
			return nil, err
		}
		if alt == nil || alt.SectionID != p.SectionID {
			result.Issues = append(result.Issues, fmt.Sprintf("alternative %s not found in section %q", p.AlternativeID, sec.Title))
			continue
		}
		pointsBySection[p.SectionID] = alt.Points
	}

	for _, points := range pointsBySection {
		result.Required += points
	}
	result.Valid = len(result.Issues) == 0 && result.Required <= budget
	return result, nil
}

// GetAvailableSections returns the ordered section tree the firm
// negotiates against.
func (s *Service) GetAvailableSections(ctx context.Context, ocgID string) ([]store.SectionNode, error) {
	return s.GetSectionHierarchy(ctx, ocgID)
}

// GetSummary aggregates the negotiation view for one (OCG, firm) pair.
func (s *Service) GetSummary(ctx context.Context, ocgID, firmID string) (*NegotiationSummary, error) {
	ocg, err := s.GetOCG(ctx, ocgID)
	if err != nil {
		return nil, err
	}
	selections, err := s.GetSelections(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}
	points, err := s.pointsSummary(ctx, ocgID, firmID)
	if err != nil {
		return nil, err
	}

	summary := &NegotiationSummary{
		OCG:        ocg,
		Selections: selections,
		Points:     *points,
	}
	if firm, err := s.store.GetOrganization(ctx, firmID); err == nil {
		summary.Firm = firm
	}
	if th, err := s.messages.Thread(ctx, messaging.ContextNegotiation, messaging.NegotiationContextID(ocgID, firmID)); err == nil && th != nil {
		summary.ThreadID = th.ID
	}
	return summary, nil
}

// ---- Documents, messaging, search, organizations ----

// GenerateDocument renders the OCG in the requested format, merging the
// firm's selections when firmID is set.
func (s *Service) GenerateDocument(ctx context.Context, ocgID, rawFormat, firmID string) (*export.Result, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, errValidation("format must be one of pdf, html, docx, json", nil)
	}
	result, err := s.gen.GenerateDocument(ctx, ocgID, format, firmID)
	if err != nil {
		return nil, mapGeneratorError(err, ocgID)
	}
	return result, nil
}

func (s *Service) GetTemplate(ctx context.Context, templateType, customPath string, forceReload bool) (*generator.Template, error) {
	tpl, err := s.gen.GetTemplate(ctx, templateType, customPath, forceReload)
	if err != nil {
		if errors.Is(err, generator.ErrTemplateNotFound) {
			return nil, domainError(http.StatusNotFound, "TEMPLATE_NOT_FOUND", err.Error(), nil)
		}
		return nil, errValidation(err.Error(), nil)
	}
	return tpl, nil
}

// GetArchiveHistory lists the snapshot commits recorded for the OCG's
// agreement lineage.
func (s *Service) GetArchiveHistory(ctx context.Context, ocgID string, limit int) ([]archive.CommitInfo, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	history, err := s.gen.ArchiveHistory(ctx, ocgID, limit)
	if err != nil {
		return nil, mapGeneratorError(err, ocgID)
	}
	if history == nil {
		history = []archive.CommitInfo{}
	}
	return history, nil
}

func (s *Service) SaveAsTemplate(ctx context.Context, ocgID, templateType string) (*generator.Template, error) {
	tpl, err := s.gen.SaveAsTemplate(ctx, ocgID, templateType)
	if err != nil {
		return nil, mapGeneratorError(err, ocgID)
	}
	return tpl, nil
}

// PostNegotiationMessage attaches correspondence to the (OCG, firm) thread.
func (s *Service) PostNegotiationMessage(ctx context.Context, ocgID, firmID, senderID, content string) (*store.Message, error) {
	if _, err := s.GetOCG(ctx, ocgID); err != nil {
		return nil, err
	}
	msg, err := s.messages.PostMessage(ctx, messaging.ContextNegotiation,
		messaging.NegotiationContextID(ocgID, firmID), senderID, []string{firmID}, content)
	if err != nil {
		return nil, errValidation(err.Error(), nil)
	}
	return msg, nil
}

func (s *Service) GetNegotiationMessages(ctx context.Context, ocgID, firmID string) ([]store.Message, error) {
	if _, err := s.GetOCG(ctx, ocgID); err != nil {
		return nil, err
	}
	return s.messages.History(ctx, messaging.ContextNegotiation, messaging.NegotiationContextID(ocgID, firmID))
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) CreateOrganization(ctx context.Context, name, orgType, email string) (*store.Organization, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errValidation("name is required", nil)
	}
	if orgType != "client" && orgType != "law_firm" {
		return nil, errValidation("type must be client or law_firm", nil)
	}
	return s.store.CreateOrganization(ctx, name, orgType, email)
}

func (s *Service) GetOrganization(ctx context.Context, orgID string) (*store.Organization, error) {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domainError(http.StatusNotFound, "ORG_NOT_FOUND", fmt.Sprintf("organization %s not found", orgID), nil)
	}
	return org, nil
}

// ---- Best-effort side effects ----

func (s *Service) postMessageBestEffort(ctx context.Context, ocgID, firmID, senderID string, recipients []string, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	if _, err := s.messages.PostMessage(ctx, messaging.ContextNegotiation,
		messaging.NegotiationContextID(ocgID, firmID), senderID, recipients, content); err != nil {
		log.Printf("negotiation: post message for %s/%s: %v", ocgID, firmID, err)
	}
}

func (s *Service) notifyBestEffort(ctx context.Context, firm *store.Organization, ocg *store.OCG) {
	if s.mail == nil || !s.mail.IsConfigured() || firm.Email == "" {
		return
	}
	if err := s.mail.SendOCGNegotiationNotification(firm.Email, firm.Name, ocg.ID, string(ocg.Status)); err != nil {
		log.Printf("negotiation: notify %s about %s: %v", firm.Email, ocg.ID, err)
	}
}

func (s *Service) indexOCG(ocg *store.OCG) {
	if s.search == nil || ocg == nil {
		return
	}
	s.search.IndexOCG(search.OCGRecord{
		ID:       ocg.ID,
		Title:    ocg.Name,
		ClientID: ocg.ClientID,
		Status:   string(ocg.Status),
		Version:  ocg.Version,
	})
}

func (s *Service) indexSection(ocg *store.OCG, sec *store.Section) {
	if s.search == nil || sec == nil {
		return
	}
	s.search.IndexSection(search.SectionRecord{
		ID:           sec.ID,
		Title:        sec.Title,
		Content:      sec.Content,
		OCGID:        sec.OCGID,
		ClientID:     ocg.ClientID,
		IsNegotiable: sec.IsNegotiable,
	})
}
