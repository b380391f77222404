package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"justicebid/api/internal/search"
	"justicebid/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/orgs" {
		var body struct {
			Name  string `json:"name"`
			Type  string `json:"type"`
			Email string `json:"email"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		org, err := s.service.CreateOrganization(r.Context(), body.Name, body.Type, body.Email)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, org)
		return
	}

	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/orgs/") {
		orgID := strings.TrimPrefix(r.URL.Path, "/api/orgs/")
		org, err := s.service.GetOrganization(r.Context(), orgID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, org)
		return
	}

	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/templates/") {
		templateType := strings.TrimPrefix(r.URL.Path, "/api/templates/")
		forceReload := r.URL.Query().Get("reload") == "true"
		tpl, err := s.service.GetTemplate(r.Context(), templateType, r.URL.Query().Get("path"), forceReload)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tpl)
		return
	}

	if r.URL.Path == "/api/ocgs" {
		switch r.Method {
		case http.MethodPost:
			s.handleCreateOCG(w, r)
		case http.MethodGet:
			s.handleListOCGs(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/ocgs/current" {
		clientID := strings.TrimSpace(r.URL.Query().Get("clientId"))
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if clientID == "" || name == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "clientId and name are required", nil)
			return
		}
		ocg, err := s.service.GetCurrentVersion(r.Context(), clientID, name)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ocg)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/ocgs/") {
		s.handleOCGSubroutes(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		offset = parsed
	}

	response := s.service.Search(search.Query{
		Text:           q,
		FilterType:     search.ResultType(strings.TrimSpace(r.URL.Query().Get("type"))),
		FilterClientID: strings.TrimSpace(r.URL.Query().Get("clientId")),
		FilterOCGID:    strings.TrimSpace(r.URL.Query().Get("ocgId")),
		Limit:          limit,
		Offset:         offset,
	})
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleCreateOCG(w http.ResponseWriter, r *http.Request) {
	var body CreateOCGInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	ocg, err := s.service.CreateOCG(r.Context(), body)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ocg)
}

func (s *HTTPServer) handleListOCGs(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.URL.Query().Get("clientId"))
	status := strings.TrimSpace(r.URL.Query().Get("status"))

	var ocgs []store.OCG
	var err error
	switch {
	case clientID != "":
		ocgs, err = s.service.ListOCGsByClient(r.Context(), clientID)
	case status != "":
		ocgs, err = s.service.ListOCGsByStatus(r.Context(), status)
	default:
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "clientId or status query parameter is required", nil)
		return
	}
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if ocgs == nil {
		ocgs = []store.OCG{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ocgs": ocgs})
}

// handleOCGSubroutes dispatches /api/ocgs/{id}[/...] by path shape.
func (s *HTTPServer) handleOCGSubroutes(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/ocgs/"))
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	ocgID := parts[0]
	rest := parts[1:]
	ctx := r.Context()

	// /api/ocgs/{id}
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			ocg, err := s.service.GetOCG(ctx, ocgID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, ocg)
		case http.MethodPut:
			var body UpdateOCGInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			ocg, err := s.service.UpdateOCG(ctx, ocgID, body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, ocg)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch rest[0] {
	case "publish":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		ocg, err := s.service.PublishOCG(ctx, ocgID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ocg)
		return

	case "versions":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		next, err := s.service.CreateNewVersion(ctx, ocgID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, next)
		return

	case "document":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		format := strings.TrimSpace(r.URL.Query().Get("format"))
		if format == "" {
			format = "html"
		}
		result, err := s.service.GenerateDocument(ctx, ocgID, format, strings.TrimSpace(r.URL.Query().Get("firmId")))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return

	case "archive":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}
		history, err := s.service.GetArchiveHistory(ctx, ocgID, limit)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": history})
		return

	case "save-template":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			TemplateType string `json:"templateType"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		tpl, err := s.service.SaveAsTemplate(ctx, ocgID, body.TemplateType)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tpl)
		return

	case "sections":
		s.handleSectionRoutes(w, r, ocgID, rest[1:])
		return

	case "alternatives":
		s.handleAlternativeRoutes(w, r, ocgID, rest[1:])
		return

	case "negotiation":
		s.handleNegotiationRoutes(w, r, ocgID, rest[1:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSectionRoutes(w http.ResponseWriter, r *http.Request, ocgID string, rest []string) {
	ctx := r.Context()

	// /api/ocgs/{id}/sections
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			nodes, err := s.service.GetSectionHierarchy(ctx, ocgID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			if nodes == nil {
				nodes = []store.SectionNode{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"sections": nodes})
		case http.MethodPost:
			var body AddSectionInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			sec, err := s.service.AddSection(ctx, ocgID, body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, sec)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	sectionID := rest[0]

	// /api/ocgs/{id}/sections/{sid}/alternatives
	if len(rest) == 2 && rest[1] == "alternatives" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body AddAlternativeInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		alt, err := s.service.AddAlternative(ctx, ocgID, sectionID, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, alt)
		return
	}

	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var body struct {
			Title        *string `json:"title"`
			Content      *string `json:"content"`
			IsNegotiable *bool   `json:"isNegotiable"`
			SortOrder    *int    `json:"sortOrder"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		sec, err := s.service.UpdateSection(ctx, ocgID, sectionID, store.SectionUpdate{
			Title:        body.Title,
			Content:      body.Content,
			IsNegotiable: body.IsNegotiable,
			SortOrder:    body.SortOrder,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sec)
	case http.MethodDelete:
		if err := s.service.DeleteSection(ctx, ocgID, sectionID); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleAlternativeRoutes(w http.ResponseWriter, r *http.Request, ocgID string, rest []string) {
	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	alternativeID := rest[0]
	ctx := r.Context()

	switch r.Method {
	case http.MethodPut:
		var body struct {
			Title     *string `json:"title"`
			Content   *string `json:"content"`
			Points    *int    `json:"points"`
			SortOrder *int    `json:"sortOrder"`
			IsDefault *bool   `json:"isDefault"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		alt, err := s.service.UpdateAlternative(ctx, ocgID, alternativeID, store.AlternativeUpdate{
			Title:     body.Title,
			Content:   body.Content,
			Points:    body.Points,
			SortOrder: body.SortOrder,
			IsDefault: body.IsDefault,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, alt)
	case http.MethodDelete:
		if err := s.service.DeleteAlternative(ctx, ocgID, alternativeID); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleNegotiationRoutes(w http.ResponseWriter, r *http.Request, ocgID string, rest []string) {
	ctx := r.Context()

	// POST /api/ocgs/{id}/negotiation — initiate
	if len(rest) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body InitiateNegotiationInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.FirmID) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "firmId is required", nil)
			return
		}
		ocg, err := s.service.InitiateNegotiation(ctx, ocgID, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ocg)
		return
	}

	// GET /api/ocgs/{id}/negotiation/sections — the tree a firm negotiates over
	if len(rest) == 1 && rest[0] == "sections" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		nodes, err := s.service.GetAvailableSections(ctx, ocgID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		if nodes == nil {
			nodes = []store.SectionNode{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"sections": nodes})
		return
	}

	firmID := rest[0]
	if len(rest) != 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch rest[1] {
	case "selections":
		switch r.Method {
		case http.MethodGet:
			selections, err := s.service.GetSelections(ctx, ocgID, firmID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"selections": selections})
		case http.MethodPost:
			var body struct {
				SectionID     string `json:"sectionId"`
				AlternativeID string `json:"alternativeId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			sel, err := s.service.SelectAlternative(ctx, ocgID, firmID, body.SectionID, body.AlternativeID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, sel)
		case http.MethodDelete:
			if err := s.service.ResetFirmSelections(ctx, ocgID, firmID); err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}

	case "complete":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			Message string `json:"message"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ocg, err := s.service.CompleteNegotiation(ctx, ocgID, firmID, body.Message)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ocg)

	case "points":
		switch r.Method {
		case http.MethodGet:
			summary, err := s.service.GetPointsSummary(ctx, ocgID, firmID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, summary)
		case http.MethodPut:
			var body struct {
				PointBudget int `json:"pointBudget"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			summary, err := s.service.UpdatePointBudget(ctx, ocgID, firmID, body.PointBudget)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, summary)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}

	case "validate":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			Selections []ProposedSelection `json:"selections"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.ValidateSelectionProposal(ctx, ocgID, firmID, body.Selections)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case "summary":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		summary, err := s.service.GetSummary(ctx, ocgID, firmID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)

	case "messages":
		switch r.Method {
		case http.MethodGet:
			msgs, err := s.service.GetNegotiationMessages(ctx, ocgID, firmID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
		case http.MethodPost:
			var body struct {
				SenderID string `json:"senderId"`
				Content  string `json:"content"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			msg, err := s.service.PostNegotiationMessage(ctx, ocgID, firmID, body.SenderID, body.Content)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, msg)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
