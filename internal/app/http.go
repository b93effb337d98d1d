package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"editorial/api/internal/auth"
	"editorial/api/internal/export"
	"editorial/api/internal/rbac"
	"editorial/api/internal/search"
	"editorial/api/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session is the caller identity carried by a bearer token.
type Session struct {
	UserID int64
	Name   string
	Role   rbac.Role
}

type HTTPServer struct {
	service    *Service
	secret     []byte
	corsOrigin string
	log        zerolog.Logger
}

func NewHTTPServer(service *Service, secret []byte, corsOrigin string, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{service: service, secret: secret, corsOrigin: corsOrigin, log: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

var nodeCollections = map[string]store.NodeKind{
	"books":      store.KindBook,
	"chapters":   store.KindChapter,
	"sections":   store.KindSection,
	"paragraphs": store.KindParagraph,
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

	// Readers need no session.
	if r.Method == http.MethodGet && r.URL.Path == "/api/public/hierarchy" {
		categoryID, ok := optionalID(w, r, "categoryId")
		if !ok {
			return
		}
		payload, err := s.service.PublicHierarchy(r.Context(), categoryID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": payload})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		writeJSON(w, http.StatusOK, map[string]any{"userId": session.UserID, "name": session.Name, "role": session.Role})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/hierarchy" {
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		categoryID, ok := optionalID(w, r, "categoryId")
		if !ok {
			return
		}
		payload, err := s.service.CompleteHierarchy(r.Context(), categoryID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": payload})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		writeJSON(w, http.StatusOK, s.service.Search(r.Context(), search.Query{
			Text:   query.Get("q"),
			Kind:   query.Get("kind"),
			Limit:  limit,
			Offset: offset,
		}))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/search/reindex" {
		if !s.can(w, session, rbac.ActionAdmin) {
			return
		}
		count, err := s.service.ReindexSearch(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"indexed": count})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch {
	case parts[1] == "categories":
		s.handleCategories(w, r, session, parts)
		return
	case parts[1] == "reviews":
		s.handleReviews(w, r, session, parts)
		return
	case parts[1] == "comments" && len(parts) == 3:
		s.handleComment(w, r, session, parts[2])
		return
	}

	if kind, ok := nodeCollections[parts[1]]; ok {
		if len(parts) == 4 && parts[2] == "versions" && r.Method == http.MethodGet {
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			versionID, ok := pathID(w, parts[3])
			if !ok {
				return
			}
			s.respond(w, r, http.StatusOK)(s.service.GetVersion(r.Context(), kind, versionID))
			return
		}
		if len(parts) >= 3 {
			id, ok := pathID(w, parts[2])
			if !ok {
				return
			}
			s.handleNode(w, r, session, kind, id, parts[3:])
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCategories(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListCategories(r.Context())
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body CategoryInput
			if !readBody(w, r, &body) {
				return
			}
			s.respond(w, r, http.StatusCreated)(s.service.CreateCategory(r.Context(), body))
			return
		}
	}

	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	id, ok := pathID(w, parts[2])
	if !ok {
		return
	}

	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			s.respond(w, r, http.StatusOK)(s.service.GetCategory(r.Context(), id))
			return
		case http.MethodPut:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body CategoryInput
			if !readBody(w, r, &body) {
				return
			}
			s.respond(w, r, http.StatusOK)(s.service.UpdateCategory(r.Context(), id, body))
			return
		case http.MethodDelete:
			if !s.can(w, session, rbac.ActionAdmin) {
				return
			}
			s.respond(w, r, http.StatusOK)(s.service.DeleteCategory(r.Context(), id, session.UserID))
			return
		}
	}

	if len(parts) == 4 && parts[3] == "books" {
		s.handleChildren(w, r, session, store.KindBook, id)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleChildren(w http.ResponseWriter, r *http.Request, session Session, kind store.NodeKind, parentID int64) {
	switch r.Method {
	case http.MethodGet:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListChildren(r.Context(), kind, parentID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		var body Placement
		if !readBody(w, r, &body) {
			return
		}
		s.respond(w, r, http.StatusCreated)(s.service.CreateNode(r.Context(), kind, parentID, body))
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleNode(w http.ResponseWriter, r *http.Request, session Session, kind store.NodeKind, id int64, rest []string) {
	ctx := r.Context()
	action := ""
	if len(rest) > 0 {
		action = rest[0]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.GetNode(ctx, kind, id))
		return

	case action == "" && r.Method == http.MethodPut:
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		var body Placement
		if !readBody(w, r, &body) {
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.UpdateNode(ctx, kind, id, body))
		return

	case action == "" && r.Method == http.MethodDelete:
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.DeleteNode(ctx, kind, id, session.UserID))
		return

	case action == "children" && len(rest) == 1:
		child, ok := kind.Child()
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Paragraphs have no children", nil)
			return
		}
		s.handleChildren(w, r, session, child, id)
		return

	case action == "versions" && len(rest) == 1 && r.Method == http.MethodGet:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListVersions(ctx, kind, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return

	case action == "versions" && len(rest) == 1 && r.Method == http.MethodPost:
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		var body VersionInput
		if !readBody(w, r, &body) {
			return
		}
		s.respond(w, r, http.StatusCreated)(s.service.CreateVersion(ctx, kind, id, body, session.UserID))
		return

	case action == "versions" && len(rest) == 2 && r.Method == http.MethodGet:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		if rest[1] == "latest" {
			s.respond(w, r, http.StatusOK)(s.service.LatestVersion(ctx, kind, id))
			return
		}
		number, err := strconv.Atoi(rest[1])
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, CodeValidation, "version number must be an integer", nil)
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.VersionByNumber(ctx, kind, id, number))
		return

	case action == "status" && r.Method == http.MethodGet:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.GetStatus(ctx, kind, id))
		return

	case action == "status" && r.Method == http.MethodPut:
		if !s.can(w, session, rbac.ActionAdmin) {
			return
		}
		var body struct {
			Status string `json:"status"`
		}
		if !readBody(w, r, &body) {
			return
		}
		state := store.ContentState(strings.ToUpper(strings.TrimSpace(body.Status)))
		s.respond(w, r, http.StatusOK)(s.service.SetStatus(ctx, kind, id, state, session.UserID))
		return

	case action == "publish" && r.Method == http.MethodPost:
		if !s.can(w, session, rbac.ActionPublish) {
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.Publish(ctx, kind, id, session.UserID))
		return

	case action == "unpublish" && r.Method == http.MethodPost:
		if !s.can(w, session, rbac.ActionPublish) {
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.Unpublish(ctx, kind, id, session.UserID))
		return

	case action == "reviews" && len(rest) == 1 && r.Method == http.MethodGet:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListReviews(ctx, kind, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return

	case action == "reviews" && len(rest) == 1 && r.Method == http.MethodPost:
		if !s.can(w, session, rbac.ActionSubmit) {
			return
		}
		var body struct {
			VersionID int64  `json:"versionId"`
			Comment   string `json:"comment"`
		}
		if !readBody(w, r, &body) {
			return
		}
		s.respond(w, r, http.StatusCreated)(s.service.Submit(ctx, kind, id, body.VersionID, session.UserID, body.Comment))
		return

	case action == "reviews" && len(rest) == 2 && rest[1] == "approved" && r.Method == http.MethodGet:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.LatestApprovedReview(ctx, kind, id))
		return

	case action == "archive" && r.Method == http.MethodGet:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		items, err := s.service.ArchiveHistory(ctx, kind, id, limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return

	case action == "section" && kind == store.KindParagraph && r.Method == http.MethodGet:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		sectionID, err := s.service.SectionIDForParagraph(ctx, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sectionId": sectionID})
		return

	case action == "export" && kind == store.KindBook && r.Method == http.MethodPost:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		s.handleExport(w, r, id)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, bookID int64) {
	var body struct {
		Format string `json:"format"`
		Lang   string `json:"lang"`
		Paper  string `json:"paper"`
	}
	if !readBody(w, r, &body) {
		return
	}
	format, err := export.ParseFormat(body.Format)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "format must be 'html', 'pdf' or 'docx'", nil)
		return
	}
	paper, err := export.ParsePaper(body.Paper)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "paper must be 'a4' or 'letter'", nil)
		return
	}
	result, err := s.service.ExportBook(r.Context(), bookID, ExportOptions{Format: format, Lang: body.Lang, Paper: paper})
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
			writeError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error(), nil)
			return
		}
		s.fail(w, r, err)
		return
	}
	if result.URL != "" {
		writeJSON(w, http.StatusOK, result)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
	w.Header().Set("Content-Type", result.MimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleReviews(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	if len(parts) == 3 && parts[2] == "pending" && r.Method == http.MethodGet {
		if !s.can(w, session, rbac.ActionReview) {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		items, err := s.service.PendingReviews(ctx, limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}

	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	reviewID, ok := pathID(w, parts[2])
	if !ok {
		return
	}

	switch {
	case len(parts) == 3 && r.Method == http.MethodGet:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.GetReview(ctx, reviewID))
		return

	case len(parts) == 4 && (parts[3] == "approve" || parts[3] == "reject") && r.Method == http.MethodPost:
		if !s.can(w, session, rbac.ActionReview) {
			return
		}
		var body struct {
			Comment string `json:"comment"`
		}
		if !readBody(w, r, &body) {
			return
		}
		if parts[3] == "approve" {
			s.respond(w, r, http.StatusOK)(s.service.Approve(ctx, reviewID, session.UserID, body.Comment))
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.Reject(ctx, reviewID, session.UserID, body.Comment))
		return

	case len(parts) == 4 && parts[3] == "comments" && r.Method == http.MethodGet:
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListComments(ctx, reviewID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return

	case len(parts) == 4 && parts[3] == "comments" && r.Method == http.MethodPost:
		if !s.can(w, session, rbac.ActionComment) {
			return
		}
		var body struct {
			VersionID int64  `json:"reviewedVersionId"`
			FieldName string `json:"fieldName"`
			Text      string `json:"commentText"`
		}
		if !readBody(w, r, &body) {
			return
		}
		s.respond(w, r, http.StatusCreated)(s.service.AddComment(ctx, reviewID, body.VersionID, body.FieldName, body.Text, session.UserID))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleComment(w http.ResponseWriter, r *http.Request, session Session, rawID string) {
	commentID, ok := pathID(w, rawID)
	if !ok {
		return
	}
	if !s.can(w, session, rbac.ActionComment) {
		return
	}
	switch r.Method {
	case http.MethodPut:
		var body struct {
			Text string `json:"commentText"`
		}
		if !readBody(w, r, &body) {
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.UpdateComment(r.Context(), commentID, body.Text, session.UserID))
	case http.MethodDelete:
		if err := s.service.DeleteComment(r.Context(), commentID, session.UserID); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": commentID})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	claims, err := auth.ParseToken(s.secret, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return Session{UserID: claims.UserID, Name: claims.Name, Role: rbac.Normalize(claims.Role)}, true
}

// can writes a 403 and returns false when the session's role lacks action.
func (s *HTTPServer) can(w http.ResponseWriter, session Session, action rbac.Action) bool {
	if rbac.Can(session.Role, action) {
		return true
	}
	writeError(w, http.StatusForbidden, CodeForbidden, "Forbidden", map[string]any{"action": action})
	return false
}

// respond returns a writer for a service result: payload on success, the
// mapped error otherwise.
func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, status int) func(any, error) {
	return func(payload any, err error) {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, status, payload)
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError && code == "SERVER_ERROR" {
		requestID, _ := r.Context().Value(requestIDKey{}).(string)
		s.log.Error().Err(err).Str("request_id", requestID).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
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

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
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

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func pathID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return 0, false
	}
	return id, true
}

func optionalID(w http.ResponseWriter, r *http.Request, name string) (*int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, name+" must be a positive integer", nil)
		return nil, false
	}
	return &id, true
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
