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

	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/archive"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/auth"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/export"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/search"
)

type HTTPServer struct {
	service    *Service
	export     *export.Service
	corsOrigin string
}

func NewHTTPServer(service *Service, exportSvc *export.Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, export: exportSvc, corsOrigin: corsOrigin}
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

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			Name string `json:"name"`
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Login(r.Context(), body.Name, body.Role)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Login failed", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":     session.Token,
			"userName":  session.UserName,
			"userId":    session.UserID,
			"role":      session.Role,
			"expiresAt": session.ExpiresAt,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "userName": session.UserName, "userId": session.UserID, "role": session.Role})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		if _, ok := s.requireSession(w, r); !ok {
			return
		}
		s.handleSearch(w, r)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/properties") {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		s.handleProperties(w, r, session)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	response := s.service.Search(search.Query{
		Text:        query.Get("q"),
		FilterType:  search.ResultType(query.Get("type")),
		FilterStage: query.Get("stage"),
		Limit:       limit,
		Offset:      offset,
	})
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleProperties(w http.ResponseWriter, r *http.Request, session Session) {
	parts := splitPath(r.URL.Path)
	// parts[0] == "api", parts[1] == "properties"

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		properties, err := s.service.ListProperties(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"properties": properties})
		return

	case len(parts) == 2 && r.Method == http.MethodPost:
		var input CreatePropertyInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.CreateProperty(r.Context(), input, session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
		return
	}

	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	propertyID := parts[2]

	switch {
	case len(parts) == 3 && r.Method == http.MethodGet:
		view, err := s.service.GetProperty(r.Context(), propertyID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(parts) == 4 && parts[3] == "fields" && r.Method == http.MethodPut:
		var body struct {
			FieldValues map[string]any `json:"fieldValues"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.UpdateFields(r.Context(), propertyID, body.FieldValues, session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(parts) == 4 && parts[3] == "stage" && r.Method == http.MethodPut:
		var body struct {
			Stage string `json:"stage"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateStage(r.Context(), propertyID, body.Stage); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 4 && parts[3] == "reviews" && r.Method == http.MethodGet:
		view, err := s.service.Reviews(r.Context(), propertyID, session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(parts) == 4 && parts[3] == "history" && r.Method == http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		entries, err := s.service.History(propertyID, limit)
		if err != nil {
			if errors.Is(err, archive.ErrNoArchive) {
				writeJSON(w, http.StatusOK, map[string]any{"history": []any{}})
				return
			}
			writeMappedError(w, err)
			return
		}
		items := make([]map[string]any, 0, len(entries))
		for _, entry := range entries {
			items = append(items, map[string]any{
				"hash":      entry.Hash,
				"message":   strings.TrimSpace(entry.Message),
				"author":    entry.Author,
				"createdAt": entry.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": items})

	case len(parts) == 4 && parts[3] == "archive" && r.Method == http.MethodGet:
		hash := r.URL.Query().Get("hash")
		if hash == "" {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "hash is required", nil)
			return
		}
		blob, err := s.service.ArchivedState(propertyID, hash)
		if err != nil {
			if errors.Is(err, archive.ErrNoArchive) {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
				return
			}
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"hash": hash, "state": json.RawMessage(blob)})

	case len(parts) == 4 && parts[3] == "export" && r.Method == http.MethodGet:
		s.handleExport(w, r, propertyID)

	case len(parts) == 5 && parts[3] == "documents" && r.Method == http.MethodGet:
		names, err := s.service.Documents(r.Context(), propertyID, parts[4])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": names})

	case len(parts) == 6 && parts[3] == "documents" && parts[5] == "url" && r.Method == http.MethodGet:
		url, err := s.service.DocumentURL(r.Context(), propertyID, parts[4], r.URL.Query().Get("name"))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url})

	case len(parts) == 5 && parts[3] == "reviews" && parts[4] == "submit" && r.Method == http.MethodPost:
		view, err := s.service.Submit(r.Context(), propertyID, session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(parts) == 6 && parts[3] == "reviews" && parts[5] == "answer" && r.Method == http.MethodPut:
		var body struct {
			IsCorrect *bool `json:"isCorrect"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.SetAnswer(r.Context(), propertyID, parts[4], body.IsCorrect, session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(parts) == 6 && parts[3] == "reviews" && parts[5] == "comments" && r.Method == http.MethodPut:
		var body struct {
			Comments string `json:"comments"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.SetComments(r.Context(), propertyID, parts[4], body.Comments, session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(parts) == 6 && parts[3] == "reviews" && parts[5] == "resolve" && r.Method == http.MethodPost:
		view, err := s.service.Resolve(r.Context(), propertyID, parts[4], session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, propertyID string) {
	if s.export == nil {
		writeError(w, http.StatusNotImplemented, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
		return
	}
	result, err := s.export.Export(r.Context(), export.Request{PropertyID: propertyID})
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			writeError(w, http.StatusNotImplemented, "EXPORT_UNAVAILABLE", "PDF renderer is not installed", nil)
			return
		}
		writeMappedError(w, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
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
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
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

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
