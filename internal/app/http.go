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
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"navboard/api/internal/search"
)

const sessionCookieName = "navboard_session"

type HTTPServer struct {
	service    *Service
	corsOrigin string
	staticDir  string
	iconsDir   string
}

func NewHTTPServer(service *Service, corsOrigin, staticDir, iconsDir string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, staticDir: staticDir, iconsDir: iconsDir}
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

	// Public reads (no session required)
	if r.Method == http.MethodGet && r.URL.Path == "/api/public/services" {
		s.handlePublicServices(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/public/categories" {
		payload, err := s.service.PublicCategories(r.Context())
		if err != nil {
			log.Printf("PublicCategories error: %v", err)
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list categories", nil)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/public/search" {
		s.handlePublicSearch(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		authenticated := s.service.Authenticated(r.Context(), sessionToken(r))
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": authenticated})
		return
	}

	// Admin auth routes
	if r.Method == http.MethodPost && r.URL.Path == "/admin/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/admin/logout" {
		_ = s.service.Logout(r.Context(), sessionToken(r))
		clearSessionCookie(w)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/admin/change-password" {
		// Gate first: an anonymous caller learns nothing about the body.
		if !s.requireSession(w, r) {
			return
		}
		s.handleChangePassword(w, r)
		return
	}

	parts := splitPath(r.URL.Path)

	// Gated admin API
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "services" {
		if !s.requireSession(w, r) {
			return
		}
		s.handleServices(w, r, parts)
		return
	}

	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "categories" {
		if !s.requireSession(w, r) {
			return
		}
		s.handleCategories(w, r, parts)
		return
	}

	// Static shells and assets
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		s.handleStatic(w, r, parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handlePublicServices(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	payload, err := s.service.PublicServices(r.Context(), category)
	if err != nil {
		log.Printf("PublicServices error: %v", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list services", nil)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handlePublicSearch(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
		if parsedLimit, err := strconv.Atoi(rawLimit); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}
	payload := s.service.Search(r.Context(), search.Query{
		Text:  strings.TrimSpace(r.URL.Query().Get("q")),
		Limit: limit,
	})
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	token, err := s.service.Login(r.Context(), body.Password)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.ChangePassword(r.Context(), body.OldPassword, body.NewPassword); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request, parts []string) {
	// /api/services
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListServices(r.Context())
			if err != nil {
				log.Printf("ListServices error: %v", err)
				writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list services", nil)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		case http.MethodPost:
			var body CreateServiceInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			id, err := s.service.CreateService(r.Context(), body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"id": id})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	// /api/services/reorder
	if len(parts) == 3 && parts[2] == "reorder" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var ids []int64
		if err := decodeBody(r, &ids); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ReorderServices(r.Context(), ids); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	// /api/services/{id} and /api/services/{id}/snapshot
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if len(parts) == 4 && parts[3] == "snapshot" && r.Method == http.MethodPost {
		iconURL, err := s.service.SnapshotService(r.Context(), id)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"icon_url": iconURL})
		return
	}

	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var body UpdateServiceInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateService(r.Context(), id, body); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case http.MethodDelete:
		if err := s.service.DeleteService(r.Context(), id); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleCategories(w http.ResponseWriter, r *http.Request, parts []string) {
	// /api/categories
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListCategories(r.Context())
			if err != nil {
				log.Printf("ListCategories error: %v", err)
				writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list categories", nil)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		case http.MethodPost:
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			id, err := s.service.CreateCategory(r.Context(), body.Name)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"id": id})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	// /api/categories/{id}
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateCategory(r.Context(), id, body.Name); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case http.MethodDelete:
		if err := s.service.DeleteCategory(r.Context(), id); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleStatic(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case r.URL.Path == "/" || r.URL.Path == "/index.html":
		http.ServeFile(w, r, filepath.Join(s.staticDir, "html", "index.html"))
	case r.URL.Path == "/admin":
		// The admin shell is served regardless of auth state; the API gate
		// protects the data.
		http.ServeFile(w, r, filepath.Join(s.staticDir, "html", "admin.html"))
	case len(parts) > 1 && parts[0] == "static":
		http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))).ServeHTTP(w, r)
	case len(parts) > 1 && parts[0] == "icons":
		http.StripPrefix("/icons/", http.FileServer(http.Dir(s.iconsDir))).ServeHTTP(w, r)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// requireSession rejects with 403 before any other validation runs, so a
// missing session never reveals whether the request was otherwise well-formed.
func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) bool {
	if !s.service.Authenticated(r.Context(), sessionToken(r)) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return false
	}
	return true
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
		setCORSHeaders(writer.Header(), s.corsOrigin, r.Header.Get("Origin"))
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

func setCORSHeaders(header http.Header, corsOrigin, requestOrigin string) {
	// Browsers refuse the "*" wildcard on credentialed requests, so reflect
	// the caller's origin when no concrete origin is configured.
	origin := corsOrigin
	if corsOrigin == "*" && requestOrigin != "" {
		origin = requestOrigin
		header.Add("Vary", "Origin")
	}
	header.Set("Access-Control-Allow-Origin", origin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Cache-Control", "no-store")
}

func setSessionCookie(w http.ResponseWriter, token string) {
	// No Max-Age: the cookie dies with the browser session. The store's
	// sliding TTL enforces the 15-minute idle window server-side.
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
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
	log.Printf("unhandled error: %v", err)
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
