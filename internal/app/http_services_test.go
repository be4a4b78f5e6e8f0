package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

func TestCreateServiceOverHTTP(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	cookie := login(t, handler)
	categoryID := seedCategory(t, fs, "media")

	body := fmt.Sprintf(`{"name":"jellyfin","category_id":%d,"domain_url":"https://jellyfin.example.com","description":"movies"}`, categoryID)
	rec := doJSON(t, handler, http.MethodPost, "/api/services", body, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d body %s, want 201", rec.Code, rec.Body.String())
	}
	payload := decodeJSONBody(t, rec)
	if _, ok := payload["id"]; !ok {
		t.Errorf("create response missing id: %v", payload)
	}

	// Same name again conflicts.
	rec = doJSON(t, handler, http.MethodPost, "/api/services", body, cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate name: got status %d, want 409", rec.Code)
	}
}

func TestCreateServiceValidation(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	cookie := login(t, handler)
	categoryID := seedCategory(t, fs, "media")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing name", fmt.Sprintf(`{"category_id":%d,"domain_url":"https://x"}`, categoryID), http.StatusBadRequest},
		{"missing domain_url", fmt.Sprintf(`{"name":"x","category_id":%d}`, categoryID), http.StatusBadRequest},
		{"missing category", `{"name":"x","domain_url":"https://x"}`, http.StatusBadRequest},
		{"unknown category", `{"name":"x","category_id":999,"domain_url":"https://x"}`, http.StatusConflict},
		{"malformed json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/services", tt.body, cookie)
			if rec.Code != tt.wantStatus {
				t.Fatalf("got status %d body %s, want %d", rec.Code, rec.Body.String(), tt.wantStatus)
			}
		})
	}
}

func TestUpdateServiceOverHTTP(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	cookie := login(t, handler)
	categoryID := seedCategory(t, fs, "media")
	id := seedService(t, fs, "wiki", categoryID)
	seedService(t, fs, "taken", categoryID)

	rec := doJSON(t, handler, http.MethodPut, fmt.Sprintf("/api/services/%d", id), `{"description":"team wiki"}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("partial update: got status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPut, fmt.Sprintf("/api/services/%d", id), `{"name":"taken"}`, cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("rename onto existing name: got status %d, want 409", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, fmt.Sprintf("/api/services/%d", id), `{"name":""}`, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name: got status %d, want 400", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/services/999", `{"description":"x"}`, cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: got status %d, want 404", rec.Code)
	}
}

func TestDeleteServiceOverHTTP(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	cookie := login(t, handler)
	categoryID := seedCategory(t, fs, "media")
	id := seedService(t, fs, "wiki", categoryID)

	rec := doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/services/%d", id), "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: got status %d, want 200", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/services/%d", id), "", cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("repeat delete: got status %d, want 404", rec.Code)
	}
}

func TestReorderOverHTTP(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	cookie := login(t, handler)
	categoryID := seedCategory(t, fs, "media")
	a := seedService(t, fs, "alpha", categoryID)
	b := seedService(t, fs, "beta", categoryID)
	c := seedService(t, fs, "gamma", categoryID)

	rec := doJSON(t, handler, http.MethodPost, "/api/services/reorder",
		fmt.Sprintf(`[%d,%d,%d]`, c, a, b), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder: got status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/services", "", cookie)
	var services []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &services); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	wantNames := []string{"gamma", "alpha", "beta"}
	for i, svc := range services {
		if svc["name"] != wantNames[i] {
			t.Errorf("position %d: got %v, want %s", i, svc["name"], wantNames[i])
		}
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/services/reorder",
		fmt.Sprintf(`[%d]`, a), cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("partial reorder: got status %d, want 400", rec.Code)
	}
}

func TestPublicServicesProjection(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	categoryID := seedCategory(t, fs, "media")
	seedService(t, fs, "jellyfin", categoryID)

	rec := doJSON(t, handler, http.MethodGet, "/api/public/services", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	var services []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &services); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(services) != 1 {
		t.Fatalf("got %d services, want 1", len(services))
	}
	svc := services[0]
	if svc["name"] != "jellyfin" || svc["category"] != "media" {
		t.Errorf("unexpected projection: %v", svc)
	}
	for _, hidden := range []string{"id", "sort_order", "category_id"} {
		if _, ok := svc[hidden]; ok {
			t.Errorf("public projection leaks %q", hidden)
		}
	}
}

func TestPublicServicesCategoryFilter(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	mediaID := seedCategory(t, fs, "media")
	toolsID := seedCategory(t, fs, "tools")
	seedService(t, fs, "jellyfin", mediaID)
	seedService(t, fs, "wiki", toolsID)

	tests := []struct {
		filter string
		want   int
	}{
		{"", 2},
		{"all", 2},
		{"media", 1},
		{"MEDIA", 1},
		{"missing", 0},
	}
	for _, tt := range tests {
		rec := doJSON(t, handler, http.MethodGet, "/api/public/services?category="+tt.filter, "")
		var services []map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &services); err != nil {
			t.Fatalf("filter %q: decode: %v", tt.filter, err)
		}
		if len(services) != tt.want {
			t.Errorf("filter %q: got %d services, want %d", tt.filter, len(services), tt.want)
		}
	}
}

func TestPublicSearchFallsBackToStore(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	categoryID := seedCategory(t, fs, "media")
	seedService(t, fs, "jellyfin", categoryID)
	seedService(t, fs, "wiki", categoryID)

	rec := doJSON(t, handler, http.MethodGet, "/api/public/search?q=jelly", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	payload := decodeJSONBody(t, rec)
	results, ok := payload["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("got results %v, want exactly one hit", payload["results"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/public/search?q=", "")
	payload = decodeJSONBody(t, rec)
	if results, ok := payload["results"].([]any); !ok || len(results) != 0 {
		t.Errorf("blank query: got results %v, want empty list", payload["results"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	handler := newTestHandler(t, newFakeStore())

	for _, path := range []string{"/api/health", "/api/ready"} {
		rec := doJSON(t, handler, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: got status %d, want 200", path, rec.Code)
		}
	}
}
