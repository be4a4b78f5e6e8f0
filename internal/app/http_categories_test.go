package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

func TestCategoryLifecycleOverHTTP(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	cookie := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/categories", `{"name":"media"}`, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got status %d body %s, want 201", rec.Code, rec.Body.String())
	}
	payload := decodeJSONBody(t, rec)
	id := int64(payload["id"].(float64))

	rec = doJSON(t, handler, http.MethodPost, "/api/categories", `{"name":"media"}`, cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate name: got status %d, want 409", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/categories", `{"name":""}`, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name: got status %d, want 400", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, fmt.Sprintf("/api/categories/%d", id), `{"name":"video"}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: got status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/categories/999", `{"name":"x"}`, cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("rename unknown id: got status %d, want 404", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/categories/%d", id), "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: got status %d, want 200", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/categories/%d", id), "", cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("repeat delete: got status %d, want 404", rec.Code)
	}
}

func TestDeleteCategoryBlockedWhileReferenced(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	cookie := login(t, handler)
	categoryID := seedCategory(t, fs, "media")
	serviceID := seedService(t, fs, "jellyfin", categoryID)

	rec := doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/categories/%d", categoryID), "", cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete referenced category: got status %d, want 409", rec.Code)
	}
	if payload := decodeJSONBody(t, rec); payload["code"] != "CONFLICT" {
		t.Errorf("got code %v, want CONFLICT", payload["code"])
	}
	if _, err := fs.GetCategory(context.Background(), categoryID); err != nil {
		t.Error("category removed despite the referential block")
	}

	// Removing the last service unblocks the delete.
	rec = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/services/%d", serviceID), "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete service: got status %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/categories/%d", categoryID), "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete emptied category: got status %d, want 200", rec.Code)
	}
}

func TestListCategoriesIncludesServiceCounts(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	cookie := login(t, handler)
	mediaID := seedCategory(t, fs, "media")
	seedCategory(t, fs, "empty")
	seedService(t, fs, "jellyfin", mediaID)
	seedService(t, fs, "sonarr", mediaID)

	rec := doJSON(t, handler, http.MethodGet, "/api/categories", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	var categories []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &categories); err != nil {
		t.Fatalf("decode: %v", err)
	}
	counts := make(map[string]float64, len(categories))
	for _, c := range categories {
		counts[c["name"].(string)] = c["service_count"].(float64)
	}
	if counts["media"] != 2 || counts["empty"] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
}
