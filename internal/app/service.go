package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"navboard/api/internal/authpw"
	"navboard/api/internal/config"
	"navboard/api/internal/search"
	"navboard/api/internal/session"
	"navboard/api/internal/snapshot"
	"navboard/api/internal/store"
)

const defaultCategoryName = "default"

type dataStore interface {
	ListCategories(context.Context) ([]store.CategorySummary, error)
	GetCategory(context.Context, int64) (store.Category, error)
	InsertCategory(context.Context, string) (int64, error)
	UpdateCategory(context.Context, int64, string) error
	DeleteCategory(context.Context, int64) error
	CategoryServiceCount(context.Context, int64) (int, error)
	ListServices(context.Context, string) ([]store.Service, error)
	GetService(context.Context, int64) (store.Service, error)
	InsertService(context.Context, store.Service) (int64, error)
	UpdateService(context.Context, store.Service) error
	DeleteServiceAndRenumber(context.Context, int64) error
	ReorderServices(context.Context, []int64) error
	SearchServices(context.Context, string, int) ([]store.Service, error)
	GetCredential(context.Context) (store.AdminCredential, error)
	SetCredential(context.Context, string) error
	Ping(context.Context) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  session.Store
	search    *search.Service
	snapshots *snapshot.Capturer
}

func New(cfg config.Config, dataStore *store.SQLiteStore, sessions session.Store, searchService *search.Service, snapshots *snapshot.Capturer) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		search:    searchService,
		snapshots: snapshots,
	}
}

// Bootstrap seeds the default category and the admin credential when the
// database is empty, and pushes the current service list to the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		if _, err := s.store.InsertCategory(ctx, defaultCategoryName); err != nil {
			return fmt.Errorf("seed default category: %w", err)
		}
		log.Printf("bootstrap: created category %q", defaultCategoryName)
	}

	if _, err := s.store.GetCredential(ctx); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		password := s.cfg.AdminPassword
		if password == "" {
			password = "admin"
			log.Printf("SECURITY WARNING: seeding default admin password %q; set NAVBOARD_ADMIN_PASSWORD or change it via /admin/change-password", password)
		}
		hash, err := authpw.HashPassword(password)
		if err != nil {
			return err
		}
		if err := s.store.SetCredential(ctx, hash); err != nil {
			return fmt.Errorf("seed admin credential: %w", err)
		}
	}

	if s.search != nil {
		services, err := s.store.ListServices(ctx, "")
		if err != nil {
			return err
		}
		records := make([]search.ServiceRecord, 0, len(services))
		for _, svc := range services {
			records = append(records, searchRecord(svc))
		}
		s.search.ReindexAll(records)
	}
	return nil
}

// ── Session gate ──

// Login verifies the shared admin password and opens a session.
func (s *Service) Login(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", validationError("password is required")
	}
	credential, err := s.store.GetCredential(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", unauthorizedError("invalid credentials")
		}
		return "", err
	}
	if !authpw.Verify(credential.PasswordHash, password) {
		return "", unauthorizedError("invalid credentials")
	}
	token, err := s.sessions.Create(ctx, s.cfg.SessionTTL)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// Authenticated reports whether token belongs to a live session, sliding its
// idle window as a side effect.
func (s *Service) Authenticated(ctx context.Context, token string) bool {
	ok, err := s.sessions.Valid(ctx, token)
	if err != nil {
		log.Printf("session lookup failed: %v", err)
		return false
	}
	return ok
}

// Logout revokes the session. Revoking an unknown token is a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, token)
}

// ChangePassword re-verifies the current password, enforces the complexity
// policy on the new one, and persists the new hash.
func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return validationError("oldPassword and newPassword are required")
	}
	credential, err := s.store.GetCredential(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return unauthorizedError("current password is incorrect")
		}
		return err
	}
	if !authpw.Verify(credential.PasswordHash, oldPassword) {
		return unauthorizedError("current password is incorrect")
	}
	if err := authpw.ValidateComplexity(newPassword); err != nil {
		return validationError(err.Error())
	}
	hash, err := authpw.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.SetCredential(ctx, hash)
}

// ── Public reads ──

// PublicService is the safe projection exposed without authentication. It
// never includes row ids, ordering internals, or anything from the auth table.
type PublicService struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	IPURL       string `json:"ip_url"`
	DomainURL   string `json:"domain_url"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`
}

func (s *Service) PublicServices(ctx context.Context, categoryFilter string) ([]PublicService, error) {
	services, err := s.store.ListServices(ctx, categoryFilter)
	if err != nil {
		return nil, err
	}
	items := make([]PublicService, 0, len(services))
	for _, svc := range services {
		items = append(items, PublicService{
			Name:        svc.Name,
			Category:    svc.Category,
			IPURL:       svc.IPURL,
			DomainURL:   svc.DomainURL,
			Description: svc.Description,
			IconURL:     svc.Icon,
		})
	}
	return items, nil
}

type CategoryPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *Service) PublicCategories(ctx context.Context) ([]CategoryPayload, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]CategoryPayload, 0, len(categories))
	for _, c := range categories {
		items = append(items, CategoryPayload{ID: c.ID, Name: c.Name})
	}
	return items, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if strings.TrimSpace(q.Text) == "" {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	if s.search == nil {
		results, err := (&storeSearchFallback{store: s.store}).SearchServices(ctx, q.Text, q.Limit)
		if err != nil {
			log.Printf("search: %v", err)
			return search.Response{Results: []search.Result{}, Query: q.Text}
		}
		return search.Response{Results: results, Total: len(results), Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// ── Service CRUD ──

type ServicePayload struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CategoryID  int64  `json:"category_id"`
	Category    string `json:"category"`
	IPURL       string `json:"ip_url"`
	DomainURL   string `json:"domain_url"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	SortOrder   int    `json:"sort_order"`
}

func servicePayload(svc store.Service) ServicePayload {
	return ServicePayload{
		ID:          svc.ID,
		Name:        svc.Name,
		CategoryID:  svc.CategoryID,
		Category:    svc.Category,
		IPURL:       svc.IPURL,
		DomainURL:   svc.DomainURL,
		Description: svc.Description,
		Icon:        svc.Icon,
		SortOrder:   svc.SortOrder,
	}
}

func (s *Service) ListServices(ctx context.Context) ([]ServicePayload, error) {
	services, err := s.store.ListServices(ctx, "")
	if err != nil {
		return nil, err
	}
	items := make([]ServicePayload, 0, len(services))
	for _, svc := range services {
		items = append(items, servicePayload(svc))
	}
	return items, nil
}

type CreateServiceInput struct {
	Name        string `json:"name"`
	CategoryID  int64  `json:"category_id"`
	IPURL       string `json:"ip_url"`
	DomainURL   string `json:"domain_url"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func (s *Service) CreateService(ctx context.Context, input CreateServiceInput) (int64, error) {
	if strings.TrimSpace(input.Name) == "" {
		return 0, validationError("missing required field: name")
	}
	if strings.TrimSpace(input.DomainURL) == "" {
		return 0, validationError("missing required field: domain_url")
	}
	if input.CategoryID == 0 {
		return 0, validationError("missing required field: category_id")
	}
	if _, err := s.store.GetCategory(ctx, input.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, conflictError("category does not exist")
		}
		return 0, err
	}

	id, err := s.store.InsertService(ctx, store.Service{
		Name:        strings.TrimSpace(input.Name),
		CategoryID:  input.CategoryID,
		IPURL:       input.IPURL,
		DomainURL:   input.DomainURL,
		Description: input.Description,
		Icon:        input.Icon,
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return 0, conflictError("service name already exists")
		}
		return 0, err
	}

	s.indexService(ctx, id)
	return id, nil
}

// UpdateServiceInput carries a partial update: nil fields keep their
// previous value.
type UpdateServiceInput struct {
	Name        *string `json:"name"`
	CategoryID  *int64  `json:"category_id"`
	IPURL       *string `json:"ip_url"`
	DomainURL   *string `json:"domain_url"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}

func (s *Service) UpdateService(ctx context.Context, id int64, input UpdateServiceInput) error {
	existing, err := s.store.GetService(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("service not found")
		}
		return err
	}

	merged := existing
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return validationError("name must not be empty")
		}
		merged.Name = strings.TrimSpace(*input.Name)
	}
	if input.CategoryID != nil {
		if _, err := s.store.GetCategory(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return conflictError("category does not exist")
			}
			return err
		}
		merged.CategoryID = *input.CategoryID
	}
	if input.IPURL != nil {
		merged.IPURL = *input.IPURL
	}
	if input.DomainURL != nil {
		if strings.TrimSpace(*input.DomainURL) == "" {
			return validationError("domain_url must not be empty")
		}
		merged.DomainURL = *input.DomainURL
	}
	if input.Description != nil {
		merged.Description = *input.Description
	}
	if input.Icon != nil {
		merged.Icon = *input.Icon
	}

	if err := s.store.UpdateService(ctx, merged); err != nil {
		if store.IsUniqueViolation(err) {
			return conflictError("service name already exists")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("service not found")
		}
		return err
	}

	s.indexService(ctx, id)
	return nil
}

func (s *Service) DeleteService(ctx context.Context, id int64) error {
	if err := s.store.DeleteServiceAndRenumber(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("service not found")
		}
		if store.IsForeignKeyViolation(err) {
			return conflictError("service is referenced by other data")
		}
		return err
	}
	if s.search != nil {
		s.search.DeleteService(id)
	}
	return nil
}

// ReorderServices rewrites the display order. The id list must contain every
// existing service exactly once; the store validates that inside the reorder
// transaction so the dense 1..N ordering cannot be corrupted by a concurrent
// create.
func (s *Service) ReorderServices(ctx context.Context, ids []int64) error {
	if err := s.store.ReorderServices(ctx, ids); err != nil {
		if errors.Is(err, store.ErrReorderSetMismatch) {
			return validationError(err.Error())
		}
		return err
	}
	return nil
}

// SnapshotService screenshots the service page and stores it as the icon.
func (s *Service) SnapshotService(ctx context.Context, id int64) (string, error) {
	if s.snapshots == nil {
		return "", domainError(http.StatusServiceUnavailable, "SNAPSHOT_UNAVAILABLE", "Snapshot capture not configured", nil)
	}
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", notFoundError("service not found")
		}
		return "", err
	}

	pageURL := svc.DomainURL
	if pageURL == "" {
		pageURL = svc.IPURL
	}
	if pageURL == "" {
		return "", validationError("service has no URL to capture")
	}

	filename, err := s.snapshots.Capture(ctx, pageURL, svc.Name)
	if err != nil {
		return "", fmt.Errorf("capture snapshot: %w", err)
	}

	iconURL := "/icons/" + filename
	icon := iconURL
	if err := s.UpdateService(ctx, id, UpdateServiceInput{Icon: &icon}); err != nil {
		return "", err
	}
	return iconURL, nil
}

// ── Category CRUD ──

type CategorySummaryPayload struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ServiceCount int    `json:"service_count"`
}

func (s *Service) ListCategories(ctx context.Context) ([]CategorySummaryPayload, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]CategorySummaryPayload, 0, len(categories))
	for _, c := range categories {
		items = append(items, CategorySummaryPayload{ID: c.ID, Name: c.Name, ServiceCount: c.ServiceCount})
	}
	return items, nil
}

func (s *Service) CreateCategory(ctx context.Context, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, validationError("missing required field: name")
	}
	id, err := s.store.InsertCategory(ctx, strings.TrimSpace(name))
	if err != nil {
		if store.IsUniqueViolation(err) {
			return 0, conflictError("category name already exists")
		}
		return 0, err
	}
	return id, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, name string) error {
	if strings.TrimSpace(name) == "" {
		return validationError("missing required field: name")
	}
	if err := s.store.UpdateCategory(ctx, id, strings.TrimSpace(name)); err != nil {
		if store.IsUniqueViolation(err) {
			return conflictError("category name already exists")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("category not found")
		}
		return err
	}
	return nil
}

// DeleteCategory refuses to remove a category that still has services, so
// the services table can never hold a dangling reference.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	count, err := s.store.CategoryServiceCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return conflictError("category still has services; delete them first")
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("category not found")
		}
		if store.IsForeignKeyViolation(err) {
			return conflictError("category still has services; delete them first")
		}
		return err
	}
	return nil
}

// Ping verifies the storage backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── Search plumbing ──

func searchRecord(svc store.Service) search.ServiceRecord {
	return search.ServiceRecord{
		ID:          svc.ID,
		Name:        svc.Name,
		Category:    svc.Category,
		DomainURL:   svc.DomainURL,
		Description: svc.Description,
	}
}

func (s *Service) indexService(ctx context.Context, id int64) {
	if s.search == nil {
		return
	}
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		log.Printf("search: reload service %d for indexing: %v", id, err)
		return
	}
	s.search.IndexService(searchRecord(svc))
}

// storeSearchFallback adapts the data store's substring search to the search
// facade's fallback interface.
type storeSearchFallback struct {
	store dataStore
}

func (f *storeSearchFallback) SearchServices(ctx context.Context, query string, limit int) ([]search.Result, error) {
	services, err := f.store.SearchServices(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]search.Result, 0, len(services))
	for _, svc := range services {
		results = append(results, search.Result{
			ID:          svc.ID,
			Name:        svc.Name,
			Category:    svc.Category,
			DomainURL:   svc.DomainURL,
			Description: svc.Description,
		})
	}
	return results, nil
}

// NewSearchFallback exposes the store-backed fallback for wiring in main.
func NewSearchFallback(dataStore *store.SQLiteStore) search.Fallback {
	return &storeSearchFallback{store: dataStore}
}
