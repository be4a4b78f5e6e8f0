package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// ── Categories ──

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]CategorySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, COUNT(sv.id)
		FROM categories c
		LEFT JOIN services sv ON sv.category_id = c.id
		GROUP BY c.id, c.name
		ORDER BY c.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	items := make([]CategorySummary, 0)
	for rows.Next() {
		var item CategorySummary
		if err := rows.Scan(&item.ID, &item.Name, &item.ServiceCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) GetCategory(ctx context.Context, id int64) (Category, error) {
	var item Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name FROM categories WHERE id=?
	`, id).Scan(&item.ID, &item.Name)
	if err != nil {
		return Category{}, err
	}
	return item, nil
}

func (s *SQLiteStore) InsertCategory(ctx context.Context, name string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category insert id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) UpdateCategory(ctx context.Context, id int64, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE categories SET name=? WHERE id=?`, name, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) DeleteCategory(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) CategoryServiceCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM services WHERE category_id=?`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count category services: %w", err)
	}
	return count, nil
}

// ── Services ──

const serviceColumns = `
	sv.id, sv.name, sv.category_id, c.name, sv.ip_url, sv.domain_url,
	sv.description, sv.icon, sv.sort_order`

func scanService(row interface{ Scan(...any) error }) (Service, error) {
	var item Service
	err := row.Scan(&item.ID, &item.Name, &item.CategoryID, &item.Category,
		&item.IPURL, &item.DomainURL, &item.Description, &item.Icon, &item.SortOrder)
	return item, err
}

// ListServices returns services in display order, each carrying its joined
// category name. categoryFilter narrows to one category, case-insensitively;
// "" or "all" means no filter.
func (s *SQLiteStore) ListServices(ctx context.Context, categoryFilter string) ([]Service, error) {
	query := `
		SELECT ` + serviceColumns + `
		FROM services sv
		JOIN categories c ON c.id = sv.category_id`
	args := []any{}
	if categoryFilter != "" && !strings.EqualFold(categoryFilter, "all") {
		query += `
		WHERE lower(c.name) = lower(?)`
		args = append(args, categoryFilter)
	}
	query += `
		ORDER BY sv.sort_order ASC, sv.id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	items := make([]Service, 0)
	for rows.Next() {
		item, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) GetService(ctx context.Context, id int64) (Service, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+serviceColumns+`
		FROM services sv
		JOIN categories c ON c.id = sv.category_id
		WHERE sv.id=?
	`, id)
	return scanService(row)
}

// InsertService assigns the next sort_order and inserts the row in one
// transaction so concurrent creates cannot claim the same position.
func (s *SQLiteStore) InsertService(ctx context.Context, svc Service) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert service: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextOrder int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order), 0) + 1 FROM services`).Scan(&nextOrder); err != nil {
		return 0, fmt.Errorf("next sort order: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO services (name, category_id, ip_url, domain_url, description, icon, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, svc.Name, svc.CategoryID, svc.IPURL, svc.DomainURL, svc.Description, svc.Icon, nextOrder)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("service insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert service: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) UpdateService(ctx context.Context, svc Service) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE services
		SET name=?, category_id=?, ip_url=?, domain_url=?, description=?, icon=?
		WHERE id=?
	`, svc.Name, svc.CategoryID, svc.IPURL, svc.DomainURL, svc.Description, svc.Icon, svc.ID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteServiceAndRenumber removes the row and closes the gap it leaves:
// every service ordered after it moves down one slot. Both statements commit
// together or not at all, keeping sort_order a dense 1..N sequence.
func (s *SQLiteStore) DeleteServiceAndRenumber(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete service: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var deletedOrder int
	if err := tx.QueryRowContext(ctx, `SELECT sort_order FROM services WHERE id=?`, id).Scan(&deletedOrder); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM services WHERE id=?`, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE services SET sort_order = sort_order - 1 WHERE sort_order > ?
	`, deletedOrder); err != nil {
		return fmt.Errorf("renumber services: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete service: %w", err)
	}
	return nil
}

// ReorderServices rewrites sort_order to 1..N following ids. The id list must
// be a permutation of the current service set; the check runs inside the same
// transaction as the rewrite, so a concurrent insert cannot slip between
// validation and commit and end up sharing a slot.
func (s *SQLiteStore) ReorderServices(ctx context.Context, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM services`)
	if err != nil {
		return fmt.Errorf("read service ids: %w", err)
	}
	current := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan service id: %w", err)
		}
		current[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate service ids: %w", err)
	}
	rows.Close()

	if len(ids) != len(current) {
		return ErrReorderSetMismatch
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return ErrReorderSetMismatch
		}
		if _, ok := current[id]; !ok {
			return ErrReorderSetMismatch
		}
		seen[id] = struct{}{}
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE services SET sort_order=? WHERE id=?`)
	if err != nil {
		return fmt.Errorf("prepare reorder: %w", err)
	}
	defer stmt.Close()

	for index, id := range ids {
		if _, err := stmt.ExecContext(ctx, index+1, id); err != nil {
			return fmt.Errorf("reorder service %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

// SearchServices is the fallback search used when Meilisearch is not
// configured or unhealthy: a case-insensitive substring match over name and
// description, display-ordered.
func (s *SQLiteStore) SearchServices(ctx context.Context, query string, limit int) ([]Service, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+serviceColumns+`
		FROM services sv
		JOIN categories c ON c.id = sv.category_id
		WHERE lower(sv.name) LIKE ? OR lower(sv.description) LIKE ?
		ORDER BY sv.sort_order ASC, sv.id ASC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search services: %w", err)
	}
	defer rows.Close()

	items := make([]Service, 0)
	for rows.Next() {
		item, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return items, nil
}

// ── Auth ──

func (s *SQLiteStore) GetCredential(ctx context.Context) (AdminCredential, error) {
	var item AdminCredential
	err := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash FROM auth LIMIT 1
	`).Scan(&item.ID, &item.PasswordHash)
	if err != nil {
		return AdminCredential{}, err
	}
	return item, nil
}

// SetCredential replaces the singleton credential row, creating it if absent.
// The fixed id keeps the upsert a single atomic statement, so concurrent
// first-run seeds cannot produce two rows.
func (s *SQLiteStore) SetCredential(ctx context.Context, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth (id, password_hash) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET password_hash=excluded.password_hash
	`, passwordHash)
	if err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
