// Package postgres stores the resource catalog in a postgres "resources" table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/spigell/resource-matcher/internal/catalog"
)

const (
	listVerifiedQuery = `SELECT id::text, title, category, address, phone, hours, link, tags, description, verified FROM resources WHERE verified = true ORDER BY id`
	insertQuery       = `INSERT INTO resources (title, category, address, phone, hours, link, tags, description, verified) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id::text`
	existsQuery       = `SELECT EXISTS (SELECT 1 FROM resources WHERE title = $1 AND address = $2)`
)

type Config struct {
	DSN            string
	MaxConnections int
}

// Open connects to postgres with the pool settings used by the service.
func Open(cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListVerified returns every verified resource ordered by id.
func (r *Repository) ListVerified(ctx context.Context) (*catalog.Resources, error) {
	rows, err := r.db.QueryContext(ctx, listVerifiedQuery)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	out := catalog.NewResources()
	for rows.Next() {
		var (
			res                row
			phone, hours, link sql.NullString
			tags               []string
		)
		if err := rows.Scan(&res.ID, &res.Title, &res.Category, &res.Address,
			&phone, &hours, &link, pq.Array(&tags), &res.Description, &res.Verified); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		res.Phone = phone.String
		res.Hours = hours.String
		res.Link = link.String
		res.Tags = tags
		out.Items = append(out.Items, res.toResource())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return out, nil
}

// Insert adds resources in one transaction, skipping entries whose title and
// address already exist. It returns how many rows were inserted.
func (r *Repository) Insert(ctx context.Context, resources *catalog.Resources) (int, error) {
	if resources.Len() == 0 {
		return 0, nil
	}
	if err := catalog.Validate(resources); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, res := range resources.Items {
		var exists bool
		if err := tx.QueryRowContext(ctx, existsQuery, res.Title, res.Address).Scan(&exists); err != nil {
			return 0, fmt.Errorf("check resource %q: %w", res.Title, err)
		}
		if exists {
			continue
		}

		tags := []string(res.Tags)
		if tags == nil {
			tags = []string{}
		}

		var id string
		err := tx.QueryRowContext(ctx, insertQuery,
			res.Title, res.Category, res.Address,
			nullString(res.Phone), nullString(res.Hours), nullString(res.Link),
			pq.Array(tags), res.Description, res.Verified,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert resource %q: %w", res.Title, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit resources: %w", err)
	}
	return inserted, nil
}

// row mirrors one row of the resources table.
type row struct {
	ID          string
	Title       string
	Category    string
	Address     string
	Phone       string
	Hours       string
	Link        string
	Tags        []string
	Description string
	Verified    bool
}

func (d row) toResource() *catalog.Resource {
	return &catalog.Resource{
		ID:          catalog.ResourceID(strings.TrimSpace(d.ID)),
		Title:       d.Title,
		Category:    d.Category,
		Address:     d.Address,
		Phone:       d.Phone,
		Hours:       d.Hours,
		Link:        d.Link,
		Tags:        d.Tags,
		Description: d.Description,
		Verified:    d.Verified,
	}
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
