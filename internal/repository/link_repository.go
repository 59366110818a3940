package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"snaplink/internal/apperrs"
	"snaplink/internal/entities"
)

// LinkRepository is the durable-store contract for short links.
//
// Create detects code collisions through the table's unique constraint, never
// through a prior SELECT: the constraint is what closes the check-then-write
// race for custom codes. FindByCode returns the record whether or not it has
// logically expired; the resolver owns the expiry decision.
//
// Stats and ListByOwner are reporting reads and run against the read replica,
// keeping the write path free for inserts and deletes.
type LinkRepository interface {
	Create(ctx context.Context, code, longURL string, owner *string, expiresAt *time.Time) (*entities.ShortLink, error)
	FindByCode(ctx context.Context, code string) (*entities.ShortLink, error)
	DeleteByCode(ctx context.Context, code string) error
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
	Stats(ctx context.Context, code string) (*entities.ShortLink, error)
	ListByOwner(ctx context.Context, owner string) ([]*entities.ShortLink, error)
}

const queryTimeout = 3 * time.Second

type linkRepository struct {
	db      *sql.DB // write path
	replica *sql.DB // reporting reads
}

// NewLinkRepository creates a repository over a primary connection and a
// read replica. Pass the primary twice when no replica is deployed.
func NewLinkRepository(db, replica *sql.DB) LinkRepository {
	return &linkRepository{db: db, replica: replica}
}

const linkColumns = "id, code, long_url, owner, expires_at, created_at"

func scanLink(row *sql.Row) (*entities.ShortLink, error) {
	var link entities.ShortLink
	err := row.Scan(
		&link.ID,
		&link.Code,
		&link.LongURL,
		&link.Owner,
		&link.ExpiresAt,
		&link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// Create inserts a new short link. A unique-constraint violation on code maps
// to apperrs.ErrConflict.
func (r *linkRepository) Create(ctx context.Context, code, longURL string, owner *string, expiresAt *time.Time) (*entities.ShortLink, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Store expiry in UTC so comparisons against NOW() are timezone-safe.
	var expiresAtValue any
	if expiresAt != nil {
		expiresAtValue = expiresAt.UTC()
	}

	query := `
		INSERT INTO short_links (code, long_url, owner, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + linkColumns

	link, err := scanLink(r.db.QueryRowContext(ctx, query, code, longURL, owner, expiresAtValue))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("code %q: %w", code, apperrs.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create short link: %w", err)
	}

	return link, nil
}

// FindByCode returns the record for code, expired or not.
func (r *linkRepository) FindByCode(ctx context.Context, code string) (*entities.ShortLink, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT ` + linkColumns + `
		FROM short_links
		WHERE code = $1
	`

	link, err := scanLink(r.db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find short link: %w", err)
	}

	return link, nil
}

// DeleteByCode removes the record for code. Idempotent: deleting an absent
// code succeeds.
func (r *linkRepository) DeleteByCode(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM short_links WHERE code = $1`, code); err != nil {
		return fmt.Errorf("failed to delete short link: %w", err)
	}
	return nil
}

// DeleteExpiredBefore bulk-deletes records whose expiry passed before t and
// returns how many were purged. Set-based and idempotent, so concurrent
// sweepers are safe.
func (r *linkRepository) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM short_links WHERE expires_at IS NOT NULL AND expires_at < $1`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired links: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return count, nil
}

// Stats returns the reporting view of a link, served from the replica.
func (r *linkRepository) Stats(ctx context.Context, code string) (*entities.ShortLink, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT ` + linkColumns + `
		FROM short_links
		WHERE code = $1
	`

	link, err := scanLink(r.replica.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return link, nil
}

// ListByOwner returns all links registered by owner, newest first, served
// from the replica.
func (r *linkRepository) ListByOwner(ctx context.Context, owner string) ([]*entities.ShortLink, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT ` + linkColumns + `
		FROM short_links
		WHERE owner = $1
		ORDER BY created_at DESC
	`

	rows, err := r.replica.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []*entities.ShortLink
	for rows.Next() {
		var link entities.ShortLink
		err := rows.Scan(
			&link.ID,
			&link.Code,
			&link.LongURL,
			&link.Owner,
			&link.ExpiresAt,
			&link.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan short link: %w", err)
		}
		links = append(links, &link)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
