package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shortly-app/shortly/internal/entity"
)

type urlRecord struct {
	ID          int64        `db:"id"`
	OriginalURL string       `db:"original_url"`
	ShortPath   string       `db:"short_path"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
	ExpiresAt   sql.NullTime `db:"expires_at"`
}

func (r *urlRecord) toEntity() *entity.ShortURL {
	url := &entity.ShortURL{
		ID:          r.ID,
		OriginalURL: r.OriginalURL,
		ShortPath:   r.ShortPath,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}

	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time.UTC()
		url.ExpiresAt = &t
	}

	return url
}

type accessLogRecord struct {
	ID         int64          `db:"id"`
	URLID      int64          `db:"url_id"`
	AccessedAt time.Time      `db:"accessed_at"`
	IPAddress  sql.NullString `db:"ip_address"`
	UserAgent  sql.NullString `db:"user_agent"`
}

func (r *accessLogRecord) toEntity() entity.AccessLog {
	log := entity.AccessLog{
		ID:         r.ID,
		URLID:      r.URLID,
		AccessedAt: r.AccessedAt.UTC(),
	}

	if r.IPAddress.Valid {
		log.IPAddress = &r.IPAddress.String
	}
	if r.UserAgent.Valid {
		log.UserAgent = &r.UserAgent.String
	}

	return log
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Create inserts a new shortened URL. Uniqueness of the short path is enforced
// by the urls.short_path unique constraint, so two racing creates with the
// same path cannot both succeed; the loser observes entity.ErrShortPathExists.
func (r *URLRepository) Create(ctx context.Context, originalURL, shortPath string, expiresAt *time.Time) (*entity.ShortURL, error) {
	const op = "repository.postgres.URLRepository.Create"
	const query = `INSERT INTO urls(original_url, short_path, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *`

	var rec urlRecord

	if err := r.db.GetContext(ctx, &rec, query, originalURL, shortPath, expiresAt); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortPathExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return rec.toEntity(), nil
}

// Update changes the original URL and bumps updated_at. The short path itself
// is immutable after creation.
func (r *URLRepository) Update(ctx context.Context, shortPath, originalURL string) (*entity.ShortURL, error) {
	const op = "repository.postgres.URLRepository.Update"
	const query = `UPDATE urls
		SET original_url = $1, updated_at = now()
		WHERE short_path = $2
		RETURNING *`

	var rec urlRecord

	if err := r.db.GetContext(ctx, &rec, query, originalURL, shortPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update urls table row: %w", op, err)
	}

	return rec.toEntity(), nil
}

// Delete removes the URL and all its access logs in one transaction, so the
// logs can never outlive their parent row.
func (r *URLRepository) Delete(ctx context.Context, shortPath string) error {
	const op = "repository.postgres.URLRepository.Delete"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var urlID int64

	if err := tx.GetContext(ctx, &urlID, `SELECT id FROM urls WHERE short_path = $1`, shortPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM access_logs WHERE url_id = $1`, urlID); err != nil {
		return fmt.Errorf("%s: failed to delete from access_logs table: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM urls WHERE id = $1`, urlID); err != nil {
		return fmt.Errorf("%s: failed to delete from urls table: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

// List returns one page of URLs ordered by creation time, newest first,
// along with the total row count computed independently of the page bounds.
func (r *URLRepository) List(ctx context.Context, offset, limit int) (*entity.URLPage, error) {
	const op = "repository.postgres.URLRepository.List"

	var total int64

	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM urls`); err != nil {
		return nil, fmt.Errorf("%s: failed to count urls table rows: %w", op, err)
	}

	const query = `SELECT * FROM urls
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	var recs []urlRecord

	if err := r.db.SelectContext(ctx, &recs, query, limit, offset); err != nil {
		return nil, fmt.Errorf("%s: failed to select from urls table: %w", op, err)
	}

	page := &entity.URLPage{
		TotalItems: total,
		Items:      make([]entity.ShortURL, 0, len(recs)),
	}
	for i := range recs {
		page.Items = append(page.Items, *recs[i].toEntity())
	}

	return page, nil
}

// RecordAccess resolves a short path for a redirect. It locks the URL row with
// FOR UPDATE so concurrent redirects and deletes against the same path
// serialize their expiry check and log insert, then appends one access log
// within the same transaction. An expired URL commits the no-op read and
// returns entity.ErrURLExpired without writing a log.
func (r *URLRepository) RecordAccess(ctx context.Context, shortPath string, ipAddress, userAgent *string) (*entity.ShortURL, error) {
	const op = "repository.postgres.URLRepository.RecordAccess"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var rec urlRecord

	if err := tx.GetContext(ctx, &rec, `SELECT * FROM urls WHERE short_path = $1 FOR UPDATE`, shortPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to lock urls table row: %w", op, err)
	}

	url := rec.toEntity()

	if url.ExpiredAt(time.Now()) {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
		}

		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLExpired)
	}

	const insertQuery = `INSERT INTO access_logs(url_id, accessed_at, ip_address, user_agent)
		VALUES ($1, now(), $2, $3)`

	if _, err := tx.ExecContext(ctx, insertQuery, url.ID, ipAddress, userAgent); err != nil {
		return nil, fmt.Errorf("%s: failed to insert into access_logs table: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return url, nil
}

// Stats returns the URL together with its access aggregates and the 10 most
// recent access logs, newest first.
func (r *URLRepository) Stats(ctx context.Context, shortPath string) (*entity.URLStats, error) {
	const op = "repository.postgres.URLRepository.Stats"

	var rec urlRecord

	if err := r.db.GetContext(ctx, &rec, `SELECT * FROM urls WHERE short_path = $1`, shortPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	const countQuery = `SELECT
			COUNT(*) AS total_accesses,
			COUNT(*) FILTER (WHERE accessed_at >= now() - INTERVAL '30 days') AS accesses_last_30_days
		FROM access_logs
		WHERE url_id = $1`

	var counts struct {
		TotalAccesses      int64 `db:"total_accesses"`
		AccessesLast30Days int64 `db:"accesses_last_30_days"`
	}

	if err := r.db.GetContext(ctx, &counts, countQuery, rec.ID); err != nil {
		return nil, fmt.Errorf("%s: failed to count access_logs table rows: %w", op, err)
	}

	const logsQuery = `SELECT * FROM access_logs
		WHERE url_id = $1
		ORDER BY accessed_at DESC, id DESC
		LIMIT 10`

	var logRecs []accessLogRecord

	if err := r.db.SelectContext(ctx, &logRecs, logsQuery, rec.ID); err != nil {
		return nil, fmt.Errorf("%s: failed to select from access_logs table: %w", op, err)
	}

	stats := &entity.URLStats{
		URL:                *rec.toEntity(),
		TotalAccesses:      counts.TotalAccesses,
		AccessesLast30Days: counts.AccessesLast30Days,
		RecentLogs:         make([]entity.AccessLog, 0, len(logRecs)),
	}
	for i := range logRecs {
		stats.RecentLogs = append(stats.RecentLogs, logRecs[i].toEntity())
	}

	return stats, nil
}
