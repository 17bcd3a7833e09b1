// Package service holds the business logic of the shortener: token
// generation, expiry computation and pagination arithmetic. Storage access
// goes through the URLRepository interface.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shortly-app/shortly/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrMaxRetriesExceeded is returned when the maximum number of retries for generating a short path is exceeded.
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short path")

const (
	// shortPathAlphabet restricts generated tokens to lowercase alphanumerics.
	shortPathAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	shortPathLength   = 6
	maxRetries        = 5
)

// URLRepository defines the storage interface the service depends on.
type URLRepository interface {
	// Create inserts a new shortened URL. Returns entity.ErrShortPathExists
	// if the short path is already taken.
	Create(ctx context.Context, originalURL, shortPath string, expiresAt *time.Time) (*entity.ShortURL, error)

	// Update modifies the original URL for a given short path.
	Update(ctx context.Context, shortPath, originalURL string) (*entity.ShortURL, error)

	// Delete removes a URL and all its access logs atomically.
	Delete(ctx context.Context, shortPath string) error

	// List returns one page of URLs, newest first, plus the total row count.
	List(ctx context.Context, offset, limit int) (*entity.URLPage, error)

	// RecordAccess resolves a short path for a redirect and appends one
	// access log in the same transaction.
	RecordAccess(ctx context.Context, shortPath string, ipAddress, userAgent *string) (*entity.ShortURL, error)

	// Stats returns the URL together with its access aggregates.
	Stats(ctx context.Context, shortPath string) (*entity.URLStats, error)
}

// URLService provides methods to manage URL shortening operations.
type URLService struct {
	repo URLRepository
}

// NewURLService creates a new URLService backed by the provided repository.
func NewURLService(repo URLRepository) *URLService {
	return &URLService{repo: repo}
}

// CreateURL registers a new shortened URL. A caller-supplied short path is
// used as-is and surfaces entity.ErrShortPathExists on the first conflict.
// When the path is empty a random 6-character lowercase-alphanumeric token is
// generated, retrying on collision up to a bounded number of attempts.
// A non-nil expiresInDays sets the expiry to now plus that many days;
// fractional and negative values are accepted.
func (s *URLService) CreateURL(ctx context.Context, originalURL, shortPath string, expiresInDays *float64) (*entity.ShortURL, error) {
	const op = "service.URLService.CreateURL"

	var expiresAt *time.Time
	if expiresInDays != nil {
		t := time.Now().UTC().Add(time.Duration(*expiresInDays * float64(24*time.Hour)))
		expiresAt = &t
	}

	if shortPath != "" {
		url, err := s.repo.Create(ctx, originalURL, shortPath, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to create url: %w", op, err)
		}

		return url, nil
	}

	for i := 0; i < maxRetries; i++ {
		generated, err := gonanoid.Generate(shortPathAlphabet, shortPathLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short path: %w", op, err)
		}

		url, err := s.repo.Create(ctx, originalURL, generated, expiresAt)
		if err != nil {
			if errors.Is(err, entity.ErrShortPathExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to create url: %w", op, err)
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ModifyURL updates the original URL associated with a given short path.
func (s *URLService) ModifyURL(ctx context.Context, shortPath, originalURL string) (*entity.ShortURL, error) {
	const op = "service.URLService.ModifyURL"

	url, err := s.repo.Update(ctx, shortPath, originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to modify url: %w", op, err)
	}

	return url, nil
}

// DeleteURL removes the URL associated with the provided short path together
// with its access logs.
func (s *URLService) DeleteURL(ctx context.Context, shortPath string) error {
	const op = "service.URLService.DeleteURL"

	if err := s.repo.Delete(ctx, shortPath); err != nil {
		return fmt.Errorf("%s: failed to delete url: %w", op, err)
	}

	return nil
}

// ListURLs returns the requested page of URLs. Page numbering starts at 1.
func (s *URLService) ListURLs(ctx context.Context, page, perPage int) (*entity.URLPage, error) {
	const op = "service.URLService.ListURLs"

	offset := (page - 1) * perPage

	urls, err := s.repo.List(ctx, offset, perPage)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}

// Redirect resolves the short path for a redirect and records the access.
func (s *URLService) Redirect(ctx context.Context, shortPath string, ipAddress, userAgent *string) (*entity.ShortURL, error) {
	const op = "service.URLService.Redirect"

	url, err := s.repo.RecordAccess(ctx, shortPath, ipAddress, userAgent)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short path: %w", op, err)
	}

	return url, nil
}

// GetURLStats retrieves the access statistics for the URL associated with the
// provided short path.
func (s *URLService) GetURLStats(ctx context.Context, shortPath string) (*entity.URLStats, error) {
	const op = "service.URLService.GetURLStats"

	stats, err := s.repo.Stats(ctx, shortPath)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return stats, nil
}
