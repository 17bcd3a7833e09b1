// Package entity defines the domain entities and errors shared by all layers:
// the ShortURL record, its access logs and the aggregates computed over them.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrShortPathExists is returned when attempting to create a URL with a short path that is already taken.
	ErrShortPathExists = errors.New("short path already taken")
	// ErrURLNotFound is returned when a URL with the specified short path cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned when a redirect is attempted on a URL whose expiry time has passed.
	// The row still exists and remains visible to update, stats, delete and list operations.
	ErrURLExpired = errors.New("url expired")
)

// ShortURL represents a shortened URL.
type ShortURL struct {
	ID          int64      // ID is the unique identifier of the URL in the database.
	OriginalURL string     // OriginalURL is the full URL that the short path resolves to.
	ShortPath   string     // ShortPath is the unique token used in the public redirect path.
	CreatedAt   time.Time  // CreatedAt is the timestamp when the URL was created.
	UpdatedAt   time.Time  // UpdatedAt is the timestamp when the URL was last updated.
	ExpiresAt   *time.Time // ExpiresAt is the optional expiry time; nil means the URL never expires.
}

// ExpiredAt reports whether the URL is expired relative to the given time.
func (u *ShortURL) ExpiredAt(now time.Time) bool {
	return u.ExpiresAt != nil && u.ExpiresAt.Before(now)
}

// AccessLog records a single redirect event for a ShortURL.
type AccessLog struct {
	ID         int64
	URLID      int64
	AccessedAt time.Time
	IPAddress  *string // nil if the client address was unavailable
	UserAgent  *string // nil if the request carried no User-Agent header
}

// URLStats aggregates access statistics for a single ShortURL.
type URLStats struct {
	URL                ShortURL
	TotalAccesses      int64
	AccessesLast30Days int64
	// RecentLogs holds the 10 most recent access logs, newest first.
	RecentLogs []AccessLog
}

// URLPage is one page of the URL listing.
type URLPage struct {
	TotalItems int64 // TotalItems is the full row count, regardless of the requested page.
	Items      []ShortURL
}
