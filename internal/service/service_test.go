package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shortly-app/shortly/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errUnknown = errors.New("unknown error")

type MockURLRepository struct {
	mock.Mock
}

func (r *MockURLRepository) Create(ctx context.Context, originalURL, shortPath string, expiresAt *time.Time) (*entity.ShortURL, error) {
	args := r.Called(ctx, originalURL, shortPath, expiresAt)
	url, _ := args.Get(0).(*entity.ShortURL)
	return url, args.Error(1)
}

func (r *MockURLRepository) Update(ctx context.Context, shortPath, originalURL string) (*entity.ShortURL, error) {
	args := r.Called(ctx, shortPath, originalURL)
	url, _ := args.Get(0).(*entity.ShortURL)
	return url, args.Error(1)
}

func (r *MockURLRepository) Delete(ctx context.Context, shortPath string) error {
	args := r.Called(ctx, shortPath)
	return args.Error(0)
}

func (r *MockURLRepository) List(ctx context.Context, offset, limit int) (*entity.URLPage, error) {
	args := r.Called(ctx, offset, limit)
	page, _ := args.Get(0).(*entity.URLPage)
	return page, args.Error(1)
}

func (r *MockURLRepository) RecordAccess(ctx context.Context, shortPath string, ipAddress, userAgent *string) (*entity.ShortURL, error) {
	args := r.Called(ctx, shortPath, ipAddress, userAgent)
	url, _ := args.Get(0).(*entity.ShortURL)
	return url, args.Error(1)
}

func (r *MockURLRepository) Stats(ctx context.Context, shortPath string) (*entity.URLStats, error) {
	args := r.Called(ctx, shortPath)
	stats, _ := args.Get(0).(*entity.URLStats)
	return stats, args.Error(1)
}

func setupURLService(t testing.TB) (*URLService, *MockURLRepository) {
	t.Helper()

	repoMock := new(MockURLRepository)
	svc := NewURLService(repoMock)

	t.Cleanup(func() {
		repoMock.AssertExpectations(t)
	})

	return svc, repoMock
}

var generatedPathPattern = regexp.MustCompile(`^[a-z0-9]{6}$`)

func isGeneratedPath(s string) bool {
	return generatedPathPattern.MatchString(s)
}

func TestURLService_CreateURL(t *testing.T) {
	ctx := context.Background()

	t.Run("caller-supplied path is used as-is", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		want := &entity.ShortURL{ShortPath: "custom", OriginalURL: "https://example.com"}
		repoMock.
			On("Create", ctx, "https://example.com", "custom", (*time.Time)(nil)).
			Once().
			Return(want, nil)

		url, err := svc.CreateURL(ctx, "https://example.com", "custom", nil)

		require.NoError(t, err)
		assert.Equal(t, want, url)
	})

	t.Run("caller-supplied path conflict surfaces without retry", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		repoMock.
			On("Create", ctx, "https://example.com", "custom", (*time.Time)(nil)).
			Once().
			Return(nil, entity.ErrShortPathExists)

		url, err := svc.CreateURL(ctx, "https://example.com", "custom", nil)

		assert.Error(t, err)
		assert.ErrorIs(t, err, entity.ErrShortPathExists)
		assert.Nil(t, url)
	})

	t.Run("generated path is six lowercase alphanumerics", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		want := &entity.ShortURL{OriginalURL: "https://example.com"}
		repoMock.
			On("Create", ctx, "https://example.com", mock.MatchedBy(isGeneratedPath), (*time.Time)(nil)).
			Once().
			Return(want, nil)

		url, err := svc.CreateURL(ctx, "https://example.com", "", nil)

		require.NoError(t, err)
		assert.Equal(t, want, url)
	})

	t.Run("generated path collision retries with a fresh token", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		want := &entity.ShortURL{OriginalURL: "https://example.com"}
		repoMock.
			On("Create", ctx, "https://example.com", mock.MatchedBy(isGeneratedPath), (*time.Time)(nil)).
			Once().
			Return(nil, entity.ErrShortPathExists)
		repoMock.
			On("Create", ctx, "https://example.com", mock.MatchedBy(isGeneratedPath), (*time.Time)(nil)).
			Once().
			Return(want, nil)

		url, err := svc.CreateURL(ctx, "https://example.com", "", nil)

		require.NoError(t, err)
		assert.Equal(t, want, url)
	})

	t.Run("maximum retries error", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		repoMock.
			On("Create", ctx, "https://example.com", mock.MatchedBy(isGeneratedPath), (*time.Time)(nil)).
			Times(maxRetries).
			Return(nil, entity.ErrShortPathExists)

		url, err := svc.CreateURL(ctx, "https://example.com", "", nil)

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.Nil(t, url)
	})

	t.Run("positive expiry lands in the future", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		days := 7.0
		want := &entity.ShortURL{ShortPath: "custom", OriginalURL: "https://example.com"}
		repoMock.
			On("Create", ctx, "https://example.com", "custom", mock.MatchedBy(func(expiresAt *time.Time) bool {
				return expiresAt != nil && expiresAt.After(time.Now().Add(6*24*time.Hour))
			})).
			Once().
			Return(want, nil)

		url, err := svc.CreateURL(ctx, "https://example.com", "custom", &days)

		require.NoError(t, err)
		assert.Equal(t, want, url)
	})

	t.Run("negative expiry creates an already-expired url", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		days := -1.0
		want := &entity.ShortURL{ShortPath: "custom", OriginalURL: "https://example.com"}
		repoMock.
			On("Create", ctx, "https://example.com", "custom", mock.MatchedBy(func(expiresAt *time.Time) bool {
				return expiresAt != nil && expiresAt.Before(time.Now())
			})).
			Once().
			Return(want, nil)

		url, err := svc.CreateURL(ctx, "https://example.com", "custom", &days)

		require.NoError(t, err)
		assert.Equal(t, want, url)
	})

	t.Run("unknown error", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		repoMock.
			On("Create", ctx, "https://example.com", mock.MatchedBy(isGeneratedPath), (*time.Time)(nil)).
			Once().
			Return(nil, errUnknown)

		url, err := svc.CreateURL(ctx, "https://example.com", "", nil)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, url)
	})
}

func TestURLService_ModifyURL(t *testing.T) {
	ctx := context.Background()

	t.Run("url not found", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		repoMock.
			On("Update", ctx, "abc123", "https://new-example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, err := svc.ModifyURL(ctx, "abc123", "https://new-example.com")

		assert.Error(t, err)
		assert.ErrorIs(t, err, entity.ErrURLNotFound)
		assert.Nil(t, url)
	})

	t.Run("success", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		want := &entity.ShortURL{ShortPath: "abc123", OriginalURL: "https://new-example.com"}
		repoMock.
			On("Update", ctx, "abc123", "https://new-example.com").
			Once().
			Return(want, nil)

		url, err := svc.ModifyURL(ctx, "abc123", "https://new-example.com")

		require.NoError(t, err)
		assert.Equal(t, want, url)
	})
}

func TestURLService_DeleteURL(t *testing.T) {
	ctx := context.Background()

	t.Run("url not found", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		repoMock.
			On("Delete", ctx, "abc123").
			Once().
			Return(entity.ErrURLNotFound)

		err := svc.DeleteURL(ctx, "abc123")

		assert.Error(t, err)
		assert.ErrorIs(t, err, entity.ErrURLNotFound)
	})

	t.Run("success", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		repoMock.
			On("Delete", ctx, "abc123").
			Once().
			Return(nil)

		err := svc.DeleteURL(ctx, "abc123")

		assert.NoError(t, err)
	})
}

func TestURLService_ListURLs(t *testing.T) {
	ctx := context.Background()

	t.Run("first page starts at zero offset", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		want := &entity.URLPage{TotalItems: 0, Items: []entity.ShortURL{}}
		repoMock.
			On("List", ctx, 0, 100).
			Once().
			Return(want, nil)

		page, err := svc.ListURLs(ctx, 1, 100)

		require.NoError(t, err)
		assert.Equal(t, want, page)
	})

	t.Run("offset follows page arithmetic", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		want := &entity.URLPage{TotalItems: 25}
		repoMock.
			On("List", ctx, 20, 10).
			Once().
			Return(want, nil)

		page, err := svc.ListURLs(ctx, 3, 10)

		require.NoError(t, err)
		assert.Equal(t, want, page)
	})

	t.Run("unknown error", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		repoMock.
			On("List", ctx, 0, 100).
			Once().
			Return(nil, errUnknown)

		page, err := svc.ListURLs(ctx, 1, 100)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, page)
	})
}

func TestURLService_Redirect(t *testing.T) {
	ctx := context.Background()
	ip := "203.0.113.7"
	ua := "curl/8.0"

	t.Run("url not found", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		repoMock.
			On("RecordAccess", ctx, "abc123", &ip, &ua).
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, err := svc.Redirect(ctx, "abc123", &ip, &ua)

		assert.Error(t, err)
		assert.ErrorIs(t, err, entity.ErrURLNotFound)
		assert.Nil(t, url)
	})

	t.Run("expired url", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		repoMock.
			On("RecordAccess", ctx, "abc123", &ip, &ua).
			Once().
			Return(nil, entity.ErrURLExpired)

		url, err := svc.Redirect(ctx, "abc123", &ip, &ua)

		assert.Error(t, err)
		assert.ErrorIs(t, err, entity.ErrURLExpired)
		assert.Nil(t, url)
	})

	t.Run("success", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		want := &entity.ShortURL{ShortPath: "abc123", OriginalURL: "https://example.com"}
		repoMock.
			On("RecordAccess", ctx, "abc123", &ip, &ua).
			Once().
			Return(want, nil)

		url, err := svc.Redirect(ctx, "abc123", &ip, &ua)

		require.NoError(t, err)
		assert.Equal(t, want, url)
	})
}

func TestURLService_GetURLStats(t *testing.T) {
	ctx := context.Background()

	t.Run("url not found", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		repoMock.
			On("Stats", ctx, "abc123").
			Once().
			Return(nil, entity.ErrURLNotFound)

		stats, err := svc.GetURLStats(ctx, "abc123")

		assert.Error(t, err)
		assert.ErrorIs(t, err, entity.ErrURLNotFound)
		assert.Nil(t, stats)
	})

	t.Run("success", func(t *testing.T) {
		svc, repoMock := setupURLService(t)

		want := &entity.URLStats{
			URL:                entity.ShortURL{ShortPath: "abc123", OriginalURL: "https://example.com"},
			TotalAccesses:      5,
			AccessesLast30Days: 3,
		}
		repoMock.
			On("Stats", ctx, "abc123").
			Once().
			Return(want, nil)

		stats, err := svc.GetURLStats(ctx, "abc123")

		require.NoError(t, err)
		assert.Equal(t, want, stats)
	})
}
