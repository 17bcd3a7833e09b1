package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shortly-app/shortly/internal/entity"
)

const statusError = "error"

// createURLRequest represents the structure for a request to shorten a URL.
// ShortPath is accepted as-is without charset or length validation; reserved
// prefixes are shadowed by route precedence rather than rejected.
type createURLRequest struct {
	OriginalURL   string   `json:"original_url" validate:"required,url"`
	ShortPath     string   `json:"short_path,omitempty"`
	ExpiresInDays *float64 `json:"expires_in_days,omitempty"`
}

// updateURLRequest represents the structure for a request to modify a URL.
type updateURLRequest struct {
	OriginalURL string `json:"original_url" validate:"required,url"`
}

// listURLsParams holds the pagination query parameters, validated before any
// storage call.
type listURLsParams struct {
	Page    int `json:"page" validate:"gte=1"`
	PerPage int `json:"per_page" validate:"gte=1,lte=100"`
}

// urlResponse represents the structure for a response containing shortened URL information.
type urlResponse struct {
	ID          int64      `json:"id"`
	ShortPath   string     `json:"short_path"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func toURLResponse(baseURL string, url *entity.ShortURL) urlResponse {
	return urlResponse{
		ID:          url.ID,
		ShortPath:   url.ShortPath,
		ShortURL:    fmt.Sprintf("%s/%s", baseURL, url.ShortPath),
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
		UpdatedAt:   url.UpdatedAt,
		ExpiresAt:   url.ExpiresAt,
	}
}

// listItemResponse is one element of the paginated listing; on top of the URL
// record it carries the absolute stats URL for the item.
type listItemResponse struct {
	urlResponse
	StatsURL string `json:"stats_url"`
}

// paginatedURLsResponse represents one page of the URL listing.
type paginatedURLsResponse struct {
	TotalItems int64              `json:"total_items"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
	Items      []listItemResponse `json:"items"`
}

func toPaginatedURLsResponse(baseURL string, params listURLsParams, page *entity.URLPage) paginatedURLsResponse {
	resp := paginatedURLsResponse{
		TotalItems: page.TotalItems,
		Page:       params.Page,
		PerPage:    params.PerPage,
		Items:      make([]listItemResponse, 0, len(page.Items)),
	}

	for i := range page.Items {
		url := &page.Items[i]
		resp.Items = append(resp.Items, listItemResponse{
			urlResponse: toURLResponse(baseURL, url),
			StatsURL:    fmt.Sprintf("%s/api/urls/%s/stats", baseURL, url.ShortPath),
		})
	}

	return resp
}

// accessLogResponse represents a single access log entry in the stats payload.
type accessLogResponse struct {
	AccessedAt time.Time `json:"accessed_at"`
	IPAddress  *string   `json:"ip_address"`
	UserAgent  *string   `json:"user_agent"`
}

// urlStatsResponse represents the structure for a response containing URL statistics.
type urlStatsResponse struct {
	ShortURL           string              `json:"short_url"`
	OriginalURL        string              `json:"original_url"`
	TotalAccesses      int64               `json:"total_accesses"`
	AccessesLast30Days int64               `json:"accesses_last_30_days"`
	AccessLogs         []accessLogResponse `json:"access_logs"`
}

func toURLStatsResponse(baseURL string, stats *entity.URLStats) urlStatsResponse {
	resp := urlStatsResponse{
		ShortURL:           fmt.Sprintf("%s/%s", baseURL, stats.URL.ShortPath),
		OriginalURL:        stats.URL.OriginalURL,
		TotalAccesses:      stats.TotalAccesses,
		AccessesLast30Days: stats.AccessesLast30Days,
		AccessLogs:         make([]accessLogResponse, 0, len(stats.RecentLogs)),
	}

	for _, log := range stats.RecentLogs {
		resp.AccessLogs = append(resp.AccessLogs, accessLogResponse{
			AccessedAt: log.AccessedAt,
			IPAddress:  log.IPAddress,
			UserAgent:  log.UserAgent,
		})
	}

	return resp
}

// healthcheckResponse is the liveness payload.
type healthcheckResponse struct {
	Status string `json:"status"`
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response. Internal details are
// logged, never surfaced here.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	urlNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "url not found",
	}

	urlExpiredResponse = errorResponse{
		Status:  statusError,
		Message: "url expired",
	}

	shortPathTakenResponse = errorResponse{
		Status:  statusError,
		Message: "short path already taken",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	case "gte":
		return "value is too small"
	case "lte":
		return "value is too large"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	errs, ok := err.(validator.ValidationErrors)
	if ok {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}

// baseURL reconstructs the absolute base address of the incoming request,
// used to build the short and stats URLs returned in payloads.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
