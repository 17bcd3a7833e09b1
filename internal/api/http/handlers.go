package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/shortly-app/shortly/internal/entity"
)

const (
	defaultPage    = 1
	defaultPerPage = 100
)

type urlService interface {
	CreateURL(ctx context.Context, originalURL, shortPath string, expiresInDays *float64) (*entity.ShortURL, error)
	ModifyURL(ctx context.Context, shortPath, originalURL string) (*entity.ShortURL, error)
	DeleteURL(ctx context.Context, shortPath string) error
	ListURLs(ctx context.Context, page, perPage int) (*entity.URLPage, error)
	Redirect(ctx context.Context, shortPath string, ipAddress, userAgent *string) (*entity.ShortURL, error)
	GetURLStats(ctx context.Context, shortPath string) (*entity.URLStats, error)
}

type urlHandler struct {
	svc      urlService
	validate *validator.Validate
}

func newURLHandler(svc urlService, validate *validator.Validate) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &urlHandler{
		svc:      svc,
		validate: validate,
	}
}

func handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, healthcheckResponse{Status: "ok"})
}

func (h *urlHandler) createURL(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.urlHandler.createURL"

	var req createURLRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	url, err := h.svc.CreateURL(r.Context(), req.OriginalURL, req.ShortPath, req.ExpiresInDays)
	if err != nil {
		if errors.Is(err, entity.ErrShortPathExists) {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, shortPathTakenResponse)
			return
		}

		httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toURLResponse(baseURL(r), url))
}

func (h *urlHandler) updateURL(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.urlHandler.updateURL"

	var req updateURLRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	shortPath := chi.URLParam(r, "shortPath")

	url, err := h.svc.ModifyURL(r.Context(), shortPath, req.OriginalURL)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
			return
		}

		httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLResponse(baseURL(r), url))
}

func (h *urlHandler) deleteURL(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.urlHandler.deleteURL"

	shortPath := chi.URLParam(r, "shortPath")

	if err := h.svc.DeleteURL(r.Context(), shortPath); err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
			return
		}

		httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *urlHandler) listURLs(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.urlHandler.listURLs"

	params, err := parseListURLsParams(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(params); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	page, err := h.svc.ListURLs(r.Context(), params.Page, params.PerPage)
	if err != nil {
		httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toPaginatedURLsResponse(baseURL(r), params, page))
}

func parseListURLsParams(r *http.Request) (listURLsParams, error) {
	params := listURLsParams{
		Page:    defaultPage,
		PerPage: defaultPerPage,
	}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return params, err
		}
		params.Page = page
	}

	if raw := r.URL.Query().Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil {
			return params, err
		}
		params.PerPage = perPage
	}

	return params, nil
}

func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.urlHandler.redirect"

	shortPath := chi.URLParam(r, "shortPath")

	url, err := h.svc.Redirect(r.Context(), shortPath, clientIP(r), userAgent(r))
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrURLNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
		case errors.Is(err, entity.ErrURLExpired):
			render.Status(r, http.StatusGone)
			render.JSON(w, r, urlExpiredResponse)
		default:
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, serverErrorResponse)
		}
		return
	}

	http.Redirect(w, r, url.OriginalURL, http.StatusFound)
}

func (h *urlHandler) getURLStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.urlHandler.getURLStats"

	shortPath := chi.URLParam(r, "shortPath")

	stats, err := h.svc.GetURLStats(r.Context(), shortPath)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
			return
		}

		httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLStatsResponse(baseURL(r), stats))
}

// clientIP extracts the client address set by the RealIP middleware,
// stripping the port when present. Returns nil if unavailable.
func clientIP(r *http.Request) *string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	if addr == "" {
		return nil
	}

	return &addr
}

// userAgent returns the User-Agent header value, or nil if absent.
func userAgent(r *http.Request) *string {
	ua := r.UserAgent()
	if ua == "" {
		return nil
	}

	return &ua
}
