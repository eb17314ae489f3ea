package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/itabus/internal/pricing"
	"github.com/Simplici0/itabus/internal/store"
)

const maxBodyBytes = 1 << 20

var (
	errBadRequest      = errors.New("bad request")
	errUnauthenticated = errors.New("authentication required")
	errForbidden       = errors.New("forbidden")
)

var (
	badRequestErrs = []error{
		errBadRequest,
		pricing.ErrInvalidHierarchy,
		pricing.ErrInvalidCost,
		pricing.ErrEmptyName,
		pricing.ErrInvalidRate,
		pricing.ErrDegenerateMargin,
		pricing.ErrUnknownItem,
		pricing.ErrDuplicateItem,
		pricing.ErrNotBillable,
		pricing.ErrEmptySelection,
		pricing.ErrInvalidQuantity,
		pricing.ErrInvalidDuration,
		store.ErrInvalidUser,
	}
	notFoundErrs = []error{pricing.ErrNotFound, store.ErrNotFound}
	conflictErrs = []error{pricing.ErrHasChildren, store.ErrDuplicate}
)

type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	is := func(target error) bool { return errors.Is(err, target) }

	switch {
	case lo.ContainsBy(badRequestErrs, is):
		return http.StatusBadRequest
	case lo.ContainsBy(notFoundErrs, is):
		return http.StatusNotFound
	case lo.ContainsBy(conflictErrs, is):
		return http.StatusConflict
	case is(errUnauthenticated), is(store.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case is(errForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status. Server errors are logged and their
// details are not sent to the client.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Status: status, Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// requestLogger logs one line per request once the response is written.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
