package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ppiankov/techtag/internal/model"
	"github.com/ppiankov/techtag/internal/review"
	"github.com/ppiankov/techtag/internal/store"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string   `json:"error"`
	Kind       string   `json:"kind,omitempty"`
	InvalidIDs []string `json:"invalid_ids,omitempty"`
	Problems   []string `json:"problems,omitempty"`
}

// fail maps domain errors to HTTP statuses and writes the error body.
func (s *Server) fail(c echo.Context, err error) error {
	var (
		verr *model.ValidationError
		cerr *model.ConfigError
		terr *review.TransitionError
		herr *echo.HTTPError
	)
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &herr):
		return herr
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
		resp.Kind = verr.ErrorKind()
		resp.InvalidIDs = verr.InvalidIDs
		resp.Problems = verr.Problems
	case errors.As(err, &cerr):
		status = http.StatusServiceUnavailable
		resp.Kind = cerr.ErrorKind()
	case errors.Is(err, review.ErrItemNotFound), errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &terr), errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	return c.JSON(status, resp)
}
