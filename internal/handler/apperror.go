package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Token is not valid for this endpoint"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrInvalidSignature = &AppError{http.StatusBadRequest, "INVALID_SIGNATURE", "Webhook signature is missing or invalid"}
	ErrStaleEvent       = &AppError{http.StatusBadRequest, "STALE_EVENT", "Event timestamp is outside the freshness window"}
	ErrRateLimited      = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests from this address"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
	ErrMissingSecret    = &AppError{http.StatusInternalServerError, "CONFIGURATION_ERROR", "Webhook shared secret is not configured"}
)
