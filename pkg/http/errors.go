package http

import (
	"fmt"
	"net/http"
)

// Error codes carried in the response envelope. Validation failures use
// "ERR_" plus the upper-cased validator tag unless listed here.
const (
	CodeBadRequest          = "ERR_BAD_REQUEST"
	CodeInvalidTicker       = "ERR_INVALID_TICKER"
	CodeNotFound            = "ERR_NOT_FOUND"
	CodeRateLimited         = "ERR_RATE_LIMITED"
	CodeUpstreamUnavailable = "ERR_UPSTREAM_UNAVAILABLE"
	CodeComputation         = "ERR_COMPUTATION"
	CodeCache               = "ERR_CACHE"
	CodeInternal            = "ERR_INTERNAL"
)

// AppError is an error that knows its HTTP status and envelope code.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// WithCode replaces the envelope code, keeping the status.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithParam attaches one detail to the error body.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError keeps the cause for logging; it is never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// NotFoundErrorf is a 404 for an absent cache entry or route resource.
func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return newAppError(http.StatusNotFound, CodeNotFound, fmt.Sprintf(format, a...))
}

// BadRequestError is a 400 for malformed input other than tickers.
func BadRequestError(message string) *AppError {
	return newAppError(http.StatusBadRequest, CodeBadRequest, message)
}

// InvalidTickerError is a 400 naming the ticker field.
func InvalidTickerError(message string) *AppError {
	e := newAppError(http.StatusBadRequest, CodeInvalidTicker, message)
	e.Field = "ticker"
	return e
}

// TooManyRequestsError is a 429 from the request quota.
func TooManyRequestsError(message string) *AppError {
	return newAppError(http.StatusTooManyRequests, CodeRateLimited, message)
}

// BadGatewayError is a 502 for a failing or slow upstream provider.
func BadGatewayError(message string) *AppError {
	return newAppError(http.StatusBadGateway, CodeUpstreamUnavailable, message)
}

// InternalError is a 500; the code may be narrowed with WithCode.
func InternalError(message string) *AppError {
	return newAppError(http.StatusInternalServerError, CodeInternal, message)
}
