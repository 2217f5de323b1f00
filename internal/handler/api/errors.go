package api

import (
	"context"
	"errors"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
)

// toAppError maps engine errors onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInvalidTicker):
		return xhttp.InvalidTickerError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrBatchTooLarge):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrDataUnavailable):
		return xhttp.BadGatewayError("upstream data unavailable").
			WithParam("stage", models.StageOf(err)).
			WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.BadGatewayError("computation timed out").WithError(err)
	case errors.Is(err, models.ErrComputation):
		return xhttp.InternalError("signal computation failed").WithCode(xhttp.CodeComputation).WithError(err)
	case errors.Is(err, models.ErrCache):
		return xhttp.InternalError("signal store unavailable").WithCode(xhttp.CodeCache).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
