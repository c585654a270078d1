package domain

import (
	"errors"
	"net/http"
)

// Failure taxonomy for pipeline runs. The orchestrator is the only place
// that translates these into terminal statuses and caller-facing codes.
var (
	// ErrNotFound means the requested source item does not exist.
	ErrNotFound = errors.New("source item not found")
	// ErrConflict means another run holds the processing flag for the item.
	ErrConflict = errors.New("source item is already being processed")
	// ErrInsufficientContext means the assembled source material was too
	// thin to even attempt generation.
	ErrInsufficientContext = errors.New("insufficient source context")
	// ErrContentDeclined means the model explicitly returned the
	// insufficient-content sentinel instead of a body.
	ErrContentDeclined = errors.New("model declined to generate from source material")
	// ErrGenerationTimeout means the generation service produced nothing
	// within the per-call deadline.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrGenerationFailed means the generation service failed after all
	// retry attempts.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrOutputFormat means model output failed the sanitizer assertions.
	ErrOutputFormat = errors.New("generated output failed format checks")
	// ErrQuotaExceeded means the generation service rejected the request
	// on billing/quota grounds; operators treat it differently from
	// content failures.
	ErrQuotaExceeded = errors.New("generation quota exceeded")
)

// TerminalStatus maps a pipeline failure to the status the source item must
// end in. Deliberate skips are not alerting candidates, everything else is
// an error.
func TerminalStatus(err error) Status {
	if errors.Is(err, ErrInsufficientContext) || errors.Is(err, ErrContentDeclined) {
		return StatusSkipped
	}
	return StatusError
}

// HTTPStatus translates the taxonomy into the inbound trigger's response
// codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientContext), errors.Is(err, ErrContentDeclined), errors.Is(err, ErrOutputFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrGenerationTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
