package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/logger"
)

// SuccessEnvelope wraps every 2xx payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public half of a failure.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// clientFacing codes keep their own message; everything else is replaced by
// the code's public message.
var clientFacing = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:  true,
	pkgerrors.CodeNotFound:    true,
	pkgerrors.CodeConflict:    true,
	pkgerrors.CodeIdempotency: true,
	pkgerrors.CodeRateLimit:   true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, SuccessEnvelope{Data: data})
}

// WriteFailure renders an already classified failure without logging it.
func WriteFailure(w http.ResponseWriter, code pkgerrors.Code, message string, details any) {
	meta := pkgerrors.MetadataFor(code)
	apiErr := APIError{Code: string(code), Message: message, Retryable: meta.Retryable}
	if apiErr.Message == "" {
		apiErr.Message = meta.PublicMessage
	}
	if meta.DetailsAllowed {
		apiErr.Details = details
	}
	writeJSON(w, meta.HTTPStatus, ErrorEnvelope{Error: apiErr})
}

// WriteError classifies err, logs it (5xx as errors, the rest as warnings)
// and renders the envelope. Untyped errors become INTERNAL_ERROR.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	message := ""
	if clientFacing[typed.Code()] {
		message = typed.Message()
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, logFields(err))
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	WriteFailure(w, typed.Code(), message, typed.Details())
}

func logFields(err error) map[string]any {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
	}
	if db := dump.DB; db != nil {
		fields["db_driver"] = db.Driver
		fields["db_code"] = db.Code
		fields["db_message"] = db.Message
		fields["db_table"] = db.Table
		fields["db_constraint"] = db.Constraint
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
