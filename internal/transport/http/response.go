package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"curation-service/internal/apperr"
	"curation-service/internal/logger"
	"curation-service/internal/service"
)

type apiError struct {
	Kind    apperr.Kind         `json:"kind"`
	Message string              `json:"message"`
	Fields  []apperr.FieldError `json:"fields,omitempty"`
	// Transient is set on upstream errors: true when retrying may help.
	Transient *bool `json:"transient,omitempty"`
}

type bulkErrorResp struct {
	apiError
	Result    service.BulkResult `json:"result"`
	FailedIDs []string           `json:"failed_ids"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidJobStatus,
		apperr.KindCannotDeleteActive,
		apperr.KindCannotDeleteWithActiveJob,
		apperr.KindNoActiveConfiguration:
		return http.StatusConflict
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeErr maps any error to the response body and status. Internal details
// are logged, not returned.
func writeErr(w http.ResponseWriter, log *logger.Logger, err error) {
	var be *service.BulkError
	if errors.As(err, &be) {
		resp := bulkErrorResp{
			apiError: apiError{Kind: apperr.KindUpstream, Message: "bulk action partially applied"},
			Result:   be.Result,
		}
		for _, f := range be.Failures {
			for _, id := range f.IDs {
				resp.FailedIDs = append(resp.FailedIDs, id.String())
			}
		}
		log.Warn("bulk action partially failed", "error", err)
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal(err)
	}

	body := apiError{Kind: ae.Kind, Message: ae.Detail, Fields: ae.Fields}
	switch ae.Kind {
	case apperr.KindUpstream:
		transient := ae.Transient
		body.Transient = &transient
		log.Warn("upstream failure", "error", err, "transient", transient)
	case apperr.KindInternal:
		body.Message = "internal error"
		log.Error("unhandled error", "error", err)
	}
	writeJSON(w, statusFor(ae.Kind), body)
}
