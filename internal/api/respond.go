package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/medical-office-scheduling/internal/appointment"
	"github.com/hackgods/medical-office-scheduling/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to its status code and the error
// envelope. A detected overlap also carries the conflicting appointment
// and nearby alternatives.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	var slotErr *appointment.SlotConflictError
	if errors.As(err, &slotErr) {
		resp := ConflictResponse{
			ErrorResponse: ErrorResponse{Success: false, Message: apperr.Message(err), Error: string(kind)},
			Disponibles:   toIntervals(slotErr.Alternatives),
		}
		if slotErr.Conflict != nil {
			turno := toAppointmentResponse(slotErr.Conflict, false)
			resp.Turno = &turno
		}
		writeJSON(w, status, resp)
		return
	}

	writeStatus(w, r, status, err)
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := apperr.Message(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	kind := string(apperr.KindOf(err))
	if status == http.StatusUnauthorized {
		kind = "unauthorized"
	}
	writeJSON(w, status, ErrorResponse{Success: false, Message: msg, Error: kind})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("could not parse JSON body")
	}
	return nil
}
