package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/medical-office-scheduling/internal/appointment"
	"github.com/hackgods/medical-office-scheduling/internal/apperr"
)

type AppointmentService interface {
	CheckAvailability(ctx context.Context, iv appointment.Interval, doctorID uuid.UUID, roomID *uuid.UUID) (*appointment.Availability, error)
	Book(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, p appointment.Patch) (*appointment.Appointment, error)
	Lookup(ctx context.Context, token string) (*appointment.Appointment, appointment.Actions, error)
	Confirm(ctx context.Context, token string) (*appointment.Outcome, error)
	Cancel(ctx context.Context, token string) (*appointment.Outcome, error)
}

func availabilityHandler(svc AppointmentService, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		desde, err := parseInstant("desde", q.Get("desde"), loc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		hasta, err := parseInstant("hasta", q.Get("hasta"), loc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		doctorID, err := parseUUID("doctorId", q.Get("doctorId"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		roomParam := q.Get("roomId")
		roomID, err := parseOptionalUUID("roomId", &roomParam)
		if err != nil {
			writeError(w, r, err)
			return
		}

		got, err := svc.CheckAvailability(r.Context(), appointment.Interval{Start: desde, End: hasta}, doctorID, roomID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp := AvailabilityResponse{Success: true, Disponible: got.Available}
		if got.Available {
			resp.Message = "slot available"
		} else {
			resp.Message = "slot taken"
			if got.Conflict != nil {
				turno := toAppointmentResponse(got.Conflict, false)
				resp.Turno = &turno
			}
			resp.Disponibles = toIntervals(got.Alternatives)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createAppointmentHandler(svc AppointmentService, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		booking, err := req.toBooking(loc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		booking.CreatedBy = actor(r.Context())

		appt, err := svc.Book(r.Context(), booking)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, AppointmentEnvelope{
			Success: true,
			Message: "appointment booked",
			Turno:   toAppointmentResponse(appt, true),
		})
	}
}

func (req CreateAppointmentRequest) toBooking(loc *time.Location) (appointment.BookingRequest, error) {
	var (
		b   appointment.BookingRequest
		err error
	)
	if b.Desde, err = parseInstant("desde", req.Desde, loc); err != nil {
		return b, err
	}
	if b.Hasta, err = parseInstant("hasta", req.Hasta, loc); err != nil {
		return b, err
	}
	if b.PatientID, err = parseUUID("patientId", req.PatientID); err != nil {
		return b, err
	}
	if b.DoctorID, err = parseUUID("doctorId", req.DoctorID); err != nil {
		return b, err
	}
	if b.RoomID, err = parseOptionalUUID("roomId", req.RoomID); err != nil {
		return b, err
	}
	if b.CoverageID, err = parseOptionalUUID("coverageId", req.CoverageID); err != nil {
		return b, err
	}
	if b.AppointmentTypeID, err = parseOptionalUUID("appointmentTypeId", req.AppointmentTypeID); err != nil {
		return b, err
	}
	if req.Estado != "" {
		if b.State, err = appointment.ParseState(req.Estado); err != nil {
			return b, err
		}
	}
	b.Notes = req.Notes
	return b, nil
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AppointmentEnvelope{Success: true, Message: "ok", Turno: toAppointmentResponse(appt, true)})
	}
}

func updateAppointmentHandler(svc AppointmentService, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		var req UpdateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		patch, err := req.toPatch(loc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.UpdatedBy = actor(r.Context())

		appt, err := svc.Update(r.Context(), id, patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AppointmentEnvelope{Success: true, Message: "appointment updated", Turno: toAppointmentResponse(appt, true)})
	}
}

func (req UpdateAppointmentRequest) toPatch(loc *time.Location) (appointment.Patch, error) {
	var p appointment.Patch

	if req.Desde != nil {
		t, err := parseInstant("desde", *req.Desde, loc)
		if err != nil {
			return p, err
		}
		p.Desde = &t
	}
	if req.Hasta != nil {
		t, err := parseInstant("hasta", *req.Hasta, loc)
		if err != nil {
			return p, err
		}
		p.Hasta = &t
	}

	var err error
	if p.PatientID, err = parseOptionalUUID("patientId", req.PatientID); err != nil {
		return p, err
	}
	if p.DoctorID, err = parseOptionalUUID("doctorId", req.DoctorID); err != nil {
		return p, err
	}
	if req.RoomID != nil && strings.TrimSpace(*req.RoomID) == "" {
		p.ClearRoom = true
	} else if p.RoomID, err = parseOptionalUUID("roomId", req.RoomID); err != nil {
		return p, err
	}
	if p.CoverageID, err = parseOptionalUUID("coverageId", req.CoverageID); err != nil {
		return p, err
	}
	if p.AppointmentTypeID, err = parseOptionalUUID("appointmentTypeId", req.AppointmentTypeID); err != nil {
		return p, err
	}
	if req.Estado != nil {
		s, err := appointment.ParseState(*req.Estado)
		if err != nil {
			return p, err
		}
		p.State = &s
	}
	if req.Penal != nil {
		pen, err := appointment.ParsePenal(*req.Penal)
		if err != nil {
			return p, err
		}
		p.Penal = &pen
	}
	p.Notes = req.Notes
	p.ExpectedUpdatedAt = req.UpdatedAt
	return p, nil
}

func tokenFrom(r *http.Request) (string, error) {
	if r.Method == http.MethodGet {
		return strings.TrimSpace(r.URL.Query().Get("token")), nil
	}
	var req TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	return strings.TrimSpace(req.Token), nil
}

// lookupTokenHandler validates an action link before the patient acts.
func lookupTokenHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := tokenFrom(r)
		appt, actions, err := svc.Lookup(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, TokenLookupResponse{
			Success:    true,
			Message:    "token valid",
			Turno:      toAppointmentResponse(appt, false),
			CanConfirm: actions.CanConfirm,
			CanCancel:  actions.CanCancel,
		})
	}
}

// transitionHandler runs confirm or cancel. A no-op outcome answers 200
// with success false.
func transitionHandler(run func(ctx context.Context, token string) (*appointment.Outcome, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := tokenFrom(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if token == "" {
			writeError(w, r, apperr.Validation("token is required"))
			return
		}

		out, err := run(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AppointmentEnvelope{
			Success: out.Changed,
			Message: out.Message,
			Turno:   toAppointmentResponse(out.Appointment, false),
		})
	}
}
