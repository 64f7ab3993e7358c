package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
	"github.com/hackgods/medical-office-scheduling/internal/coverage"
	"github.com/hackgods/medical-office-scheduling/internal/patient"
	"github.com/hackgods/medical-office-scheduling/internal/room"
)

type PatientService interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	List(ctx context.Context, search string, limit, offset int) ([]patient.Patient, error)
	Create(ctx context.Context, in patient.Input) (*patient.Patient, error)
	CreatePublic(ctx context.Context, in patient.Input) (*patient.Patient, error)
	Update(ctx context.Context, id uuid.UUID, in patient.Input) (*patient.Patient, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type RoomService interface {
	Get(ctx context.Context, id uuid.UUID) (*room.Room, error)
	List(ctx context.Context) ([]room.Room, error)
	Create(ctx context.Context, in room.Input) (*room.Room, error)
	Update(ctx context.Context, id uuid.UUID, in room.Input) (*room.Room, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type CoverageService interface {
	List(ctx context.Context, enabledOnly bool) ([]coverage.Coverage, error)
	Create(ctx context.Context, in coverage.Input) (*coverage.Coverage, error)
	Update(ctx context.Context, id uuid.UUID, in coverage.Input) (*coverage.Coverage, error)
}

func (req PatientRequest) toInput(actor string) (patient.Input, error) {
	coverageID, err := parseOptionalUUID("coverageId", req.CoverageID)
	if err != nil {
		return patient.Input{}, err
	}
	return patient.Input{
		Name:       req.Name,
		Surname:    req.Surname,
		NationalID: req.NationalID,
		Phone:      req.Phone,
		Email:      req.Email,
		CoverageID: coverageID,
		Notes:      req.Notes,
		Actor:      actor,
	}, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation(name + " must be a non-negative integer")
	}
	return n, nil
}

func listPatientsHandler(svc PatientService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit")
		if err != nil {
			writeError(w, r, err)
			return
		}
		offset, err := queryInt(r, "offset")
		if err != nil {
			writeError(w, r, err)
			return
		}

		patients, err := svc.List(r.Context(), r.URL.Query().Get("q"), limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		items := make([]PatientResponse, 0, len(patients))
		for i := range patients {
			items = append(items, toPatientResponse(&patients[i]))
		}
		writeJSON(w, http.StatusOK, ListResponse[PatientResponse]{Success: true, Message: "ok", Items: items})
	}
}

func getPatientHandler(svc PatientService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		p, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemResponse[PatientResponse]{Success: true, Message: "ok", Item: toPatientResponse(p)})
	}
}

// createPatientHandler serves both the staff form and the public
// self-registration flow.
func createPatientHandler(create func(context.Context, patient.Input) (*patient.Patient, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PatientRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		in, err := req.toInput(actor(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		p, err := create(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, ItemResponse[PatientResponse]{Success: true, Message: "patient created", Item: toPatientResponse(p)})
	}
}

func updatePatientHandler(svc PatientService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req PatientRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		in, err := req.toInput(actor(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		p, err := svc.Update(r.Context(), id, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemResponse[PatientResponse]{Success: true, Message: "patient updated", Item: toPatientResponse(p)})
	}
}

func deleteHandler(what string, del func(context.Context, uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := del(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: what + " deleted"})
	}
}

func (req RoomRequest) toInput() room.Input {
	return room.Input{Name: req.Name, Phone: req.Phone, Email: req.Email, Color: req.Color}
}

func listRoomsHandler(svc RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := svc.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		items := make([]RoomResponse, 0, len(rooms))
		for i := range rooms {
			items = append(items, toRoomResponse(&rooms[i]))
		}
		writeJSON(w, http.StatusOK, ListResponse[RoomResponse]{Success: true, Message: "ok", Items: items})
	}
}

func getRoomHandler(svc RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		rm, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemResponse[RoomResponse]{Success: true, Message: "ok", Item: toRoomResponse(rm)})
	}
}

func createRoomHandler(svc RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RoomRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		rm, err := svc.Create(r.Context(), req.toInput())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, ItemResponse[RoomResponse]{Success: true, Message: "room created", Item: toRoomResponse(rm)})
	}
}

func updateRoomHandler(svc RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req RoomRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		rm, err := svc.Update(r.Context(), id, req.toInput())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemResponse[RoomResponse]{Success: true, Message: "room updated", Item: toRoomResponse(rm)})
	}
}

func (req CoverageRequest) toInput() coverage.Input {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return coverage.Input{Name: req.Name, Code: req.Code, Enabled: enabled, Color: req.Color}
}

func listCoveragesHandler(svc CoverageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enabledOnly := r.URL.Query().Get("enabled") == "true"
		list, err := svc.List(r.Context(), enabledOnly)
		if err != nil {
			writeError(w, r, err)
			return
		}
		items := make([]CoverageResponse, 0, len(list))
		for i := range list {
			items = append(items, toCoverageResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, ListResponse[CoverageResponse]{Success: true, Message: "ok", Items: items})
	}
}

func createCoverageHandler(svc CoverageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CoverageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		c, err := svc.Create(r.Context(), req.toInput())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, ItemResponse[CoverageResponse]{Success: true, Message: "coverage created", Item: toCoverageResponse(c)})
	}
}

func updateCoverageHandler(svc CoverageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req CoverageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		c, err := svc.Update(r.Context(), id, req.toInput())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemResponse[CoverageResponse]{Success: true, Message: "coverage updated", Item: toCoverageResponse(c)})
	}
}
