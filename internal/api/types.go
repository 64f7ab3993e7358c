package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/medical-office-scheduling/internal/appointment"
	"github.com/hackgods/medical-office-scheduling/internal/coverage"
	"github.com/hackgods/medical-office-scheduling/internal/patient"
	"github.com/hackgods/medical-office-scheduling/internal/reminder"
	"github.com/hackgods/medical-office-scheduling/internal/room"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type ConflictResponse struct {
	ErrorResponse
	Turno       *AppointmentResponse `json:"turno,omitempty"`
	Disponibles []IntervalResponse   `json:"disponibles"`
}

type IntervalResponse struct {
	Desde time.Time `json:"desde"`
	Hasta time.Time `json:"hasta"`
}

type AvailabilityResponse struct {
	Success     bool                 `json:"success"`
	Message     string               `json:"message"`
	Disponible  bool                 `json:"disponible"`
	Turno       *AppointmentResponse `json:"turno,omitempty"`
	Disponibles []IntervalResponse   `json:"disponibles,omitempty"`
}

type CreateAppointmentRequest struct {
	Desde             string  `json:"desde"`
	Hasta             string  `json:"hasta"`
	PatientID         string  `json:"patientId"`
	DoctorID          string  `json:"doctorId"`
	RoomID            *string `json:"roomId,omitempty"`
	CoverageID        *string `json:"coverageId,omitempty"`
	AppointmentTypeID *string `json:"appointmentTypeId,omitempty"`
	Estado            string  `json:"estado,omitempty"`
	Notes             *string `json:"notes,omitempty"`
}

// UpdateAppointmentRequest is a partial update. An empty roomId clears
// the room.
type UpdateAppointmentRequest struct {
	Desde             *string    `json:"desde,omitempty"`
	Hasta             *string    `json:"hasta,omitempty"`
	PatientID         *string    `json:"patientId,omitempty"`
	DoctorID          *string    `json:"doctorId,omitempty"`
	RoomID            *string    `json:"roomId,omitempty"`
	CoverageID        *string    `json:"coverageId,omitempty"`
	AppointmentTypeID *string    `json:"appointmentTypeId,omitempty"`
	Estado            *string    `json:"estado,omitempty"`
	Penal             *string    `json:"penal,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type AppointmentResponse struct {
	ID                uuid.UUID  `json:"id"`
	Desde             time.Time  `json:"desde"`
	Hasta             time.Time  `json:"hasta"`
	PatientID         uuid.UUID  `json:"patientId"`
	DoctorID          uuid.UUID  `json:"doctorId"`
	RoomID            *uuid.UUID `json:"roomId,omitempty"`
	CoverageID        *uuid.UUID `json:"coverageId,omitempty"`
	AppointmentTypeID *uuid.UUID `json:"appointmentTypeId,omitempty"`
	Estado            string     `json:"estado"`
	Penal             string     `json:"penal,omitempty"`
	Token             *string    `json:"token,omitempty"`
	StateChangedAt    *time.Time `json:"stateChangedAt,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type AppointmentEnvelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Turno   AppointmentResponse `json:"turno"`
}

type TokenLookupResponse struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Turno      AppointmentResponse `json:"turno"`
	CanConfirm bool                `json:"canConfirm"`
	CanCancel  bool                `json:"canCancel"`
}

type PatientRequest struct {
	Name       string  `json:"name"`
	Surname    string  `json:"surname"`
	NationalID *string `json:"nationalId,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	CoverageID *string `json:"coverageId,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

type PatientResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Surname    string     `json:"surname"`
	NationalID *string    `json:"nationalId,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	Email      *string    `json:"email,omitempty"`
	CoverageID *uuid.UUID `json:"coverageId,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	Source     string     `json:"source"`
}

type RoomRequest struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
	Color *string `json:"color,omitempty"`
}

type RoomResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone *string   `json:"phone,omitempty"`
	Email *string   `json:"email,omitempty"`
	Color *string   `json:"color,omitempty"`
}

type CoverageRequest struct {
	Name    string  `json:"name"`
	Code    string  `json:"code"`
	Enabled *bool   `json:"enabled,omitempty"`
	Color   *string `json:"color,omitempty"`
}

type CoverageResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Code    string    `json:"code"`
	Enabled bool      `json:"enabled"`
	Color   *string   `json:"color,omitempty"`
}

type EmailTokenRequest struct {
	Email string `json:"email"`
}

type SessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ListResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Items   []T    `json:"items"`
}

type ItemResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Item    T      `json:"item"`
}

type ReminderRunResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Reports []reminder.RunReport `json:"reports"`
}

func toAppointmentResponse(a *appointment.Appointment, withToken bool) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                a.ID,
		Desde:             a.Desde,
		Hasta:             a.Hasta,
		PatientID:         a.PatientID,
		DoctorID:          a.DoctorID,
		RoomID:            a.RoomID,
		CoverageID:        a.CoverageID,
		AppointmentTypeID: a.AppointmentTypeID,
		Estado:            string(a.State),
		Penal:             string(a.Penal),
		StateChangedAt:    a.StateChangedAt,
		Notes:             a.Notes,
		UpdatedAt:         a.UpdatedAt,
	}
	if withToken {
		resp.Token = a.Token
	}
	return resp
}

func toIntervals(ivs []appointment.Interval) []IntervalResponse {
	out := make([]IntervalResponse, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, IntervalResponse{Desde: iv.Start, Hasta: iv.End})
	}
	return out
}

func toPatientResponse(p *patient.Patient) PatientResponse {
	return PatientResponse{
		ID:         p.ID,
		Name:       p.Name,
		Surname:    p.Surname,
		NationalID: p.NationalID,
		Phone:      p.Phone,
		Email:      p.Email,
		CoverageID: p.CoverageID,
		Notes:      p.Notes,
		Source:     string(p.Source),
	}
}

func toRoomResponse(r *room.Room) RoomResponse {
	return RoomResponse{ID: r.ID, Name: r.Name, Phone: r.Phone, Email: r.Email, Color: r.Color}
}

func toCoverageResponse(c *coverage.Coverage) CoverageResponse {
	return CoverageResponse{ID: c.ID, Name: c.Name, Code: c.Code, Enabled: c.Enabled, Color: c.Color}
}
