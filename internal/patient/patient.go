package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
)

type Source string

const (
	SourceStaff    Source = "staff"
	SourceWhatsApp Source = "whatsapp"
)

var (
	ErrPatientNotFound   = apperr.NotFound("patient not found")
	ErrDuplicatePhone    = apperr.Conflict("another patient already uses this phone number")
	ErrDuplicateNational = apperr.Conflict("another patient already uses this national id")
	ErrHasAppointments   = apperr.Conflict("patient has upcoming appointments")
)

type Patient struct {
	ID         uuid.UUID
	Name       string
	Surname    string
	NationalID *string
	Phone      *string
	Email      *string
	CoverageID *uuid.UUID
	Notes      *string
	Source     Source
	CreatedBy  *string
	UpdatedBy  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Input carries the editable fields of a patient.
type Input struct {
	Name       string
	Surname    string
	NationalID *string
	Phone      *string
	Email      *string
	CoverageID *uuid.UUID
	Notes      *string
	Actor      string
}

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, search string, limit, offset int) ([]Patient, error)
	Create(ctx context.Context, p *Patient) (*Patient, error)
	Update(ctx context.Context, p *Patient) (*Patient, error)
	Delete(ctx context.Context, id uuid.UUID) error

	PhoneTaken(ctx context.Context, phone string, exclude *uuid.UUID) (bool, error)
	NationalIDTaken(ctx context.Context, nationalID string, exclude *uuid.UUID) (bool, error)
	HasFutureAppointments(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

type Service struct {
	repo   Repository
	region string
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, phoneRegion string, logger zerolog.Logger) *Service {
	if phoneRegion == "" {
		phoneRegion = "AR"
	}
	return &Service{repo: repo, region: strings.ToUpper(phoneRegion), logger: logger, now: time.Now}
}

// NormalizePhone parses a phone number written in any local or
// international form and returns it as E.164.
func NormalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), region)
	if err != nil {
		return "", apperr.Validation(fmt.Sprintf("invalid phone number %q", raw))
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", apperr.Validation(fmt.Sprintf("invalid phone number %q", raw))
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.Get(ctx, id)
}

// List retrieves patients matching search on name, surname, phone or
// national id.
func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]Patient, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, strings.TrimSpace(search), limit, offset)
}

// Create registers a patient entered by staff.
func (s *Service) Create(ctx context.Context, in Input) (*Patient, error) {
	return s.create(ctx, in, SourceStaff)
}

// CreatePublic registers a patient coming from the WhatsApp intake.
func (s *Service) CreatePublic(ctx context.Context, in Input) (*Patient, error) {
	if in.Phone == nil || strings.TrimSpace(*in.Phone) == "" {
		return nil, apperr.Validation("phone is required")
	}
	return s.create(ctx, in, SourceWhatsApp)
}

func (s *Service) create(ctx context.Context, in Input, source Source) (*Patient, error) {
	p := &Patient{Source: source}
	if err := s.apply(ctx, p, in, nil); err != nil {
		return nil, err
	}
	if in.Actor != "" {
		p.CreatedBy = &in.Actor
		p.UpdatedBy = &in.Actor
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", created.ID.String()).Str("source", string(source)).Msg("patient created")
	return created, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Patient, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, current, in, &id); err != nil {
		return nil, err
	}
	if in.Actor != "" {
		current.UpdatedBy = &in.Actor
	}
	return s.repo.Update(ctx, current)
}

// Delete removes a patient without upcoming non-cancelled appointments.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	busy, err := s.repo.HasFutureAppointments(ctx, id, s.now())
	if err != nil {
		return fmt.Errorf("check upcoming appointments: %w", err)
	}
	if busy {
		return ErrHasAppointments
	}
	return s.repo.Delete(ctx, id)
}

// apply validates in and copies it onto p, checking phone and national id
// uniqueness against every patient except exclude.
func (s *Service) apply(ctx context.Context, p *Patient, in Input, exclude *uuid.UUID) error {
	name, surname := strings.TrimSpace(in.Name), strings.TrimSpace(in.Surname)
	if name == "" || surname == "" {
		return apperr.Validation("name and surname are required")
	}
	p.Name, p.Surname = name, surname
	p.Email = lowerOrNil(in.Email)
	p.Notes = in.Notes
	p.CoverageID = in.CoverageID

	p.Phone = nil
	if in.Phone != nil && strings.TrimSpace(*in.Phone) != "" {
		phone, err := NormalizePhone(*in.Phone, s.region)
		if err != nil {
			return err
		}
		taken, err := s.repo.PhoneTaken(ctx, phone, exclude)
		if err != nil {
			return fmt.Errorf("check phone: %w", err)
		}
		if taken {
			return ErrDuplicatePhone
		}
		p.Phone = &phone
	}

	p.NationalID = nil
	if in.NationalID != nil && strings.TrimSpace(*in.NationalID) != "" {
		nid := strings.ReplaceAll(strings.TrimSpace(*in.NationalID), ".", "")
		taken, err := s.repo.NationalIDTaken(ctx, nid, exclude)
		if err != nil {
			return fmt.Errorf("check national id: %w", err)
		}
		if taken {
			return ErrDuplicateNational
		}
		p.NationalID = &nid
	}
	return nil
}

func lowerOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	if v == "" {
		return nil
	}
	return &v
}
