package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/adoption"
	"github.com/petssecrets/veterinaria-core/internal/appointment"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
)

type ScheduleAppointmentRequest struct {
	PetID      string `json:"pet_id" validate:"required,uuid"`
	ServiceID  string `json:"service_id" validate:"required,uuid"`
	LocationID string `json:"location_id" validate:"required,uuid"`
	Date       string `json:"date" validate:"required"`
	Time       string `json:"time" validate:"required"`
	Notes      string `json:"notes" validate:"max=1000"`
}

type UpdateAppointmentStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Date   *string `json:"date,omitempty"`
	Time   *string `json:"time,omitempty"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type RescheduleAppointmentRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

type AppointmentResponse struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	PetID      uuid.UUID `json:"pet_id"`
	ServiceID  uuid.UUID `json:"service_id"`
	LocationID uuid.UUID `json:"location_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		UserID:     a.UserID,
		PetID:      a.PetID,
		ServiceID:  a.ServiceID,
		LocationID: a.LocationID,
		Date:       appointment.FormatDate(a.Date),
		Time:       a.Time.String(),
		Status:     string(a.Status),
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func newAppointmentList(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, newAppointmentResponse(&appts[i]))
	}
	return out
}

type AvailabilityResponse struct {
	LocationID uuid.UUID `json:"location_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Available  bool      `json:"available"`
}

type CreateAdoptionRequest struct {
	PetID            string `json:"pet_id" validate:"required,uuid"`
	Experience       string `json:"experience" validate:"required,oneof=none basic intermediate advanced"`
	Housing          string `json:"housing" validate:"required,oneof=house apartment farm other"`
	OtherPets        string `json:"other_pets" validate:"max=500"`
	WorkSchedule     string `json:"work_schedule" validate:"max=200"`
	Reason           string `json:"reason" validate:"max=1000"`
	EmergencyContact string `json:"emergency_contact" validate:"required,max=200"`
	VetReference     string `json:"vet_reference" validate:"max=200"`
	AcceptsTerms     bool   `json:"accepts_terms"`
	AcceptsVisit     bool   `json:"accepts_visit"`
}

type UpdateAdoptionStatusRequest struct {
	Status          string `json:"status" validate:"required"`
	RejectionReason string `json:"rejection_reason" validate:"max=1000"`
	Notes           string `json:"notes" validate:"max=1000"`
}

type QuestionnaireResponse struct {
	Experience       string `json:"experience"`
	Housing          string `json:"housing"`
	OtherPets        string `json:"other_pets,omitempty"`
	WorkSchedule     string `json:"work_schedule,omitempty"`
	Reason           string `json:"reason,omitempty"`
	EmergencyContact string `json:"emergency_contact"`
	VetReference     string `json:"vet_reference,omitempty"`
	AcceptsTerms     bool   `json:"accepts_terms"`
	AcceptsVisit     bool   `json:"accepts_visit"`
}

type AdoptionResponse struct {
	ID              uuid.UUID             `json:"id"`
	UserID          uuid.UUID             `json:"user_id"`
	PetID           uuid.UUID             `json:"pet_id"`
	Status          string                `json:"status"`
	Questionnaire   QuestionnaireResponse `json:"questionnaire"`
	RejectionReason string                `json:"rejection_reason,omitempty"`
	Notes           string                `json:"notes,omitempty"`
	RequestedAt     time.Time             `json:"requested_at"`
	ApprovedAt      *time.Time            `json:"approved_at,omitempty"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func newAdoptionResponse(r *adoption.Request) AdoptionResponse {
	q := r.Questionnaire
	return AdoptionResponse{
		ID:     r.ID,
		UserID: r.UserID,
		PetID:  r.PetID,
		Status: string(r.Status),
		Questionnaire: QuestionnaireResponse{
			Experience:       string(q.Experience),
			Housing:          string(q.Housing),
			OtherPets:        q.OtherPets,
			WorkSchedule:     q.WorkSchedule,
			Reason:           q.Reason,
			EmergencyContact: q.EmergencyContact,
			VetReference:     q.VetReference,
			AcceptsTerms:     q.AcceptsTerms,
			AcceptsVisit:     q.AcceptsVisit,
		},
		RejectionReason: r.RejectionReason,
		Notes:           r.Notes,
		RequestedAt:     r.RequestedAt,
		ApprovedAt:      r.ApprovedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func newAdoptionList(reqs []adoption.Request) []AdoptionResponse {
	out := make([]AdoptionResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, newAdoptionResponse(&reqs[i]))
	}
	return out
}

type CanAdoptResponse struct {
	PetID    uuid.UUID `json:"pet_id"`
	CanAdopt bool      `json:"can_adopt"`
}

type SetPetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type PetResponse struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Species        string     `json:"species"`
	Type           string     `json:"type"`
	AdoptionStatus string     `json:"adoption_status"`
	OwnerID        *uuid.UUID `json:"owner_id,omitempty"`
	Active         bool       `json:"active"`
	AdoptionDate   *time.Time `json:"adoption_date,omitempty"`
}

func newPetResponse(p *clinic.Pet) PetResponse {
	return PetResponse{
		ID:             p.ID,
		Name:           p.Name,
		Species:        string(p.Species),
		Type:           string(p.Type),
		AdoptionStatus: string(p.Status),
		OwnerID:        p.OwnerID,
		Active:         p.Active,
		AdoptionDate:   p.AdoptionDate,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
