package adoption

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/apperr"
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCompleted RequestStatus = "completed"
)

func ParseStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return st, nil
	}
	return "", apperr.Invalid(fmt.Sprintf("unknown adoption status %q", s))
}

// Active reports whether a request in this status still claims its pet.
func (s RequestStatus) Active() bool {
	return s == StatusPending || s == StatusApproved
}

var transitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusPending, StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted},
}

// CanTransitionTo reports whether next is reachable from s. pending to
// pending is a notes-only update.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

type Experience string

const (
	ExperienceNone         Experience = "none"
	ExperienceBasic        Experience = "basic"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceAdvanced     Experience = "advanced"
)

func ParseExperience(s string) (Experience, error) {
	switch e := Experience(s); e {
	case ExperienceNone, ExperienceBasic, ExperienceIntermediate, ExperienceAdvanced:
		return e, nil
	}
	return "", apperr.Invalid(fmt.Sprintf("unknown experience level %q", s))
}

type Housing string

const (
	HousingHouse     Housing = "house"
	HousingApartment Housing = "apartment"
	HousingFarm      Housing = "farm"
	HousingOther     Housing = "other"
)

func ParseHousing(s string) (Housing, error) {
	switch h := Housing(s); h {
	case HousingHouse, HousingApartment, HousingFarm, HousingOther:
		return h, nil
	}
	return "", apperr.Invalid(fmt.Sprintf("unknown housing type %q", s))
}

// Questionnaire is what an applicant fills in when asking to adopt.
type Questionnaire struct {
	Experience       Experience
	Housing          Housing
	OtherPets        string
	WorkSchedule     string
	Reason           string
	EmergencyContact string
	VetReference     string
	AcceptsTerms     bool
	AcceptsVisit     bool
}

func (q Questionnaire) Validate() error {
	if _, err := ParseExperience(string(q.Experience)); err != nil {
		return err
	}
	if _, err := ParseHousing(string(q.Housing)); err != nil {
		return err
	}
	if strings.TrimSpace(q.EmergencyContact) == "" {
		return apperr.Invalid("emergency contact is required")
	}
	return nil
}

type Request struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	PetID           uuid.UUID
	Status          RequestStatus
	Questionnaire   Questionnaire
	RejectionReason string
	Notes           string
	RequestedAt     time.Time
	ApprovedAt      *time.Time
	UpdatedAt       time.Time
}

// Filter narrows adoption request searches. Nil fields match everything.
type Filter struct {
	Status     *RequestStatus
	UserID     *uuid.UUID
	PetID      *uuid.UUID
	Experience *Experience
	Housing    *Housing
}

func (f Filter) Matches(r *Request) bool {
	switch {
	case f.Status != nil && r.Status != *f.Status:
		return false
	case f.UserID != nil && r.UserID != *f.UserID:
		return false
	case f.PetID != nil && r.PetID != *f.PetID:
		return false
	case f.Experience != nil && r.Questionnaire.Experience != *f.Experience:
		return false
	case f.Housing != nil && r.Questionnaire.Housing != *f.Housing:
		return false
	}
	return true
}
