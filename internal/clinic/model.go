// Package clinic holds the entities shared by the scheduling and adoption
// services: users, locations, veterinary services and pets.
package clinic

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/apperr"
)

var (
	ErrUserNotFound     = apperr.New(apperr.ErrNotFound, "user not found")
	ErrPetNotFound      = apperr.New(apperr.ErrNotFound, "pet not found")
	ErrServiceNotFound  = apperr.New(apperr.ErrNotFound, "service not found")
	ErrLocationNotFound = apperr.New(apperr.ErrNotFound, "location not found")
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAdmin:
		return r, nil
	}
	return "", apperr.Invalid(fmt.Sprintf("unknown role %q", s))
}

type Species string

const (
	SpeciesDog    Species = "dog"
	SpeciesCat    Species = "cat"
	SpeciesRabbit Species = "rabbit"
	SpeciesBird   Species = "bird"
	SpeciesOther  Species = "other"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// PetType tells a family pet apart from one the clinic offers for adoption.
type PetType string

const (
	PetOwned     PetType = "owned"
	PetAdoptable PetType = "adoptable"
)

type AdoptionStatus string

const (
	AdoptionAvailable   AdoptionStatus = "available"
	AdoptionAdopted     AdoptionStatus = "adopted"
	AdoptionInProcess   AdoptionStatus = "in_process"
	AdoptionUnavailable AdoptionStatus = "unavailable"
)

func ParseAdoptionStatus(s string) (AdoptionStatus, error) {
	switch st := AdoptionStatus(s); st {
	case AdoptionAvailable, AdoptionAdopted, AdoptionInProcess, AdoptionUnavailable:
		return st, nil
	}
	return "", apperr.Invalid(fmt.Sprintf("unknown pet adoption status %q", s))
}

type User struct {
	ID        uuid.UUID
	FullName  string
	Email     string
	Phone     string
	Role      Role
	CreatedAt time.Time
}

// Location is a physical clinic branch (sede).
type Location struct {
	ID        uuid.UUID
	Name      string
	Address   string
	Phone     string
	City      string
	CreatedAt time.Time
}

// VetService is a bookable clinic service such as a bath or a vaccination.
type VetService struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Price        float64
	Veterinarian string
	Active       bool
	CreatedAt    time.Time
}

type Pet struct {
	ID           uuid.UUID
	Name         string
	Species      Species
	Breed        string
	Gender       Gender
	Size         Size
	AgeYears     int
	WeightKg     float64
	Color        string
	Description  string
	Type         PetType
	Status       AdoptionStatus
	OwnerID      *uuid.UUID
	Vaccinated   bool
	Sterilized   bool
	GoodWithKids bool
	GoodWithPets bool
	Active       bool
	IntakeDate   *time.Time
	AdoptionDate *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *Pet) OwnedBy(userID uuid.UUID) bool {
	return p.OwnerID != nil && *p.OwnerID == userID
}

// Adoptable reports whether a new adoption request may be filed for the pet.
func (p *Pet) Adoptable() bool {
	return p.Active && p.Status == AdoptionAvailable
}

// SetStatus moves the pet to status, stamping the adoption date when it
// becomes adopted.
func (p *Pet) SetStatus(status AdoptionStatus, now time.Time) {
	p.Status = status
	if status == AdoptionAdopted {
		p.AdoptionDate = &now
	}
}

// TransferTo hands the pet over to a new owner and marks it adopted.
func (p *Pet) TransferTo(ownerID uuid.UUID, now time.Time) {
	owner := ownerID
	p.Type = PetOwned
	p.OwnerID = &owner
	p.SetStatus(AdoptionAdopted, now)
}
