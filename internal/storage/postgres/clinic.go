package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/seed"
)

const (
	userColumns     = `id, full_name, email, phone, role, created_at`
	locationColumns = `id, name, address, phone, city, created_at`
	serviceColumns  = `id, name, description, price, veterinarian, active, created_at`
	petColumns      = `id, name, species, breed, gender, size, age_years, weight_kg, color, description,
		pet_type, adoption_status, owner_id, vaccinated, sterilized, good_with_kids, good_with_pets,
		active, intake_date, adoption_date, created_at, updated_at`
)

// Helpers

func scanUser(row pgx.Row) (*clinic.User, error) {
	var u clinic.User

	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, clinic.ErrUserNotFound
		}
		return nil, mapConstraint(err)
	}

	return &u, nil
}

func scanLocation(row pgx.Row) (*clinic.Location, error) {
	var l clinic.Location

	err := row.Scan(&l.ID, &l.Name, &l.Address, &l.Phone, &l.City, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, clinic.ErrLocationNotFound
		}
		return nil, err
	}

	return &l, nil
}

func scanService(row pgx.Row) (*clinic.VetService, error) {
	var s clinic.VetService

	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.Veterinarian, &s.Active, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, clinic.ErrServiceNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanPet(row pgx.Row) (*clinic.Pet, error) {
	var p clinic.Pet

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Species,
		&p.Breed,
		&p.Gender,
		&p.Size,
		&p.AgeYears,
		&p.WeightKg,
		&p.Color,
		&p.Description,
		&p.Type,
		&p.Status,
		&p.OwnerID,
		&p.Vaccinated,
		&p.Sterilized,
		&p.GoodWithKids,
		&p.GoodWithPets,
		&p.Active,
		&p.IntakeDate,
		&p.AdoptionDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, clinic.ErrPetNotFound
		}
		return nil, err
	}

	return &p, nil
}

// Shared reads used by every repository.

func (c conn) getPet(ctx context.Context, id uuid.UUID, lock bool) (*clinic.Pet, error) {
	sql := `SELECT ` + petColumns + ` FROM pets WHERE id = $1`
	if lock && c.inTx {
		sql += ` FOR UPDATE`
	}
	return scanPet(c.q.QueryRow(ctx, sql, id))
}

func (c conn) updatePet(ctx context.Context, p clinic.Pet) (*clinic.Pet, error) {
	row := c.q.QueryRow(ctx, `
		UPDATE pets
		SET pet_type = $2,
		    adoption_status = $3,
		    owner_id = $4,
		    active = $5,
		    adoption_date = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+petColumns,
		p.ID, p.Type, p.Status, p.OwnerID, p.Active, p.AdoptionDate)
	return scanPet(row)
}

// ClinicRepo writes and reads the reference data: users, locations,
// services and pets.
type ClinicRepo struct {
	conn
}

func (r *ClinicRepo) CreateUser(ctx context.Context, u clinic.User) (*clinic.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO users (id, full_name, email, phone, role, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING `+userColumns,
		u.ID, u.FullName, u.Email, u.Phone, u.Role)
	return scanUser(row)
}

func (r *ClinicRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*clinic.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *ClinicRepo) CreateLocation(ctx context.Context, l clinic.Location) (*clinic.Location, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO locations (id, name, address, phone, city, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING `+locationColumns,
		l.ID, l.Name, l.Address, l.Phone, l.City)
	return scanLocation(row)
}

func (r *ClinicRepo) CreateService(ctx context.Context, s clinic.VetService) (*clinic.VetService, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO vet_services (id, name, description, price, veterinarian, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+serviceColumns,
		s.ID, s.Name, s.Description, s.Price, s.Veterinarian, s.Active)
	return scanService(row)
}

func (r *ClinicRepo) CreatePet(ctx context.Context, p clinic.Pet) (*clinic.Pet, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO pets (`+petColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, now(), now())
		RETURNING `+petColumns,
		p.ID, p.Name, p.Species, p.Breed, p.Gender, p.Size, p.AgeYears, p.WeightKg, p.Color, p.Description,
		p.Type, p.Status, p.OwnerID, p.Vaccinated, p.Sterilized, p.GoodWithKids, p.GoodWithPets,
		p.Active, p.IntakeDate, p.AdoptionDate)
	return scanPet(row)
}

func (r *ClinicRepo) GetPetByID(ctx context.Context, id uuid.UUID) (*clinic.Pet, error) {
	return r.getPet(ctx, id, false)
}

// Batch runs fn in one transaction.
func (r *ClinicRepo) Batch(ctx context.Context, fn func(tx seed.Sink) error) error {
	return r.withTx(ctx, func(c conn) error {
		return fn(&ClinicRepo{c})
	})
}
