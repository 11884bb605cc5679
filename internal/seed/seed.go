// Package seed fills a store with fake but plausible clinic data.
package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/clinic"
)

// Sink is the write side of a store that can take seed data.
type Sink interface {
	CreateUser(ctx context.Context, u clinic.User) (*clinic.User, error)
	CreateLocation(ctx context.Context, l clinic.Location) (*clinic.Location, error)
	CreateService(ctx context.Context, s clinic.VetService) (*clinic.VetService, error)
	CreatePet(ctx context.Context, p clinic.Pet) (*clinic.Pet, error)

	// Batch runs fn in one transaction.
	Batch(ctx context.Context, fn func(tx Sink) error) error
}

type Options struct {
	Locations     int
	Users         int
	PetsPerUser   int
	AdoptablePets int
	BatchSize     int
	Seed          int64
}

func DefaultOptions() Options {
	return Options{
		Locations:     3,
		Users:         50,
		PetsPerUser:   2,
		AdoptablePets: 20,
		BatchSize:     500,
		Seed:          time.Now().UnixNano(),
	}
}

// Result carries the ids a caller needs to start exercising the API.
type Result struct {
	AdminID     uuid.UUID
	UserIDs     []uuid.UUID
	LocationIDs []uuid.UUID
	ServiceIDs  []uuid.UUID
	OwnedPets   map[uuid.UUID][]uuid.UUID
	Adoptable   []uuid.UUID
}

var services = []struct {
	name  string
	price float64
}{
	{"General consultation", 60},
	{"Vaccination", 45},
	{"Bath and grooming", 35},
	{"Deworming", 25},
	{"Dental cleaning", 120},
	{"Sterilization", 250},
	{"Ultrasound", 90},
	{"Emergency care", 150},
}

var cities = []string{"Lima", "Arequipa", "Trujillo", "Cusco", "Piura"}

var species = []clinic.Species{
	clinic.SpeciesDog, clinic.SpeciesCat, clinic.SpeciesRabbit, clinic.SpeciesBird, clinic.SpeciesOther,
}

var sizes = []clinic.Size{clinic.SizeSmall, clinic.SizeMedium, clinic.SizeLarge}

func Run(ctx context.Context, sink Sink, opts Options) (*Result, error) {
	faker := gofakeit.New(uint64(opts.Seed))
	res := &Result{OwnedPets: make(map[uuid.UUID][]uuid.UUID)}

	err := sink.Batch(ctx, func(tx Sink) error {
		admin, err := tx.CreateUser(ctx, clinic.User{
			FullName: "Clinic Admin",
			Email:    "admin@petssecrets.local",
			Phone:    faker.Phone(),
			Role:     clinic.RoleAdmin,
		})
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		res.AdminID = admin.ID

		for i := 0; i < opts.Locations; i++ {
			city := cities[i%len(cities)]
			loc, err := tx.CreateLocation(ctx, clinic.Location{
				Name:    fmt.Sprintf("PetsSecrets %s %d", city, i+1),
				Address: faker.Street(),
				Phone:   faker.Phone(),
				City:    city,
			})
			if err != nil {
				return fmt.Errorf("create location: %w", err)
			}
			res.LocationIDs = append(res.LocationIDs, loc.ID)
		}

		for _, sv := range services {
			created, err := tx.CreateService(ctx, clinic.VetService{
				Name:         sv.name,
				Description:  fmt.Sprintf("%s %s care", faker.Adjective(), faker.Noun()),
				Price:        sv.price,
				Veterinarian: "Dr. " + faker.Name(),
				Active:       true,
			})
			if err != nil {
				return fmt.Errorf("create service: %w", err)
			}
			res.ServiceIDs = append(res.ServiceIDs, created.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("seeded admin, %d locations, %d services", len(res.LocationIDs), len(res.ServiceIDs))

	batch := opts.BatchSize
	if batch <= 0 {
		batch = 500
	}
	for offset := 0; offset < opts.Users; offset += batch {
		end := offset + batch
		if end > opts.Users {
			end = opts.Users
		}

		err := sink.Batch(ctx, func(tx Sink) error {
			for i := offset; i < end; i++ {
				u, err := tx.CreateUser(ctx, clinic.User{
					FullName: faker.Name(),
					Email:    fmt.Sprintf("user%d.%s", i, faker.Email()),
					Phone:    faker.Phone(),
					Role:     clinic.RoleUser,
				})
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				res.UserIDs = append(res.UserIDs, u.ID)

				for j := 0; j < opts.PetsPerUser; j++ {
					owner := u.ID
					p := fakePet(faker)
					p.Type = clinic.PetOwned
					p.Status = clinic.AdoptionUnavailable
					p.OwnerID = &owner
					created, err := tx.CreatePet(ctx, p)
					if err != nil {
						return fmt.Errorf("create pet: %w", err)
					}
					res.OwnedPets[u.ID] = append(res.OwnedPets[u.ID], created.ID)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		log.Printf("users seeded: %d/%d", end, opts.Users)
	}

	err = sink.Batch(ctx, func(tx Sink) error {
		for i := 0; i < opts.AdoptablePets; i++ {
			p := fakePet(faker)
			p.Type = clinic.PetAdoptable
			p.Status = clinic.AdoptionAvailable
			intake := faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now())
			p.IntakeDate = &intake
			created, err := tx.CreatePet(ctx, p)
			if err != nil {
				return fmt.Errorf("create adoptable pet: %w", err)
			}
			res.Adoptable = append(res.Adoptable, created.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("seeded %d adoptable pets", len(res.Adoptable))

	return res, nil
}

func fakePet(faker *gofakeit.Faker) clinic.Pet {
	sp := species[faker.Number(0, len(species)-1)]
	gender := clinic.GenderMale
	if faker.Bool() {
		gender = clinic.GenderFemale
	}

	breed := "Mixed"
	switch sp {
	case clinic.SpeciesDog:
		breed = faker.Dog()
	case clinic.SpeciesCat:
		breed = faker.Cat()
	}

	return clinic.Pet{
		Name:         faker.PetName(),
		Species:      sp,
		Breed:        breed,
		Gender:       gender,
		Size:         sizes[faker.Number(0, len(sizes)-1)],
		AgeYears:     faker.Number(0, 15),
		WeightKg:     faker.Float64Range(0.5, 40),
		Color:        faker.Color(),
		Description:  fmt.Sprintf("%s and %s", faker.Adjective(), faker.Adjective()),
		Vaccinated:   faker.Bool(),
		Sterilized:   faker.Bool(),
		GoodWithKids: faker.Bool(),
		GoodWithPets: faker.Bool(),
		Active:       true,
	}
}
