package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petssecrets/veterinaria-core/internal/auth"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
)

type owner struct {
	ID    uuid.UUID
	Token string
	Pets  []uuid.UUID
}

// handle is something the simulator created and may act on later, together
// with the token of whoever may act on it.
type handle struct {
	ID    uuid.UUID
	Token string
}

type DataPool struct {
	Owners     []owner
	Locations  []uuid.UUID
	Services   []uuid.UUID
	Adoptable  []uuid.UUID
	AdminToken string

	mu           sync.RWMutex
	appointments []handle
	adoptions    []handle
}

func (dp *DataPool) AddAppointment(h handle) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, h)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (handle, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return handle{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

func (dp *DataPool) AddAdoption(h handle) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.adoptions = append(dp.adoptions, h)
}

// TakeAdoption removes and returns a random pending request so that only
// one worker reviews it.
func (dp *DataPool) TakeAdoption(rng *rand.Rand) (handle, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.adoptions) == 0 {
		return handle{}, false
	}
	i := rng.Intn(len(dp.adoptions))
	h := dp.adoptions[i]
	last := len(dp.adoptions) - 1
	dp.adoptions[i] = dp.adoptions[last]
	dp.adoptions = dp.adoptions[:last]
	return h, true
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, tokens *auth.Tokens, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	var adminID uuid.UUID
	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE role = 'admin' ORDER BY created_at LIMIT 1`).Scan(&adminID)
	if err != nil {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	dataPool.AdminToken, err = tokens.Issue(auth.Actor{UserID: adminID, Role: clinic.RoleAdmin})
	if err != nil {
		return nil, fmt.Errorf("issue admin token: %w", err)
	}

	rows, err := pool.Query(ctx, `
		SELECT u.id, array_agg(p.id)
		FROM users u
		JOIN pets p ON p.owner_id = u.id AND p.active
		WHERE u.role = 'user'
		GROUP BY u.id
		LIMIT $1
	`, cfg.OwnerLimit)
	if err != nil {
		return nil, fmt.Errorf("load owners: %w", err)
	}
	for rows.Next() {
		var o owner
		if err := rows.Scan(&o.ID, &o.Pets); err != nil {
			rows.Close()
			return nil, err
		}
		o.Token, err = tokens.Issue(auth.Actor{UserID: o.ID, Role: clinic.RoleUser})
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("issue owner token: %w", err)
		}
		dataPool.Owners = append(dataPool.Owners, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load owners: %w", err)
	}

	if dataPool.Locations, err = loadIDs(ctx, pool, `SELECT id FROM locations`); err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	if dataPool.Services, err = loadIDs(ctx, pool, `SELECT id FROM vet_services WHERE active`); err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	dataPool.Adoptable, err = loadIDs(ctx, pool, `
		SELECT id FROM pets
		WHERE pet_type = 'adoptable' AND adoption_status = 'available' AND active
		LIMIT $1
	`, cfg.AdoptableLimit)
	if err != nil {
		return nil, fmt.Errorf("load adoptable pets: %w", err)
	}

	if len(dataPool.Owners) == 0 {
		return nil, fmt.Errorf("no pet owners loaded")
	}
	if len(dataPool.Locations) == 0 || len(dataPool.Services) == 0 {
		return nil, fmt.Errorf("no locations or services loaded")
	}

	return dataPool, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, sql string, args ...any) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
