package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type doubleBooking struct {
	LocationID uuid.UUID
	Date       time.Time
	Count      int
}

// verify looks for the two outcomes the locks and unique indexes exist to
// prevent: an active slot held twice, and a pet with two live requests.
func verify(ctx context.Context, pool *pgxpool.Pool) (slots []doubleBooking, pets []uuid.UUID, err error) {
	rows, err := pool.Query(ctx, `
		SELECT location_id, date, count(*)
		FROM appointments
		WHERE status <> 'cancelled'
		GROUP BY location_id, date, time
		HAVING count(*) > 1
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("check slots: %w", err)
	}
	for rows.Next() {
		var d doubleBooking
		if err := rows.Scan(&d.LocationID, &d.Date, &d.Count); err != nil {
			rows.Close()
			return nil, nil, err
		}
		slots = append(slots, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("check slots: %w", err)
	}

	pets, err = loadIDs(ctx, pool, `
		SELECT pet_id
		FROM adoption_requests
		WHERE status IN ('pending', 'approved')
		GROUP BY pet_id
		HAVING count(*) > 1
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("check adoption requests: %w", err)
	}

	return slots, pets, nil
}

func printVerification(ctx context.Context, pool *pgxpool.Pool) bool {
	slots, pets, err := verify(ctx, pool)
	if err != nil {
		fmt.Printf("Integrity check failed to run: %v\n", err)
		return false
	}

	fmt.Println("Integrity:")
	if len(slots) == 0 && len(pets) == 0 {
		fmt.Println("  OK: no double-booked slots, no pet with two active requests")
		return true
	}
	for _, d := range slots {
		fmt.Printf("  DOUBLE BOOKED: location=%s date=%s active=%d\n", d.LocationID, d.Date.Format("2006-01-02"), d.Count)
	}
	for _, id := range pets {
		fmt.Printf("  DUPLICATE REQUESTS: pet=%s\n", id)
	}
	return false
}
