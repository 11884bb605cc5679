package appointment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petssecrets/veterinaria-core/internal/apperr"
	"github.com/petssecrets/veterinaria-core/internal/appointment"
	"github.com/petssecrets/veterinaria-core/internal/auth"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/config"
	"github.com/petssecrets/veterinaria-core/internal/events"
	redisclient "github.com/petssecrets/veterinaria-core/internal/redis"
	"github.com/petssecrets/veterinaria-core/internal/storage/memory"
)

var fixedNow = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx        context.Context
	store      *memory.Store
	svc        *appointment.Service
	published  *events.Recorder
	admin      auth.Actor
	serviceID  uuid.UUID
	locationID uuid.UUID
	users      int
}

func newFixture(t *testing.T, loc *time.Location, now time.Time) *fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.New()
	repo := store.Clinic()

	admin, err := repo.CreateUser(ctx, clinic.User{FullName: "Admin", Email: "admin@example.com", Role: clinic.RoleAdmin})
	require.NoError(t, err)
	sv, err := repo.CreateService(ctx, clinic.VetService{Name: "Vaccination", Price: 45, Active: true})
	require.NoError(t, err)
	l, err := repo.CreateLocation(ctx, clinic.Location{Name: "Miraflores", City: "Lima"})
	require.NoError(t, err)

	published := &events.Recorder{}
	svc := appointment.NewService(store.Appointments(), redisclient.NewLocalLocker(), published, config.Config{Location: loc})
	appointment.SetClock(svc, func() time.Time { return now })

	return &fixture{
		ctx:        ctx,
		store:      store,
		svc:        svc,
		published:  published,
		admin:      auth.Actor{UserID: admin.ID, Role: clinic.RoleAdmin},
		serviceID:  sv.ID,
		locationID: l.ID,
	}
}

// owner creates a user with one pet.
func (f *fixture) owner(t *testing.T) (auth.Actor, uuid.UUID) {
	t.Helper()

	f.users++
	repo := f.store.Clinic()
	u, err := repo.CreateUser(f.ctx, clinic.User{
		FullName: fmt.Sprintf("Owner %d", f.users),
		Email:    fmt.Sprintf("owner%d@example.com", f.users),
		Role:     clinic.RoleUser,
	})
	require.NoError(t, err)

	owner := u.ID
	p, err := repo.CreatePet(f.ctx, clinic.Pet{
		Name:    "Firulais",
		Species: clinic.SpeciesDog,
		Type:    clinic.PetOwned,
		Status:  clinic.AdoptionUnavailable,
		OwnerID: &owner,
		Active:  true,
	})
	require.NoError(t, err)

	return auth.Actor{UserID: u.ID, Role: clinic.RoleUser}, p.ID
}

func (f *fixture) input(petID uuid.UUID, date string, t appointment.TimeOfDay) appointment.ScheduleInput {
	d, err := appointment.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return appointment.ScheduleInput{
		PetID:      petID,
		ServiceID:  f.serviceID,
		LocationID: f.locationID,
		Date:       d,
		Time:       t,
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := appointment.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestScheduleThenSameSlotConflicts(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, anaPet := f.owner(t)
	luis, luisPet := f.owner(t)
	ten := appointment.NewTimeOfDay(10, 0, 0)

	appt, err := f.svc.Schedule(f.ctx, ana, f.input(anaPet, "2025-06-01", ten))
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusPending, appt.Status)
	assert.Equal(t, ana.UserID, appt.UserID)
	assert.Equal(t, "2025-06-01", appointment.FormatDate(appt.Date))

	_, err = f.svc.Schedule(f.ctx, luis, f.input(luisPet, "2025-06-01", ten))
	assert.ErrorIs(t, err, appointment.ErrSlotTaken)
	assert.ErrorIs(t, err, apperr.ErrSlotConflict)

	// the next half hour is still free
	_, err = f.svc.Schedule(f.ctx, luis, f.input(luisPet, "2025-06-01", appointment.NewTimeOfDay(10, 30, 0)))
	assert.NoError(t, err)
}

func TestScheduleRejectsForeignPet(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, _ := f.owner(t)
	_, luisPet := f.owner(t)

	_, err := f.svc.Schedule(f.ctx, ana, f.input(luisPet, "2025-06-01", appointment.NewTimeOfDay(10, 0, 0)))
	assert.ErrorIs(t, err, appointment.ErrPetNotOwned)
	assert.ErrorIs(t, err, apperr.ErrOwnership)
}

func TestScheduleMissingReferences(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, pet := f.owner(t)
	ten := appointment.NewTimeOfDay(10, 0, 0)

	tests := []struct {
		name   string
		mutate func(in *appointment.ScheduleInput)
		want   error
	}{
		{"pet", func(in *appointment.ScheduleInput) { in.PetID = uuid.New() }, clinic.ErrPetNotFound},
		{"service", func(in *appointment.ScheduleInput) { in.ServiceID = uuid.New() }, clinic.ErrServiceNotFound},
		{"location", func(in *appointment.ScheduleInput) { in.LocationID = uuid.New() }, clinic.ErrLocationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input(pet, "2025-06-01", ten)
			tt.mutate(&in)

			_, err := f.svc.Schedule(f.ctx, ana, in)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, apperr.ErrNotFound)
		})
	}
}

func TestScheduleInPast(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, pet := f.owner(t)

	_, err := f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-05-20", appointment.NewTimeOfDay(8, 59, 0)))
	assert.ErrorIs(t, err, appointment.ErrSlotInPast)
	assert.ErrorIs(t, err, apperr.ErrPastDate)

	_, err = f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-05-19", appointment.NewTimeOfDay(18, 0, 0)))
	assert.ErrorIs(t, err, apperr.ErrPastDate)

	// the current minute is not strictly before now
	_, err = f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-05-20", appointment.NewTimeOfDay(9, 0, 0)))
	assert.NoError(t, err)
}

func TestSchedulePastCheckUsesClinicTimeZone(t *testing.T) {
	lima := time.FixedZone("PET", -5*60*60)
	// 09:30 in Lima
	now := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	f := newFixture(t, lima, now)
	ana, pet := f.owner(t)

	_, err := f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-06-01", appointment.NewTimeOfDay(9, 0, 0)))
	assert.ErrorIs(t, err, apperr.ErrPastDate)

	_, err = f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-06-01", appointment.NewTimeOfDay(10, 0, 0)))
	assert.NoError(t, err)
}

func TestScheduleRejectsInvalidTime(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, pet := f.owner(t)

	_, err := f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-06-01", appointment.TimeOfDay(24*60*60)))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, anaPet := f.owner(t)
	luis, luisPet := f.owner(t)
	ten := appointment.NewTimeOfDay(10, 0, 0)

	appt, err := f.svc.Schedule(f.ctx, ana, f.input(anaPet, "2025-06-01", ten))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(f.ctx, ana, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, cancelled.Status)

	free, err := f.svc.CheckAvailability(f.ctx, appointment.NewSlot(f.locationID, mustDate(t, "2025-06-01"), ten))
	require.NoError(t, err)
	assert.True(t, free)

	_, err = f.svc.Schedule(f.ctx, luis, f.input(luisPet, "2025-06-01", ten))
	assert.NoError(t, err)
}

func TestCompletedAppointmentKeepsItsSlot(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, anaPet := f.owner(t)
	luis, luisPet := f.owner(t)
	ten := appointment.NewTimeOfDay(10, 0, 0)

	appt, err := f.svc.Schedule(f.ctx, ana, f.input(anaPet, "2025-06-01", ten))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(f.ctx, f.admin, appt.ID, appointment.StatusCompleted, appointment.UpdateFields{})
	require.NoError(t, err)

	_, err = f.svc.Schedule(f.ctx, luis, f.input(luisPet, "2025-06-01", ten))
	assert.ErrorIs(t, err, apperr.ErrSlotConflict)
}

func TestCancelRequiresOwnerOrAdmin(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, pet := f.owner(t)
	luis, _ := f.owner(t)

	appt, err := f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-06-01", appointment.NewTimeOfDay(10, 0, 0)))
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx, luis, appt.ID)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	_, err = f.svc.Cancel(f.ctx, f.admin, appt.ID)
	assert.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx, ana, uuid.New())
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, anaPet := f.owner(t)
	luis, luisPet := f.owner(t)
	ten := appointment.NewTimeOfDay(10, 0, 0)
	eleven := appointment.NewTimeOfDay(11, 0, 0)

	appt, err := f.svc.Schedule(f.ctx, ana, f.input(anaPet, "2025-06-01", ten))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(f.ctx, f.admin, appt.ID, appointment.StatusConfirmed, appointment.UpdateFields{})
	require.NoError(t, err)
	_, err = f.svc.Schedule(f.ctx, luis, f.input(luisPet, "2025-06-01", eleven))
	require.NoError(t, err)

	t.Run("stranger", func(t *testing.T) {
		_, err := f.svc.Reschedule(f.ctx, luis, appt.ID, mustDate(t, "2025-06-02"), ten)
		assert.ErrorIs(t, err, appointment.ErrNotAppointmentOwner)
	})

	t.Run("occupied by another", func(t *testing.T) {
		_, err := f.svc.Reschedule(f.ctx, ana, appt.ID, mustDate(t, "2025-06-01"), eleven)
		assert.ErrorIs(t, err, apperr.ErrSlotConflict)
	})

	t.Run("past", func(t *testing.T) {
		_, err := f.svc.Reschedule(f.ctx, ana, appt.ID, mustDate(t, "2025-05-01"), ten)
		assert.ErrorIs(t, err, apperr.ErrPastDate)
	})

	t.Run("own slot", func(t *testing.T) {
		moved, err := f.svc.Reschedule(f.ctx, ana, appt.ID, mustDate(t, "2025-06-01"), ten)
		require.NoError(t, err)
		assert.Equal(t, appointment.StatusPending, moved.Status)
	})

	t.Run("free slot", func(t *testing.T) {
		moved, err := f.svc.Reschedule(f.ctx, ana, appt.ID, mustDate(t, "2025-06-03"), eleven)
		require.NoError(t, err)
		assert.Equal(t, "2025-06-03", appointment.FormatDate(moved.Date))
		assert.Equal(t, eleven, moved.Time)
		assert.Equal(t, appointment.StatusPending, moved.Status)

		free, err := f.svc.CheckAvailability(f.ctx, appointment.NewSlot(f.locationID, mustDate(t, "2025-06-01"), ten))
		require.NoError(t, err)
		assert.True(t, free, "old slot should be released")
	})
}

func TestRescheduleCompletedOrCancelled(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, pet := f.owner(t)

	for i, status := range []appointment.AppointmentStatus{appointment.StatusCompleted, appointment.StatusCancelled} {
		appt, err := f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-06-01", appointment.NewTimeOfDay(10+i, 0, 0)))
		require.NoError(t, err)
		_, err = f.svc.UpdateStatus(f.ctx, f.admin, appt.ID, status, appointment.UpdateFields{})
		require.NoError(t, err)

		_, err = f.svc.Reschedule(f.ctx, ana, appt.ID, mustDate(t, "2025-06-05"), appointment.NewTimeOfDay(9, 0, 0))
		assert.ErrorIs(t, err, appointment.ErrNotReschedulable, string(status))
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	}
}

func TestUpdateStatusIsAdminOverride(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, pet := f.owner(t)

	appt, err := f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-06-01", appointment.NewTimeOfDay(10, 0, 0)))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(f.ctx, ana, appt.ID, appointment.StatusConfirmed, appointment.UpdateFields{})
	assert.ErrorIs(t, err, auth.ErrAdminOnly)

	_, err = f.svc.UpdateStatus(f.ctx, f.admin, appt.ID, appointment.StatusCancelled, appointment.UpdateFields{})
	require.NoError(t, err)

	// any status to any status, with optional overwrites
	notes := "moved by front desk"
	date := mustDate(t, "2025-06-10")
	tod := appointment.NewTimeOfDay(15, 0, 0)
	updated, err := f.svc.UpdateStatus(f.ctx, f.admin, appt.ID, appointment.StatusConfirmed, appointment.UpdateFields{
		Date:  &date,
		Time:  &tod,
		Notes: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusConfirmed, updated.Status)
	assert.Equal(t, "2025-06-10", appointment.FormatDate(updated.Date))
	assert.Equal(t, tod, updated.Time)
	assert.Equal(t, notes, updated.Notes)
}

func TestUpdateStatusCannotReviveIntoTakenSlot(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, anaPet := f.owner(t)
	luis, luisPet := f.owner(t)
	ten := appointment.NewTimeOfDay(10, 0, 0)

	first, err := f.svc.Schedule(f.ctx, ana, f.input(anaPet, "2025-06-01", ten))
	require.NoError(t, err)
	_, err = f.svc.Cancel(f.ctx, ana, first.ID)
	require.NoError(t, err)
	_, err = f.svc.Schedule(f.ctx, luis, f.input(luisPet, "2025-06-01", ten))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(f.ctx, f.admin, first.ID, appointment.StatusPending, appointment.UpdateFields{})
	assert.ErrorIs(t, err, appointment.ErrSlotTaken)
}

func TestConcurrentScheduleHasSingleWinner(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	const n = 25

	type booker struct {
		actor auth.Actor
		pet   uuid.UUID
	}
	bookers := make([]booker, n)
	for i := range bookers {
		a, p := f.owner(t)
		bookers[i] = booker{a, p}
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for _, b := range bookers {
		wg.Add(1)
		go func(b booker) {
			defer wg.Done()
			<-start
			_, err := f.svc.Schedule(f.ctx, b.actor, f.input(b.pet, "2025-06-01", appointment.NewTimeOfDay(10, 0, 0)))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(b)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)

	active, err := f.svc.Search(f.ctx, f.admin, appointment.Filter{})
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestListings(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, pet := f.owner(t)
	luis, luisPet := f.owner(t)

	late, err := f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-06-02", appointment.NewTimeOfDay(9, 0, 0)))
	require.NoError(t, err)
	early, err := f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-06-01", appointment.NewTimeOfDay(16, 0, 0)))
	require.NoError(t, err)
	gone, err := f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-06-01", appointment.NewTimeOfDay(8, 0, 0)))
	require.NoError(t, err)
	_, err = f.svc.Cancel(f.ctx, ana, gone.ID)
	require.NoError(t, err)
	_, err = f.svc.Schedule(f.ctx, luis, f.input(luisPet, "2025-06-05", appointment.NewTimeOfDay(9, 0, 0)))
	require.NoError(t, err)

	mine, err := f.svc.ListMine(f.ctx, ana)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, late.ID, mine[0].ID)

	upcoming, err := f.svc.ListUpcoming(f.ctx, ana)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, early.ID, upcoming[0].ID)
	assert.Equal(t, late.ID, upcoming[1].ID)

	_, err = f.svc.Search(f.ctx, ana, appointment.Filter{})
	assert.ErrorIs(t, err, auth.ErrAdminOnly)

	cancelled := appointment.StatusCancelled
	all, err := f.svc.Search(f.ctx, f.admin, appointment.Filter{Status: &cancelled})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, gone.ID, all[0].ID)

	got, err := f.svc.Get(f.ctx, ana, late.ID)
	require.NoError(t, err)
	assert.Equal(t, late.ID, got.ID)
	_, err = f.svc.Get(f.ctx, luis, late.ID)
	assert.ErrorIs(t, err, apperr.ErrPermission)
}

func TestLifecycleEmitsEvents(t *testing.T) {
	f := newFixture(t, time.UTC, fixedNow)
	ana, pet := f.owner(t)

	appt, err := f.svc.Schedule(f.ctx, ana, f.input(pet, "2025-06-01", appointment.NewTimeOfDay(10, 0, 0)))
	require.NoError(t, err)
	_, err = f.svc.Reschedule(f.ctx, ana, appt.ID, mustDate(t, "2025-06-02"), appointment.NewTimeOfDay(10, 0, 0))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(f.ctx, f.admin, appt.ID, appointment.StatusConfirmed, appointment.UpdateFields{})
	require.NoError(t, err)
	_, err = f.svc.Cancel(f.ctx, ana, appt.ID)
	require.NoError(t, err)

	want := []string{
		events.AppointmentScheduled,
		events.AppointmentRescheduled,
		events.AppointmentStatusChanged,
		events.AppointmentCancelled,
	}
	assert.Equal(t, want, f.published.Types())

	logged := f.store.Events()
	require.Len(t, logged, len(want))
	for i, rec := range logged {
		assert.Equal(t, want[i], rec.EventType)
		assert.Equal(t, "appointment", rec.Aggregate)
		assert.Equal(t, appt.ID, rec.AggregateID)
	}

	// failed operations leave no trace
	_, err = f.svc.Reschedule(f.ctx, ana, appt.ID, mustDate(t, "2025-06-03"), appointment.NewTimeOfDay(10, 0, 0))
	require.Error(t, err)
	assert.Len(t, f.store.Events(), len(want))
}
