package adoption_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petssecrets/veterinaria-core/internal/adoption"
	"github.com/petssecrets/veterinaria-core/internal/apperr"
	"github.com/petssecrets/veterinaria-core/internal/auth"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/events"
	"github.com/petssecrets/veterinaria-core/internal/storage/memory"
)

var fixedNow = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx       context.Context
	store     *memory.Store
	svc       *adoption.Service
	published *events.Recorder
	admin     auth.Actor
	users     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.New()

	admin, err := store.Clinic().CreateUser(ctx, clinic.User{FullName: "Admin", Email: "admin@example.com", Role: clinic.RoleAdmin})
	require.NoError(t, err)

	published := &events.Recorder{}
	svc := adoption.NewService(store.Adoptions(), published)
	adoption.SetClock(svc, func() time.Time { return fixedNow })

	return &fixture{
		ctx:       ctx,
		store:     store,
		svc:       svc,
		published: published,
		admin:     auth.Actor{UserID: admin.ID, Role: clinic.RoleAdmin},
	}
}

func (f *fixture) user(t *testing.T) auth.Actor {
	t.Helper()

	f.users++
	u, err := f.store.Clinic().CreateUser(f.ctx, clinic.User{
		FullName: fmt.Sprintf("Applicant %d", f.users),
		Email:    fmt.Sprintf("applicant%d@example.com", f.users),
		Role:     clinic.RoleUser,
	})
	require.NoError(t, err)
	return auth.Actor{UserID: u.ID, Role: clinic.RoleUser}
}

func (f *fixture) adoptablePet(t *testing.T) uuid.UUID {
	t.Helper()

	intake := fixedNow.AddDate(0, -2, 0)
	p, err := f.store.Clinic().CreatePet(f.ctx, clinic.Pet{
		Name:       "Michi",
		Species:    clinic.SpeciesCat,
		Gender:     clinic.GenderFemale,
		Size:       clinic.SizeSmall,
		Type:       clinic.PetAdoptable,
		Status:     clinic.AdoptionAvailable,
		Active:     true,
		IntakeDate: &intake,
	})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) pet(t *testing.T, id uuid.UUID) *clinic.Pet {
	t.Helper()
	p, err := f.store.Clinic().GetPetByID(f.ctx, id)
	require.NoError(t, err)
	return p
}

func questionnaire() adoption.Questionnaire {
	return adoption.Questionnaire{
		Experience:       adoption.ExperienceBasic,
		Housing:          adoption.HousingApartment,
		Reason:           "company",
		EmergencyContact: "+51 999 888 777",
		AcceptsTerms:     true,
		AcceptsVisit:     true,
	}
}

// flakyRepo injects faults into the repository handed to transactions.
type flakyRepo struct {
	adoption.Repository
	updatePetErr error
	otherActive  int
}

func (r *flakyRepo) UpdatePet(ctx context.Context, p clinic.Pet) (*clinic.Pet, error) {
	if r.updatePetErr != nil {
		return nil, r.updatePetErr
	}
	return r.Repository.UpdatePet(ctx, p)
}

func (r *flakyRepo) CountActiveRequests(ctx context.Context, petID, excludeID uuid.UUID) (int, error) {
	n, err := r.Repository.CountActiveRequests(ctx, petID, excludeID)
	return n + r.otherActive, err
}

func (r *flakyRepo) InTx(ctx context.Context, fn func(tx adoption.Repository) error) error {
	return r.Repository.InTx(ctx, func(tx adoption.Repository) error {
		return fn(&flakyRepo{Repository: tx, updatePetErr: r.updatePetErr, otherActive: r.otherActive})
	})
}

func TestCreateRequestPutsPetInProcess(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)
	petID := f.adoptablePet(t)

	req, err := f.svc.CreateRequest(f.ctx, ana, petID, questionnaire())
	require.NoError(t, err)
	assert.Equal(t, adoption.StatusPending, req.Status)
	assert.Equal(t, ana.UserID, req.UserID)
	assert.Equal(t, fixedNow, req.RequestedAt)
	assert.Nil(t, req.ApprovedAt)

	assert.Equal(t, clinic.AdoptionInProcess, f.pet(t, petID).Status)
}

func TestCreateRequestForPetInProcess(t *testing.T) {
	f := newFixture(t)
	ana, luis := f.user(t), f.user(t)
	petID := f.adoptablePet(t)

	_, err := f.svc.CreateRequest(f.ctx, ana, petID, questionnaire())
	require.NoError(t, err)

	_, err = f.svc.CreateRequest(f.ctx, luis, petID, questionnaire())
	assert.ErrorIs(t, err, adoption.ErrPetNotAdoptable)
	assert.ErrorIs(t, err, apperr.ErrNotAvailable)
}

func TestCreateRequestDuplicates(t *testing.T) {
	f := newFixture(t)
	ana, luis := f.user(t), f.user(t)
	petID := f.adoptablePet(t)

	_, err := f.svc.CreateRequest(f.ctx, ana, petID, questionnaire())
	require.NoError(t, err)

	// an admin reopens the pet while the request is still pending
	_, err = f.svc.SetPetStatus(f.ctx, f.admin, petID, clinic.AdoptionAvailable)
	require.NoError(t, err)

	_, err = f.svc.CreateRequest(f.ctx, ana, petID, questionnaire())
	assert.ErrorIs(t, err, adoption.ErrPendingRequestExists)
	assert.ErrorIs(t, err, apperr.ErrDuplicateRequest)

	_, err = f.svc.CreateRequest(f.ctx, luis, petID, questionnaire())
	assert.ErrorIs(t, err, adoption.ErrActiveRequestExists)
	assert.ErrorIs(t, err, apperr.ErrDuplicateRequest)

	// the failed attempts left the pet where the admin put it
	assert.Equal(t, clinic.AdoptionAvailable, f.pet(t, petID).Status)
}

func TestCreateRequestMissingOrInactivePet(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)

	_, err := f.svc.CreateRequest(f.ctx, ana, uuid.New(), questionnaire())
	assert.ErrorIs(t, err, clinic.ErrPetNotFound)

	inactive, err := f.store.Clinic().CreatePet(f.ctx, clinic.Pet{
		Name:   "Ghost",
		Type:   clinic.PetAdoptable,
		Status: clinic.AdoptionAvailable,
		Active: false,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateRequest(f.ctx, ana, inactive.ID, questionnaire())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateRequestValidatesQuestionnaire(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)
	petID := f.adoptablePet(t)

	q := questionnaire()
	q.Housing = "boat"
	_, err := f.svc.CreateRequest(f.ctx, ana, petID, q)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	q = questionnaire()
	q.EmergencyContact = "  "
	_, err = f.svc.CreateRequest(f.ctx, ana, petID, q)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	assert.Equal(t, clinic.AdoptionAvailable, f.pet(t, petID).Status)
}

func TestApproveTransfersOwnership(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)
	petID := f.adoptablePet(t)

	req, err := f.svc.CreateRequest(f.ctx, ana, petID, questionnaire())
	require.NoError(t, err)

	approved, err := f.svc.UpdateStatus(f.ctx, f.admin, req.ID, adoption.StatusUpdate{Status: adoption.StatusApproved, Notes: "home visit ok"})
	require.NoError(t, err)
	assert.Equal(t, adoption.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, fixedNow, *approved.ApprovedAt)
	assert.Equal(t, "home visit ok", approved.Notes)

	pet := f.pet(t, petID)
	assert.True(t, pet.OwnedBy(ana.UserID))
	assert.Equal(t, clinic.PetOwned, pet.Type)
	assert.Equal(t, clinic.AdoptionAdopted, pet.Status)
	require.NotNil(t, pet.AdoptionDate)
	assert.Equal(t, fixedNow, *pet.AdoptionDate)

	completed, err := f.svc.UpdateStatus(f.ctx, f.admin, req.ID, adoption.StatusUpdate{Status: adoption.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, adoption.StatusCompleted, completed.Status)

	pet = f.pet(t, petID)
	assert.Equal(t, clinic.AdoptionAdopted, pet.Status)
	assert.True(t, pet.OwnedBy(ana.UserID))
}

func TestApproveIsAtomic(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)
	petID := f.adoptablePet(t)

	req, err := f.svc.CreateRequest(f.ctx, ana, petID, questionnaire())
	require.NoError(t, err)

	boom := errors.New("disk full")
	broken := adoption.NewService(&flakyRepo{Repository: f.store.Adoptions(), updatePetErr: boom}, nil)

	_, err = broken.UpdateStatus(f.ctx, f.admin, req.ID, adoption.StatusUpdate{Status: adoption.StatusApproved})
	require.ErrorIs(t, err, boom)

	got, err := f.svc.Get(f.ctx, ana, req.ID)
	require.NoError(t, err)
	assert.Equal(t, adoption.StatusPending, got.Status)
	assert.Nil(t, got.ApprovedAt)

	pet := f.pet(t, petID)
	assert.Nil(t, pet.OwnerID)
	assert.Equal(t, clinic.AdoptionInProcess, pet.Status)
	assert.Equal(t, clinic.PetAdoptable, pet.Type)
}

func TestRejectOnlyActiveRequestReleasesPet(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)
	petID := f.adoptablePet(t)

	req, err := f.svc.CreateRequest(f.ctx, ana, petID, questionnaire())
	require.NoError(t, err)

	rejected, err := f.svc.UpdateStatus(f.ctx, f.admin, req.ID, adoption.StatusUpdate{
		Status:          adoption.StatusRejected,
		RejectionReason: "no yard",
	})
	require.NoError(t, err)
	assert.Equal(t, adoption.StatusRejected, rejected.Status)
	assert.Equal(t, "no yard", rejected.RejectionReason)

	assert.Equal(t, clinic.AdoptionAvailable, f.pet(t, petID).Status)

	can, err := f.svc.CanAdopt(f.ctx, ana.UserID, petID)
	require.NoError(t, err)
	assert.True(t, can)
}

func TestRejectOneOfSeveralKeepsPetStatus(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)
	petID := f.adoptablePet(t)

	req, err := f.svc.CreateRequest(f.ctx, ana, petID, questionnaire())
	require.NoError(t, err)

	svc := adoption.NewService(&flakyRepo{Repository: f.store.Adoptions(), otherActive: 1}, nil)
	_, err = svc.UpdateStatus(f.ctx, f.admin, req.ID, adoption.StatusUpdate{Status: adoption.StatusRejected})
	require.NoError(t, err)

	assert.Equal(t, clinic.AdoptionInProcess, f.pet(t, petID).Status)
}

func TestUpdateStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)

	tests := []struct {
		name  string
		path  []adoption.RequestStatus
		final adoption.RequestStatus
		ok    bool
	}{
		{"pending to approved", nil, adoption.StatusApproved, true},
		{"pending to rejected", nil, adoption.StatusRejected, true},
		{"pending notes only", nil, adoption.StatusPending, true},
		{"pending to completed", nil, adoption.StatusCompleted, false},
		{"approved to rejected", []adoption.RequestStatus{adoption.StatusApproved}, adoption.StatusRejected, false},
		{"approved to pending", []adoption.RequestStatus{adoption.StatusApproved}, adoption.StatusPending, false},
		{"rejected to approved", []adoption.RequestStatus{adoption.StatusRejected}, adoption.StatusApproved, false},
		{"completed to approved", []adoption.RequestStatus{adoption.StatusApproved, adoption.StatusCompleted}, adoption.StatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := f.svc.CreateRequest(f.ctx, ana, f.adoptablePet(t), questionnaire())
			require.NoError(t, err)
			for _, st := range tt.path {
				_, err := f.svc.UpdateStatus(f.ctx, f.admin, req.ID, adoption.StatusUpdate{Status: st})
				require.NoError(t, err)
			}

			_, err = f.svc.UpdateStatus(f.ctx, f.admin, req.ID, adoption.StatusUpdate{Status: tt.final})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, adoption.ErrInvalidTransition)
			assert.ErrorIs(t, err, apperr.ErrInvalidState)
		})
	}
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)

	req, err := f.svc.CreateRequest(f.ctx, ana, f.adoptablePet(t), questionnaire())
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(f.ctx, ana, req.ID, adoption.StatusUpdate{Status: adoption.StatusApproved})
	assert.ErrorIs(t, err, auth.ErrAdminOnly)

	_, err = f.svc.UpdateStatus(f.ctx, f.admin, uuid.New(), adoption.StatusUpdate{Status: adoption.StatusApproved})
	assert.ErrorIs(t, err, adoption.ErrRequestNotFound)
}

func TestCancelOwnPendingRequest(t *testing.T) {
	f := newFixture(t)
	ana, luis := f.user(t), f.user(t)
	petID := f.adoptablePet(t)

	req, err := f.svc.CreateRequest(f.ctx, ana, petID, questionnaire())
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx, luis, req.ID)
	assert.ErrorIs(t, err, adoption.ErrNotRequester)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	_, err = f.svc.Cancel(f.ctx, f.admin, req.ID)
	assert.ErrorIs(t, err, apperr.ErrPermission, "only the applicant may cancel")

	cancelled, err := f.svc.Cancel(f.ctx, ana, req.ID)
	require.NoError(t, err)
	assert.Equal(t, adoption.StatusRejected, cancelled.Status)
	assert.Equal(t, clinic.AdoptionAvailable, f.pet(t, petID).Status)

	_, err = f.svc.Cancel(f.ctx, ana, req.ID)
	assert.ErrorIs(t, err, adoption.ErrNotPending)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	// the pet can be requested again
	_, err = f.svc.CreateRequest(f.ctx, luis, petID, questionnaire())
	assert.NoError(t, err)
}

func TestCancelApprovedRequestFails(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)
	petID := f.adoptablePet(t)

	req, err := f.svc.CreateRequest(f.ctx, ana, petID, questionnaire())
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(f.ctx, f.admin, req.ID, adoption.StatusUpdate{Status: adoption.StatusApproved})
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx, ana, req.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, clinic.AdoptionAdopted, f.pet(t, petID).Status)
}

func TestCanAdopt(t *testing.T) {
	f := newFixture(t)
	ana, luis := f.user(t), f.user(t)
	petID := f.adoptablePet(t)

	can, err := f.svc.CanAdopt(f.ctx, ana.UserID, uuid.New())
	require.NoError(t, err)
	assert.False(t, can, "missing pet")

	can, err = f.svc.CanAdopt(f.ctx, ana.UserID, petID)
	require.NoError(t, err)
	assert.True(t, can)

	_, err = f.svc.CreateRequest(f.ctx, ana, petID, questionnaire())
	require.NoError(t, err)

	for _, u := range []auth.Actor{ana, luis} {
		can, err = f.svc.CanAdopt(f.ctx, u.UserID, petID)
		require.NoError(t, err)
		assert.False(t, can)
	}

	// reopened by an admin: only the user with the pending request is blocked
	_, err = f.svc.SetPetStatus(f.ctx, f.admin, petID, clinic.AdoptionAvailable)
	require.NoError(t, err)

	can, err = f.svc.CanAdopt(f.ctx, ana.UserID, petID)
	require.NoError(t, err)
	assert.False(t, can)
	can, err = f.svc.CanAdopt(f.ctx, luis.UserID, petID)
	require.NoError(t, err)
	assert.True(t, can)
}

func TestSetPetStatusRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)
	petID := f.adoptablePet(t)

	_, err := f.svc.SetPetStatus(f.ctx, ana, petID, clinic.AdoptionUnavailable)
	assert.ErrorIs(t, err, auth.ErrAdminOnly)

	pet, err := f.svc.SetPetStatus(f.ctx, f.admin, petID, clinic.AdoptionUnavailable)
	require.NoError(t, err)
	assert.Equal(t, clinic.AdoptionUnavailable, pet.Status)

	assert.Equal(t, []string{events.PetStatusChanged}, f.published.Types())
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ana, luis := f.user(t), f.user(t)

	first, err := f.svc.CreateRequest(f.ctx, ana, f.adoptablePet(t), questionnaire())
	require.NoError(t, err)

	adoption.SetClock(f.svc, func() time.Time { return fixedNow.Add(time.Hour) })
	q := questionnaire()
	q.Experience = adoption.ExperienceAdvanced
	second, err := f.svc.CreateRequest(f.ctx, ana, f.adoptablePet(t), q)
	require.NoError(t, err)
	_, err = f.svc.CreateRequest(f.ctx, luis, f.adoptablePet(t), questionnaire())
	require.NoError(t, err)

	mine, err := f.svc.ListMine(f.ctx, ana)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	_, err = f.svc.Search(f.ctx, ana, adoption.Filter{})
	assert.ErrorIs(t, err, auth.ErrAdminOnly)

	advanced := adoption.ExperienceAdvanced
	found, err := f.svc.Search(f.ctx, f.admin, adoption.Filter{Experience: &advanced})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, second.ID, found[0].ID)

	all, err := f.svc.Search(f.ctx, f.admin, adoption.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.svc.Get(f.ctx, luis, first.ID)
	assert.ErrorIs(t, err, adoption.ErrNotRequestOwner)
	assert.ErrorIs(t, err, apperr.ErrPermission)
	assert.NotErrorIs(t, err, adoption.ErrNotRequester)
	got, err := f.svc.Get(f.ctx, f.admin, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestLifecycleEmitsEvents(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t)

	req, err := f.svc.CreateRequest(f.ctx, ana, f.adoptablePet(t), questionnaire())
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(f.ctx, f.admin, req.ID, adoption.StatusUpdate{Status: adoption.StatusApproved})
	require.NoError(t, err)

	other, err := f.svc.CreateRequest(f.ctx, ana, f.adoptablePet(t), questionnaire())
	require.NoError(t, err)
	_, err = f.svc.Cancel(f.ctx, ana, other.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.AdoptionRequested,
		events.AdoptionStatusChanged,
		events.AdoptionRequested,
		events.AdoptionCancelled,
	}, f.published.Types())

	msgs := f.published.Messages()
	assert.Equal(t, adoption.StatusPending, msgs[1].Data["from"])
	assert.Len(t, f.store.Events(), 4)
}
