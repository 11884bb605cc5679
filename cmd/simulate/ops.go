package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/api"
)

var (
	experiences = []string{"none", "basic", "intermediate", "advanced"}
	housings    = []string{"house", "apartment", "farm", "other"}
)

// send issues one authenticated call. The returned status is 0 when the
// request never got a response.
func (s *Simulator) send(ctx context.Context, method, path, token string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

// randomSlot picks from a deliberately small grid so that bookers collide.
func (s *Simulator) randomSlot(rng *rand.Rand) (locationID uuid.UUID, date, clock string) {
	locationID = s.pool.Locations[rng.Intn(len(s.pool.Locations))]

	day := time.Now().In(s.config.Location).AddDate(0, 0, 1+rng.Intn(s.config.SlotDays))
	date = day.Format("2006-01-02")

	minutes := 9*60 + 30*rng.Intn(s.config.SlotsPerDay)
	clock = fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
	return locationID, date, clock
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	o := s.pool.Owners[rng.Intn(len(s.pool.Owners))]
	locationID, date, clock := s.randomSlot(rng)

	start := time.Now()
	status, body := s.send(ctx, http.MethodPost, "/api/appointments", o.Token, api.ScheduleAppointmentRequest{
		PetID:      o.Pets[rng.Intn(len(o.Pets))].String(),
		ServiceID:  s.pool.Services[rng.Intn(len(s.pool.Services))].String(),
		LocationID: locationID.String(),
		Date:       date,
		Time:       clock,
	})
	latency := time.Since(start)

	if status == http.StatusCreated {
		var appt api.AppointmentResponse
		if err := json.Unmarshal(body, &appt); err == nil && appt.ID != uuid.Nil {
			s.pool.AddAppointment(handle{ID: appt.ID, Token: o.Token})
		}
	}

	s.metrics.Booking.Record(latency, status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	h, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, _ := s.send(ctx, http.MethodPost, "/api/appointments/"+h.ID.String()+"/cancel", h.Token, nil)
	s.metrics.Cancel.Record(time.Since(start), status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	h, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	_, date, clock := s.randomSlot(rng)

	start := time.Now()
	status, _ := s.send(ctx, http.MethodPost, "/api/appointments/"+h.ID.String()+"/reschedule", h.Token,
		api.RescheduleAppointmentRequest{Date: date, Time: clock})
	s.metrics.Reschedule.Record(time.Since(start), status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doAdoption(ctx context.Context, rng *rand.Rand) {
	if len(s.pool.Adoptable) == 0 {
		return
	}
	o := s.pool.Owners[rng.Intn(len(s.pool.Owners))]
	petID := s.pool.Adoptable[rng.Intn(len(s.pool.Adoptable))]

	start := time.Now()
	status, body := s.send(ctx, http.MethodPost, "/api/adoptions", o.Token, api.CreateAdoptionRequest{
		PetID:            petID.String(),
		Experience:       experiences[rng.Intn(len(experiences))],
		Housing:          housings[rng.Intn(len(housings))],
		WorkSchedule:     "Mon-Fri office hours",
		Reason:           "Looking for a " + gofakeit.Adjective() + " companion",
		EmergencyContact: gofakeit.Name() + " " + gofakeit.Phone(),
		AcceptsTerms:     true,
		AcceptsVisit:     rng.Intn(2) == 0,
	})
	latency := time.Since(start)

	if status == http.StatusCreated {
		var created api.AdoptionResponse
		if err := json.Unmarshal(body, &created); err == nil && created.ID != uuid.Nil {
			s.pool.AddAdoption(handle{ID: created.ID, Token: o.Token})
		}
	}

	s.metrics.Adoption.Record(latency, status == http.StatusCreated, status == http.StatusConflict)
}

// doReview approves most requests and rejects the rest. An approval takes the
// pet out of the adoptable pool for good, so later requests for it conflict.
func (s *Simulator) doReview(ctx context.Context, rng *rand.Rand) {
	h, ok := s.pool.TakeAdoption(rng)
	if !ok {
		return
	}

	upd := api.UpdateAdoptionStatusRequest{Status: "approved", Notes: "simulated review"}
	if rng.Intn(4) == 0 {
		upd = api.UpdateAdoptionStatusRequest{Status: "rejected", RejectionReason: "housing not suitable"}
	}

	start := time.Now()
	status, _ := s.send(ctx, http.MethodPatch, "/api/adoptions/"+h.ID.String()+"/status", s.pool.AdminToken, upd)
	s.metrics.Review.Record(time.Since(start), status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doListMine(ctx context.Context, rng *rand.Rand) {
	o := s.pool.Owners[rng.Intn(len(s.pool.Owners))]

	start := time.Now()
	status, _ := s.send(ctx, http.MethodGet, "/api/appointments/mine", o.Token, nil)
	s.metrics.ListMine.Record(time.Since(start), status == http.StatusOK, false)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	o := s.pool.Owners[rng.Intn(len(s.pool.Owners))]
	locationID, date, clock := s.randomSlot(rng)

	q := url.Values{}
	q.Set("location_id", locationID.String())
	q.Set("date", date)
	q.Set("time", clock)

	start := time.Now()
	status, _ := s.send(ctx, http.MethodGet, "/api/appointments/availability?"+q.Encode(), o.Token, nil)
	s.metrics.Availability.Record(time.Since(start), status == http.StatusOK, false)
}

func (s *Simulator) doCanAdopt(ctx context.Context, rng *rand.Rand) {
	if len(s.pool.Adoptable) == 0 {
		return
	}
	o := s.pool.Owners[rng.Intn(len(s.pool.Owners))]
	petID := s.pool.Adoptable[rng.Intn(len(s.pool.Adoptable))]

	start := time.Now()
	status, _ := s.send(ctx, http.MethodGet, "/api/adoptions/can-adopt/"+petID.String(), o.Token, nil)
	s.metrics.CanAdopt.Record(time.Since(start), status == http.StatusOK, false)
}
