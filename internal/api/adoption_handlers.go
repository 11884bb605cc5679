package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/adoption"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
)

func createAdoptionHandler(svc *adoption.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAdoptionRequest
		if !decodeBody(w, r, &req) {
			return
		}

		created, err := svc.CreateRequest(r.Context(), actorFrom(r), uuid.MustParse(req.PetID), adoption.Questionnaire{
			Experience:       adoption.Experience(req.Experience),
			Housing:          adoption.Housing(req.Housing),
			OtherPets:        req.OtherPets,
			WorkSchedule:     req.WorkSchedule,
			Reason:           req.Reason,
			EmergencyContact: req.EmergencyContact,
			VetReference:     req.VetReference,
			AcceptsTerms:     req.AcceptsTerms,
			AcceptsVisit:     req.AcceptsVisit,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newAdoptionResponse(created))
	}
}

func getAdoptionHandler(svc *adoption.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		req, err := svc.Get(r.Context(), actorFrom(r), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newAdoptionResponse(req))
	}
}

func listMyAdoptionsHandler(svc *adoption.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqs, err := svc.ListMine(r.Context(), actorFrom(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAdoptionList(reqs))
	}
}

func searchAdoptionsHandler(svc *adoption.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := adoptionFilter(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		reqs, err := svc.Search(r.Context(), actorFrom(r), f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAdoptionList(reqs))
	}
}

func adoptionFilter(r *http.Request) (adoption.Filter, error) {
	q := r.URL.Query()
	var f adoption.Filter

	if raw := q.Get("status"); raw != "" {
		st, err := adoption.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	if raw := q.Get("experience"); raw != "" {
		e, err := adoption.ParseExperience(raw)
		if err != nil {
			return f, err
		}
		f.Experience = &e
	}
	if raw := q.Get("housing"); raw != "" {
		h, err := adoption.ParseHousing(raw)
		if err != nil {
			return f, err
		}
		f.Housing = &h
	}

	var err error
	if f.UserID, err = optionalUUID(r, "user_id"); err != nil {
		return f, err
	}
	if f.PetID, err = optionalUUID(r, "pet_id"); err != nil {
		return f, err
	}

	return f, nil
}

func canAdoptHandler(svc *adoption.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		petID, ok := uuidParam(w, r, "petID")
		if !ok {
			return
		}

		can, err := svc.CanAdopt(r.Context(), actorFrom(r).UserID, petID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, CanAdoptResponse{PetID: petID, CanAdopt: can})
	}
}

func updateAdoptionStatusHandler(svc *adoption.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req UpdateAdoptionStatusRequest
		if !decodeBody(w, r, &req) {
			return
		}

		status, err := adoption.ParseStatus(req.Status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		updated, err := svc.UpdateStatus(r.Context(), actorFrom(r), id, adoption.StatusUpdate{
			Status:          status,
			RejectionReason: req.RejectionReason,
			Notes:           req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newAdoptionResponse(updated))
	}
}

func cancelAdoptionHandler(svc *adoption.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		cancelled, err := svc.Cancel(r.Context(), actorFrom(r), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newAdoptionResponse(cancelled))
	}
}

func setPetStatusHandler(svc *adoption.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req SetPetStatusRequest
		if !decodeBody(w, r, &req) {
			return
		}

		status, err := clinic.ParseAdoptionStatus(req.Status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		pet, err := svc.SetPetStatus(r.Context(), actorFrom(r), id, status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newPetResponse(pet))
	}
}
