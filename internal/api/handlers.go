package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/apperr"
	"github.com/petssecrets/veterinaria-core/internal/appointment"
)

func scheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleAppointmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		date, err := appointment.ParseDate(req.Date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		tod, err := appointment.ParseTimeOfDay(req.Time)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		appt, err := svc.Schedule(r.Context(), actorFrom(r), appointment.ScheduleInput{
			PetID:      uuid.MustParse(req.PetID),
			ServiceID:  uuid.MustParse(req.ServiceID),
			LocationID: uuid.MustParse(req.LocationID),
			Date:       date,
			Time:       tod,
			Notes:      req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), actorFrom(r), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func listMyAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.ListMine(r.Context(), actorFrom(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentList(appts))
	}
}

func listUpcomingAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.ListUpcoming(r.Context(), actorFrom(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentList(appts))
	}
}

func searchAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := appointmentFilter(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		appts, err := svc.Search(r.Context(), actorFrom(r), f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentList(appts))
	}
}

func appointmentFilter(r *http.Request) (appointment.Filter, error) {
	q := r.URL.Query()
	f := appointment.Filter{Order: appointment.OrderSoonest}

	if raw := q.Get("status"); raw != "" {
		st, err := appointment.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}

	var err error
	if f.UserID, err = optionalUUID(r, "user_id"); err != nil {
		return f, err
	}
	if f.PetID, err = optionalUUID(r, "pet_id"); err != nil {
		return f, err
	}
	if f.LocationID, err = optionalUUID(r, "location_id"); err != nil {
		return f, err
	}

	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		d, err := appointment.ParseDate(raw)
		if err != nil {
			return f, err
		}
		*dst = &d
	}

	return f, nil
}

func availabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		locationID, err := uuid.Parse(q.Get("location_id"))
		if err != nil {
			writeServiceError(w, r, apperr.Invalid("location_id must be a valid UUID"))
			return
		}
		date, err := appointment.ParseDate(q.Get("date"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		tod, err := appointment.ParseTimeOfDay(q.Get("time"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		slot := appointment.NewSlot(locationID, date, tod)
		free, err := svc.CheckAvailability(r.Context(), slot)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			LocationID: locationID,
			Date:       appointment.FormatDate(slot.Date),
			Time:       slot.Time.String(),
			Available:  free,
		})
	}
}

func updateAppointmentStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req UpdateAppointmentStatusRequest
		if !decodeBody(w, r, &req) {
			return
		}

		status, err := appointment.ParseStatus(req.Status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		upd := appointment.UpdateFields{Notes: req.Notes}
		if req.Date != nil {
			d, err := appointment.ParseDate(*req.Date)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			upd.Date = &d
		}
		if req.Time != nil {
			t, err := appointment.ParseTimeOfDay(*req.Time)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			upd.Time = &t
		}

		appt, err := svc.UpdateStatus(r.Context(), actorFrom(r), id, status, upd)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleAppointmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		date, err := appointment.ParseDate(req.Date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		tod, err := appointment.ParseTimeOfDay(req.Time)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		appt, err := svc.Reschedule(r.Context(), actorFrom(r), id, date, tod)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), actorFrom(r), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}
