package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/apperr"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

func ParseStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(s); st {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", apperr.Invalid(fmt.Sprintf("unknown appointment status %q", s))
}

// Holds reports whether an appointment in this status occupies its slot.
// Completed appointments keep their slot; only cancellation frees it.
func (s AppointmentStatus) Holds() bool {
	return s != StatusCancelled
}

// Reschedulable reports whether an appointment may still be moved.
func (s AppointmentStatus) Reschedulable() bool {
	return s != StatusCompleted && s != StatusCancelled
}

// TimeOfDay is a wall clock time in seconds since midnight.
type TimeOfDay int32

const secondsPerDay = 24 * 60 * 60

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ParseTimeOfDay accepts "15:04" and "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, apperr.Invalid(fmt.Sprintf("invalid time %q, want HH:MM", s))
	}
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < secondsPerDay
}

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Second
}

func (t TimeOfDay) String() string {
	if t.Second() == 0 {
		return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
	}
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

const dateLayout = "2006-01-02"

// DateOf truncates t to its calendar day, expressed as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Invalid(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s))
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Slot is a bookable (date, time, location) triple.
type Slot struct {
	LocationID uuid.UUID
	Date       time.Time
	Time       TimeOfDay
}

func NewSlot(locationID uuid.UUID, date time.Time, t TimeOfDay) Slot {
	return Slot{LocationID: locationID, Date: DateOf(date), Time: t}
}

// StartsAt is the wall clock moment the slot begins in the clinic time zone.
func (s Slot) StartsAt(loc *time.Location) time.Time {
	y, m, d := s.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(s.Time.Duration())
}

func (s Slot) Equal(o Slot) bool {
	return s.LocationID == o.LocationID && s.Date.Equal(o.Date) && s.Time == o.Time
}

// Key identifies the slot for locking.
func (s Slot) Key() string {
	return fmt.Sprintf("slot:%s:%s:%d", s.LocationID, FormatDate(s.Date), int32(s.Time))
}

type Appointment struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	PetID      uuid.UUID
	ServiceID  uuid.UUID
	LocationID uuid.UUID
	Date       time.Time
	Time       TimeOfDay
	Status     AppointmentStatus
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (a *Appointment) Slot() Slot {
	return NewSlot(a.LocationID, a.Date, a.Time)
}

// Filter narrows appointment searches. Nil fields match everything; From and
// To bound the date inclusively.
type Filter struct {
	Status     *AppointmentStatus
	Statuses   []AppointmentStatus
	UserID     *uuid.UUID
	PetID      *uuid.UUID
	LocationID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Order      Order
}

type Order int

const (
	// OrderSoonest sorts by date then time ascending.
	OrderSoonest Order = iota
	// OrderLatest sorts by date then time descending.
	OrderLatest
)

// Matches applies the filter to a single appointment. Storage backends
// without a query language use it directly.
func (f Filter) Matches(a *Appointment) bool {
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if a.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.UserID != nil && a.UserID != *f.UserID {
		return false
	}
	if f.PetID != nil && a.PetID != *f.PetID {
		return false
	}
	if f.LocationID != nil && a.LocationID != *f.LocationID {
		return false
	}
	if f.From != nil && a.Date.Before(DateOf(*f.From)) {
		return false
	}
	if f.To != nil && a.Date.After(DateOf(*f.To)) {
		return false
	}
	return true
}

// UpdateFields are the optional overwrites an admin may send along with a
// status change.
type UpdateFields struct {
	Date  *time.Time
	Time  *TimeOfDay
	Notes *string
}
