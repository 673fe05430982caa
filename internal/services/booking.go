package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/scheduling"
	"github.com/harentsoaR/clinic-api/internal/store"
)

const msgSlotBooked = "slot already booked"

type BookingStore interface {
	store.Users
	store.Doctors
	store.Appointments
}

type BookingService struct {
	store           BookingStore
	calc            scheduling.Calculator
	defaultDuration int
	notifier        Notifier
	metrics         *metrics.SchedulingMetrics
	log             *logrus.Logger
	now             func() time.Time
}

func NewBookingService(
	st BookingStore,
	calc scheduling.Calculator,
	defaultDuration int,
	notifier Notifier,
	m *metrics.SchedulingMetrics,
	log *logrus.Logger,
) *BookingService {
	return &BookingService{
		store:           st,
		calc:            calc,
		defaultDuration: defaultDuration,
		notifier:        notifier,
		metrics:         m,
		log:             log,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

type BookingRequest struct {
	DoctorID        string
	Date            string
	TimeSlot        string
	DurationMinutes int
	Reason          string
}

type slotRef struct {
	DoctorID string                  `json:"doctorId"`
	Date     scheduling.CalendarDate `json:"date"`
	Slot     scheduling.TimeOfDay    `json:"slot"`
}

// AttemptBook creates a pending appointment for the calling patient.
//
// The existence check before the insert only narrows the race window. The
// partial unique index on (doctorId, dateISO, slot) decides which of two
// concurrent requests wins; the loser's duplicate-key error is reported as
// the same ConflictError. A caller that times out must look the slot up
// again rather than assume failure.
func (s *BookingService) AttemptBook(ctx context.Context, p Principal, req BookingRequest) (*models.Appointment, error) {
	apt, err := s.attemptBook(ctx, p, req)
	s.metrics.ObserveBooking(bookingOutcome(err))
	return apt, err
}

func bookingOutcome(err error) string {
	if err == nil {
		return "created"
	}
	return apperr.KindOf(err).String()
}

func (s *BookingService) attemptBook(ctx context.Context, p Principal, req BookingRequest) (*models.Appointment, error) {
	if !p.IsPatient() {
		return nil, apperr.Forbidden("only patients can book appointments")
	}
	doctorID, err := parseID(req.DoctorID, "doctor")
	if err != nil {
		return nil, err
	}
	date, err := scheduling.NormalizeDate(req.Date)
	if err != nil {
		return nil, err
	}
	slot := scheduling.NormalizeTimeOfDay(req.TimeSlot)
	duration := req.DurationMinutes
	if duration == 0 {
		duration = s.defaultDuration
	}
	if duration < 0 || duration > 8*60 {
		return nil, apperr.Validation("durationMinutes must be between 1 and 480")
	}

	doctor, err := s.store.FindDoctor(ctx, doctorID)
	if err != nil {
		return nil, storeFailure(s.log, err, "doctor")
	}
	if !s.calc.Contains(doctor.Availability, date, slot) {
		return nil, apperr.Validation("slot not in availability")
	}

	ref := slotRef{DoctorID: doctorID.Hex(), Date: date, Slot: slot}
	switch existing, err := s.store.FindActiveAppointment(ctx, doctorID, date, slot); {
	case err == nil && existing != nil:
		return nil, apperr.Conflict(msgSlotBooked, ref)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, storeFailure(s.log, err, "appointment")
	}

	patient, err := s.store.FindUserByID(ctx, p.UserID)
	if err != nil {
		return nil, storeFailure(s.log, err, "patient")
	}

	start, end, err := scheduling.Span(date, slot, duration)
	if err != nil {
		return nil, err
	}
	now := s.now()
	apt := &models.Appointment{
		ID:              primitive.NewObjectID(),
		DoctorID:        doctorID,
		PatientID:       patient.ID,
		PatientName:     patient.FullName,
		DateISO:         date,
		Slot:            slot,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: duration,
		Reason:          req.Reason,
		Status:          models.StatusPending,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.InsertAppointment(ctx, apt); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			s.log.WithFields(logrus.Fields{"doctorId": ref.DoctorID, "date": date, "slot": slot}).
				Warn("booking lost race on unique slot index")
			return nil, apperr.Conflict(msgSlotBooked, ref)
		}
		return nil, storeFailure(s.log, err, "appointment")
	}

	s.log.WithFields(logrus.Fields{
		"appointmentId": apt.ID.Hex(),
		"doctorId":      ref.DoctorID,
		"date":          date,
		"slot":          slot,
	}).Info("appointment booked")
	return apt, nil
}

// BookedSlots lists the slots held by non-cancelled appointments.
func (s *BookingService) BookedSlots(ctx context.Context, doctorIDHex, rawDate string) ([]scheduling.TimeOfDay, error) {
	doctorID, err := parseID(doctorIDHex, "doctor")
	if err != nil {
		return nil, err
	}
	date, err := scheduling.NormalizeDate(rawDate)
	if err != nil {
		return nil, err
	}
	booked, err := s.store.BookedSlots(ctx, doctorID, date)
	if err != nil {
		return nil, storeFailure(s.log, err, "appointments")
	}
	return booked, nil
}

// FreeSlots is the doctor's availability for date minus booked slots.
func (s *BookingService) FreeSlots(ctx context.Context, doctor *models.Doctor, rawDate string) (scheduling.CalendarDate, []scheduling.TimeOfDay, error) {
	date, err := scheduling.NormalizeDate(rawDate)
	if err != nil {
		return "", nil, err
	}
	booked, err := s.store.BookedSlots(ctx, doctor.ID, date)
	if err != nil {
		return "", nil, storeFailure(s.log, err, "appointments")
	}
	return date, scheduling.Free(s.calc.Slots(doctor.Availability, date), booked), nil
}
