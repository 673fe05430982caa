package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/scheduling"
	"github.com/harentsoaR/clinic-api/internal/store"
)

type AppointmentQuery struct {
	Status   string
	Date     string
	DoctorID string
}

// ListAppointments applies the caller's role: patients only see their own
// appointments and doctors only those assigned to them.
func (s *BookingService) ListAppointments(ctx context.Context, p Principal, q AppointmentQuery) ([]models.Appointment, error) {
	var f store.AppointmentFilter
	switch {
	case p.IsPatient():
		id := p.UserID
		f.PatientID = &id
	case p.IsDoctor():
		id := p.UserID
		f.DoctorID = &id
	case q.DoctorID != "":
		id, err := parseID(q.DoctorID, "doctor")
		if err != nil {
			return nil, err
		}
		f.DoctorID = &id
	}
	if q.Status != "" {
		f.Status = models.AppointmentStatus(strings.ToLower(q.Status))
	}
	if q.Date != "" {
		date, err := scheduling.NormalizeDate(q.Date)
		if err != nil {
			return nil, err
		}
		f.Date = date
	}

	list, err := s.store.ListAppointments(ctx, f)
	if err != nil {
		return nil, storeFailure(s.log, err, "appointments")
	}
	return list, nil
}

func canManage(p Principal, apt *models.Appointment) bool {
	return p.IsAdmin() || (p.IsDoctor() && apt.DoctorID == p.UserID)
}

func canView(p Principal, apt *models.Appointment) bool {
	return canManage(p, apt) || apt.PatientID == p.UserID
}

func (s *BookingService) GetAppointment(ctx context.Context, p Principal, idHex string) (*models.Appointment, error) {
	id, err := parseID(idHex, "appointment")
	if err != nil {
		return nil, err
	}
	apt, err := s.store.FindAppointment(ctx, id)
	if err != nil {
		return nil, storeFailure(s.log, err, "appointment")
	}
	if !canView(p, apt) {
		return nil, apperr.Forbidden("permission denied")
	}
	return apt, nil
}

type MedicationInput struct {
	Name      string `json:"name" binding:"required"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

type PrescriptionInput struct {
	Medications []MedicationInput `json:"medications" binding:"dive"`
	Notes       string            `json:"notes"`
}

type AppointmentUpdate struct {
	Action       string
	Prescription *PrescriptionInput
}

// UpdateAppointment applies a status action and/or attaches a prescription.
// Only the assigned doctor or an admin may call it. The status change is a
// compare-and-set on the status read here, so two racing updates cannot both
// apply.
func (s *BookingService) UpdateAppointment(ctx context.Context, p Principal, idHex string, u AppointmentUpdate) (*models.Appointment, error) {
	id, err := parseID(idHex, "appointment")
	if err != nil {
		return nil, err
	}
	action := strings.ToLower(strings.TrimSpace(u.Action))
	if action == "" && u.Prescription == nil {
		return nil, apperr.Validation("nothing to update")
	}
	switch action {
	case "", "confirm", "complete", "cancel":
	default:
		return nil, apperr.Validation("unknown action %q", u.Action)
	}

	apt, err := s.store.FindAppointment(ctx, id)
	if err != nil {
		return nil, storeFailure(s.log, err, "appointment")
	}
	if !canManage(p, apt) {
		return nil, apperr.Forbidden("only the assigned doctor or an admin can update this appointment")
	}

	var next models.AppointmentStatus
	if action != "" {
		var ok bool
		next, ok = apt.Status.Transition(action)
		if !ok {
			return nil, apperr.Validation("cannot %s a %s appointment", action, apt.Status)
		}
	}
	if u.Prescription != nil {
		if len(u.Prescription.Medications) == 0 && strings.TrimSpace(u.Prescription.Notes) == "" {
			return nil, apperr.Validation("prescription needs medications or notes")
		}
		if apt.Status == models.StatusCancelled || next == models.StatusCancelled {
			return nil, apperr.Validation("cannot prescribe on a cancelled appointment")
		}
	}

	if action != "" {
		if err := s.store.UpdateAppointmentStatus(ctx, id, apt.Status, next); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.Conflict("appointment was modified concurrently", nil)
			}
			return nil, storeFailure(s.log, err, "appointment")
		}
		s.metrics.ObserveTransition(string(next))
		s.log.WithFields(logrus.Fields{"appointmentId": idHex, "from": apt.Status, "to": next}).Info("appointment status changed")
	}

	if u.Prescription != nil {
		rx := &models.Prescription{
			Notes:    strings.TrimSpace(u.Prescription.Notes),
			IssuedBy: p.UserID,
			IssuedAt: s.now(),
		}
		for _, m := range u.Prescription.Medications {
			rx.Medications = append(rx.Medications, models.Medication(m))
		}
		if err := s.store.SetPrescription(ctx, id, rx); err != nil {
			return nil, storeFailure(s.log, err, "appointment")
		}
	}

	updated, err := s.store.FindAppointment(ctx, id)
	if err != nil {
		return nil, storeFailure(s.log, err, "appointment")
	}
	if next == models.StatusConfirmed || next == models.StatusCancelled {
		s.notifyPatient(ctx, updated)
	}
	return updated, nil
}

func (s *BookingService) notifyPatient(ctx context.Context, apt *models.Appointment) {
	if s.notifier == nil {
		return
	}
	patient, err := s.store.FindUserByID(ctx, apt.PatientID)
	if err != nil {
		s.log.WithError(err).WithField("appointmentId", apt.ID.Hex()).Warn("patient lookup for notification failed")
		return
	}
	s.notifier.AppointmentChanged(patient, apt)
}

// DeleteAppointment hard-deletes an appointment; doctor or admin only.
func (s *BookingService) DeleteAppointment(ctx context.Context, p Principal, idHex string) error {
	id, err := parseID(idHex, "appointment")
	if err != nil {
		return err
	}
	apt, err := s.store.FindAppointment(ctx, id)
	if err != nil {
		return storeFailure(s.log, err, "appointment")
	}
	if !canManage(p, apt) {
		return apperr.Forbidden("only the assigned doctor or an admin can delete this appointment")
	}
	if err := s.store.DeleteAppointment(ctx, id); err != nil {
		return storeFailure(s.log, err, "appointment")
	}
	s.log.WithField("appointmentId", idHex).Info("appointment deleted")
	return nil
}
