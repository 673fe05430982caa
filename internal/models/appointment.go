package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/scheduling"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	ID              primitive.ObjectID      `bson:"_id,omitempty" json:"id"`
	DoctorID        primitive.ObjectID      `bson:"doctorId" json:"doctorId"`
	PatientID       primitive.ObjectID      `bson:"patientId" json:"patientId"`
	PatientName     string                  `bson:"patientName" json:"patientName"`
	DateISO         scheduling.CalendarDate `bson:"dateISO" json:"dateISO"`
	Slot            scheduling.TimeOfDay    `bson:"slot" json:"slot"`
	StartTime       time.Time               `bson:"startTime" json:"startTime"`
	EndTime         time.Time               `bson:"endTime" json:"endTime"`
	DurationMinutes int                     `bson:"durationMinutes" json:"durationMinutes"`
	Reason          string                  `bson:"reason,omitempty" json:"reason,omitempty"`
	Status          AppointmentStatus       `bson:"status" json:"status"`
	// Active is true for every non-cancelled appointment; the unique index on
	// (doctorId, dateISO, slot) only covers active rows.
	Active       bool          `bson:"active" json:"-"`
	Prescription *Prescription `bson:"prescription,omitempty" json:"prescription,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
}

type Medication struct {
	Name      string `bson:"name" json:"name" binding:"required"`
	Dosage    string `bson:"dosage" json:"dosage"`
	Frequency string `bson:"frequency" json:"frequency"`
	Duration  string `bson:"duration" json:"duration"`
}

type Prescription struct {
	Medications []Medication       `bson:"medications" json:"medications" binding:"dive"`
	Notes       string             `bson:"notes" json:"notes"`
	IssuedBy    primitive.ObjectID `bson:"issuedBy" json:"issuedBy"`
	IssuedAt    time.Time          `bson:"issuedAt" json:"issuedAt"`
}

// Transition returns the status reached by action from s, or false when the
// move is not allowed. Statuses only move forward; cancel is reachable from
// pending and confirmed.
func (s AppointmentStatus) Transition(action string) (AppointmentStatus, bool) {
	switch action {
	case "confirm":
		if s == StatusPending {
			return StatusConfirmed, true
		}
	case "complete":
		if s == StatusPending || s == StatusConfirmed {
			return StatusCompleted, true
		}
	case "cancel":
		if s == StatusPending || s == StatusConfirmed {
			return StatusCancelled, true
		}
	}
	return s, false
}
