package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/scheduling"
)

type Doctor struct {
	ID           primitive.ObjectID              `bson:"_id,omitempty" json:"id"`
	FullName     string                          `bson:"fullName" json:"fullName"`
	Email        string                          `bson:"email" json:"email"`
	Password     string                          `bson:"password,omitempty" json:"-"`
	Role         string                          `bson:"role" json:"role"`
	Phone        string                          `bson:"phone" json:"phone"`
	Slug         string                          `bson:"slug" json:"slug"`
	Specialty    string                          `bson:"specialty" json:"specialty"`
	Dept         *primitive.ObjectID             `bson:"dept" json:"dept"`
	Availability []scheduling.AvailabilityWindow `bson:"availability" json:"availability"`
	CreatedAt    time.Time                       `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time                       `bson:"updatedAt" json:"updatedAt"`
}

// InDepartment reports whether d's department reference equals id.
func (d *Doctor) InDepartment(id primitive.ObjectID) bool {
	return d.Dept != nil && *d.Dept == id
}

// DoctorPatch lists the profile fields an admin may change. Nil means unchanged.
type DoctorPatch struct {
	FullName     *string
	Phone        *string
	Specialty    *string
	Availability []scheduling.AvailabilityWindow
	// SetAvailability distinguishes "clear availability" from "unchanged".
	SetAvailability bool
}
