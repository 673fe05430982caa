package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Department struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Slug        string               `bson:"slug" json:"slug"`
	Description string               `bson:"description" json:"description"`
	Photo       string               `bson:"photo" json:"photo"`
	Doctors     []primitive.ObjectID `bson:"doctors" json:"doctors"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (d *Department) HasDoctor(id primitive.ObjectID) bool {
	for _, doc := range d.Doctors {
		if doc == id {
			return true
		}
	}
	return false
}

type DepartmentPatch struct {
	Name        *string
	Description *string
	Photo       *string
}
