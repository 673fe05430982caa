package services

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/models"
)

// Principal is the authenticated caller, as resolved by the auth middleware.
type Principal struct {
	UserID primitive.ObjectID
	Role   string
}

func (p Principal) IsAdmin() bool   { return p.Role == models.RoleAdmin }
func (p Principal) IsDoctor() bool  { return p.Role == models.RoleDoctor }
func (p Principal) IsPatient() bool { return p.Role == models.RolePatient }
