// Package store is the persistence layer for users, doctors, departments and
// appointments. Callers see only ErrNotFound and ErrDuplicateKey; driver
// specific errors never leave this package.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/scheduling"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrDuplicateKey = errors.New("store: duplicate key")
)

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserName(ctx context.Context, id primitive.ObjectID, fullName string) error
}

type Doctors interface {
	CreateDoctor(ctx context.Context, d *models.Doctor) error
	FindDoctor(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error)
	FindDoctorBySlug(ctx context.Context, slug string) (*models.Doctor, error)
	// FindDoctors returns the doctor-role records among ids; missing ids are
	// simply absent from the result.
	FindDoctors(ctx context.Context, ids []primitive.ObjectID) ([]models.Doctor, error)
	ListDoctors(ctx context.Context) ([]models.Doctor, error)
	DoctorSlugExists(ctx context.Context, slug string) (bool, error)
	UpdateDoctorProfile(ctx context.Context, id primitive.ObjectID, p models.DoctorPatch) (*models.Doctor, error)
	SetDoctorDept(ctx context.Context, id primitive.ObjectID, dept *primitive.ObjectID) error
	// AssignDoctorDept sets dept only when the doctor has no department or
	// already has dept. It reports whether the doctor matched.
	AssignDoctorDept(ctx context.Context, id, dept primitive.ObjectID) (bool, error)
	// ClearDoctorDept unsets the reference only while it still equals dept.
	ClearDoctorDept(ctx context.Context, id, dept primitive.ObjectID) (bool, error)
	// ClearDeptFromDoctors unsets the reference on every doctor pointing at
	// dept and returns how many were changed.
	ClearDeptFromDoctors(ctx context.Context, dept primitive.ObjectID) (int64, error)
	DeleteDoctor(ctx context.Context, id primitive.ObjectID) error
}

type Departments interface {
	CreateDepartment(ctx context.Context, d *models.Department) error
	FindDepartment(ctx context.Context, id primitive.ObjectID) (*models.Department, error)
	FindDepartmentBySlug(ctx context.Context, slug string) (*models.Department, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	DepartmentSlugExists(ctx context.Context, slug string) (bool, error)
	UpdateDepartmentProfile(ctx context.Context, id primitive.ObjectID, p models.DepartmentPatch) (*models.Department, error)
	SetDepartmentDoctors(ctx context.Context, id primitive.ObjectID, doctors []primitive.ObjectID) error
	// AddDepartmentDoctor has set semantics: adding a present id is a no-op.
	AddDepartmentDoctor(ctx context.Context, id, doctor primitive.ObjectID) error
	PullDepartmentDoctor(ctx context.Context, id, doctor primitive.ObjectID) error
	DeleteDepartment(ctx context.Context, id primitive.ObjectID) error
}

type AppointmentFilter struct {
	PatientID *primitive.ObjectID
	DoctorID  *primitive.ObjectID
	Status    models.AppointmentStatus
	Date      scheduling.CalendarDate
}

type Appointments interface {
	// InsertAppointment returns ErrDuplicateKey when an active appointment
	// already holds the same (doctorId, dateISO, slot).
	InsertAppointment(ctx context.Context, a *models.Appointment) error
	FindAppointment(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	FindActiveAppointment(ctx context.Context, doctor primitive.ObjectID, date scheduling.CalendarDate, slot scheduling.TimeOfDay) (*models.Appointment, error)
	BookedSlots(ctx context.Context, doctor primitive.ObjectID, date scheduling.CalendarDate) ([]scheduling.TimeOfDay, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error)
	// UpdateAppointmentStatus moves id from one status to another. It returns
	// ErrNotFound if no appointment with that id is currently in from.
	UpdateAppointmentStatus(ctx context.Context, id primitive.ObjectID, from, to models.AppointmentStatus) error
	SetPrescription(ctx context.Context, id primitive.ObjectID, p *models.Prescription) error
	DeleteAppointment(ctx context.Context, id primitive.ObjectID) error
}

type Store interface {
	Users
	Doctors
	Departments
	Appointments
}
