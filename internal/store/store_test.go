package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/scheduling"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(mongo.ErrNoDocuments), ErrNotFound)

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
	assert.ErrorIs(t, translate(dup), ErrDuplicateKey)

	other := errors.New("server selection timeout")
	assert.Equal(t, other, translate(other))
}

func newActive(doctor primitive.ObjectID, slot string) *models.Appointment {
	return &models.Appointment{
		DoctorID: doctor,
		DateISO:  "2025-06-02",
		Slot:     scheduling.TimeOfDay(slot),
		Status:   models.StatusPending,
		Active:   true,
	}
}

func TestMemoryActiveSlotIsUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	doctor := primitive.NewObjectID()

	first := newActive(doctor, "09:30")
	require.NoError(t, m.InsertAppointment(ctx, first))
	assert.ErrorIs(t, m.InsertAppointment(ctx, newActive(doctor, "09:30")), ErrDuplicateKey)

	// another doctor is unaffected
	require.NoError(t, m.InsertAppointment(ctx, newActive(primitive.NewObjectID(), "09:30")))

	// cancelling frees the slot
	require.NoError(t, m.UpdateAppointmentStatus(ctx, first.ID, models.StatusPending, models.StatusCancelled))
	require.NoError(t, m.InsertAppointment(ctx, newActive(doctor, "09:30")))

	booked, err := m.BookedSlots(ctx, doctor, "2025-06-02")
	require.NoError(t, err)
	assert.Len(t, booked, 1)
}

func TestMemoryStatusUpdateIsConditional(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := newActive(primitive.NewObjectID(), "10:00")
	require.NoError(t, m.InsertAppointment(ctx, a))

	require.NoError(t, m.UpdateAppointmentStatus(ctx, a.ID, models.StatusPending, models.StatusConfirmed))
	assert.ErrorIs(t, m.UpdateAppointmentStatus(ctx, a.ID, models.StatusPending, models.StatusCancelled), ErrNotFound)
}

func TestMemoryDepartmentDoctorSetSemantics(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	dep := &models.Department{Name: "Cardiology", Slug: "cardiology"}
	require.NoError(t, m.CreateDepartment(ctx, dep))

	doc := primitive.NewObjectID()
	require.NoError(t, m.AddDepartmentDoctor(ctx, dep.ID, doc))
	require.NoError(t, m.AddDepartmentDoctor(ctx, dep.ID, doc))

	got, err := m.FindDepartment(ctx, dep.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{doc}, got.Doctors)

	require.NoError(t, m.PullDepartmentDoctor(ctx, dep.ID, doc))
	got, err = m.FindDepartment(ctx, dep.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Doctors)

	assert.ErrorIs(t, m.CreateDepartment(ctx, &models.Department{Name: "Other", Slug: "cardiology"}), ErrDuplicateKey)
}

func TestMemoryConditionalDeptUpdates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	doc := &models.Doctor{FullName: "Dr Ada", Email: "ada@example.com", Role: models.RoleDoctor, Slug: "dr-ada"}
	require.NoError(t, m.CreateDoctor(ctx, doc))

	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	ok, err := m.AssignDoctorDept(ctx, doc.ID, a)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.AssignDoctorDept(ctx, doc.ID, b)
	require.NoError(t, err)
	assert.False(t, ok, "doctor already belongs to a")

	ok, err = m.ClearDoctorDept(ctx, doc.ID, b)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.ClearDoctorDept(ctx, doc.ID, a)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := m.FindDoctor(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Dept)
}

func TestMemoryClearDeptFromDoctors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	x := &models.Doctor{FullName: "Dr X", Email: "x@example.com", Role: models.RoleDoctor, Slug: "dr-x"}
	y := &models.Doctor{FullName: "Dr Y", Email: "y@example.com", Role: models.RoleDoctor, Slug: "dr-y"}
	z := &models.Doctor{FullName: "Dr Z", Email: "z@example.com", Role: models.RoleDoctor, Slug: "dr-z"}
	for _, d := range []*models.Doctor{x, y, z} {
		require.NoError(t, m.CreateDoctor(ctx, d))
	}
	require.NoError(t, m.SetDoctorDept(ctx, x.ID, &a))
	require.NoError(t, m.SetDoctorDept(ctx, y.ID, &a))
	require.NoError(t, m.SetDoctorDept(ctx, z.ID, &b))

	n, err := m.ClearDeptFromDoctors(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, id := range []primitive.ObjectID{x.ID, y.ID} {
		got, err := m.FindDoctor(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got.Dept)
	}
	got, err := m.FindDoctor(ctx, z.ID)
	require.NoError(t, err)
	assert.Equal(t, &b, got.Dept)
}

func TestMemoryDoctorsAndUsersShareEmails(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateUser(ctx, &models.User{Email: "x@example.com", Role: models.RolePatient}))

	err := m.CreateDoctor(ctx, &models.Doctor{Email: "x@example.com", Role: models.RoleDoctor, Slug: "x"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	doc := &models.Doctor{Email: "doc@example.com", Role: models.RoleDoctor, Slug: "doc"}
	require.NoError(t, m.CreateDoctor(ctx, doc))
	u, err := m.FindUserByEmail(ctx, "doc@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoctor, u.Role)

	// patients are not doctors
	patient, err := m.FindUserByEmail(ctx, "x@example.com")
	require.NoError(t, err)
	_, err = m.FindDoctor(ctx, patient.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
