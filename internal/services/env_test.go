package services

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/scheduling"
	"github.com/harentsoaR/clinic-api/internal/store"
)

// monday is a Monday.
const monday = "2025-06-02"

type recordingNotifier struct {
	mu    sync.Mutex
	calls []models.AppointmentStatus
}

func (n *recordingNotifier) AppointmentChanged(_ *models.User, apt *models.Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, apt.Status)
}

func (n *recordingNotifier) statuses() []models.AppointmentStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.AppointmentStatus(nil), n.calls...)
}

type testEnv struct {
	store     *store.Memory
	booking   *BookingService
	assign    *AssignmentService
	directory *DirectoryService
	accounts  *AccountService
	notifier  *recordingNotifier
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemory()
	log := quietLogger()
	m := metrics.NewSchedulingMetrics(prometheus.NewRegistry())
	n := &recordingNotifier{}
	assign := NewAssignmentService(st, m, log)
	return &testEnv{
		store:     st,
		booking:   NewBookingService(st, scheduling.NewCalculator(scheduling.Interval30), 30, n, m, log),
		assign:    assign,
		directory: NewDirectoryService(st, assign, log),
		accounts:  NewAccountService(st, nil, log),
		notifier:  n,
	}
}

func (e *testEnv) doctor(t *testing.T, name string, windows ...scheduling.AvailabilityWindow) *models.Doctor {
	t.Helper()
	d := &models.Doctor{
		FullName:     name,
		Email:        Slugify(name) + "@clinic.test",
		Role:         models.RoleDoctor,
		Slug:         Slugify(name),
		Availability: windows,
	}
	require.NoError(t, e.store.CreateDoctor(context.Background(), d))
	return d
}

func (e *testEnv) patient(t *testing.T, name string) Principal {
	t.Helper()
	u := &models.User{FullName: name, Email: Slugify(name) + "@mail.test", Role: models.RolePatient, Phone: "+15550100"}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return Principal{UserID: u.ID, Role: models.RolePatient}
}

func (e *testEnv) department(t *testing.T, name string) *models.Department {
	t.Helper()
	d := &models.Department{Name: name, Slug: Slugify(name)}
	require.NoError(t, e.store.CreateDepartment(context.Background(), d))
	return d
}

func admin() Principal {
	return Principal{UserID: primitive.NewObjectID(), Role: models.RoleAdmin}
}

func doctorPrincipal(d *models.Doctor) Principal {
	return Principal{UserID: d.ID, Role: models.RoleDoctor}
}

var mondayMorning = scheduling.AvailabilityWindow{Day: "monday", From: "09:00", To: "11:00"}
