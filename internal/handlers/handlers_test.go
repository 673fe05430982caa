package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/scheduling"
	"github.com/harentsoaR/clinic-api/internal/services"
	"github.com/harentsoaR/clinic-api/internal/store"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

func init() { gin.SetMode(gin.TestMode) }

type api struct {
	t      *testing.T
	router *gin.Engine
	store  *store.Memory
	tokens *utils.TokenIssuer
}

func newAPI(t *testing.T) *api {
	t.Helper()
	require.NoError(t, RegisterValidators())

	log := logrus.New()
	log.SetOutput(io.Discard)
	st := store.NewMemory()
	m := metrics.NewSchedulingMetrics(prometheus.NewRegistry())
	tokens := utils.NewTokenIssuer("test-secret", time.Hour)
	assign := services.NewAssignmentService(st, m, log)
	h := NewHandler(
		services.NewAccountService(st, tokens, log),
		services.NewBookingService(st, scheduling.NewCalculator(scheduling.Interval30), 30, nil, m, log),
		services.NewDirectoryService(st, assign, log),
	)

	r := gin.New()
	h.Routes(r, tokens)
	return &api{t: t, router: r, store: st, tokens: tokens}
}

func (a *api) token(id primitive.ObjectID, role string) string {
	tok, err := a.tokens.Generate(id.Hex(), role)
	require.NoError(a.t, err)
	return tok
}

func (a *api) admin() string { return a.token(primitive.NewObjectID(), models.RoleAdmin) }

func (a *api) patient(name string) string {
	u := &models.User{FullName: name, Email: name + "@mail.test", Role: models.RolePatient}
	require.NoError(a.t, a.store.CreateUser(context.Background(), u))
	return a.token(u.ID, models.RolePatient)
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(a.t, err)
			rdr = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type doctorBody struct {
	Doctor struct {
		ID           string                          `json:"id"`
		Slug         string                          `json:"slug"`
		Dept         *string                         `json:"dept"`
		Availability []scheduling.AvailabilityWindow `json:"availability"`
	} `json:"doctor"`
}

type departmentBody struct {
	Department struct {
		ID      string   `json:"id"`
		Slug    string   `json:"slug"`
		Doctors []string `json:"doctors"`
	} `json:"department"`
}

func (a *api) createDoctor(admin, name string, availability string) doctorBody {
	w := a.do(http.MethodPost, "/api/doctors", admin, map[string]any{
		"fullName":     name,
		"email":        primitive.NewObjectID().Hex() + "@clinic.test",
		"password":     "password1",
		"availability": availability,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[doctorBody](a.t, w)
}

func TestCreateDoctorAcceptsAvailabilityShapes(t *testing.T) {
	a := newAPI(t)
	admin := a.admin()

	doc := a.createDoctor(admin, "Dr Ada", "Monday 9 AM - 11 AM")
	assert.Equal(t, "dr-ada", doc.Doctor.Slug)
	assert.Equal(t, []scheduling.AvailabilityWindow{mondayWindow()}, doc.Doctor.Availability)

	w := a.do(http.MethodPost, "/api/doctors", admin, `{
		"fullName": "Dr Bob", "email": "bob@clinic.test", "password": "password1",
		"availability": {"mon": [{"from": "09:00", "to": "11:00"}]}
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []scheduling.AvailabilityWindow{mondayWindow()}, decode[doctorBody](t, w).Doctor.Availability)

	w = a.do(http.MethodPost, "/api/doctors", admin, `{
		"fullName": "Dr Cy", "email": "cy@clinic.test", "password": "password1",
		"availability": "someday 9-5"
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/doctors", a.patient("eve"), `{"fullName": "Dr Eve", "email": "eve@clinic.test", "password": "password1"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func mondayWindow() scheduling.AvailabilityWindow {
	return scheduling.AvailabilityWindow{Day: "monday", From: "09:00", To: "11:00"}
}

func TestBookingOverHTTP(t *testing.T) {
	a := newAPI(t)
	doc := a.createDoctor(a.admin(), "Dr Ada", "monday 09:00-11:00")
	body := map[string]any{"doctorId": doc.Doctor.ID, "date": "2025-06-02", "timeSlot": "09:30"}

	tokens := []string{a.patient("alice"), a.patient("bob")}
	codes := make([]int, len(tokens))
	var wg sync.WaitGroup
	for i, tok := range tokens {
		wg.Add(1)
		go func(i int, tok string) {
			defer wg.Done()
			codes[i] = a.do(http.MethodPost, "/api/appointments", tok, body).Code
		}(i, tok)
	}
	wg.Wait()
	assert.ElementsMatch(t, []int{http.StatusCreated, http.StatusConflict}, codes)

	w := a.do(http.MethodGet, "/api/appointments/booked?doctorId="+doc.Doctor.ID+"&date=2025-06-02", tokens[0], nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"booked":["09:30"]}`, w.Body.String())

	w = a.do(http.MethodGet, "/api/doctors/dr-ada/slots?date=2025-06-02", tokens[0], nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"date":"2025-06-02","slots":["09:00","10:00","10:30"]}`, w.Body.String())

	w = a.do(http.MethodPost, "/api/appointments", tokens[0], map[string]any{"doctorId": doc.Doctor.ID, "date": "2025-06-02", "timeSlot": "13:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "slot not in availability")

	w = a.do(http.MethodPost, "/api/appointments", tokens[0], map[string]any{"doctorId": "abc", "date": "2025-06-02", "timeSlot": "10:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/appointments", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateAppointmentOverHTTP(t *testing.T) {
	a := newAPI(t)
	admin := a.admin()
	doc := a.createDoctor(admin, "Dr Ada", "monday 09:00-11:00")
	docID, err := primitive.ObjectIDFromHex(doc.Doctor.ID)
	require.NoError(t, err)
	alice := a.patient("alice")

	w := a.do(http.MethodPost, "/api/appointments", alice, map[string]any{"doctorId": doc.Doctor.ID, "date": "2025-06-02", "timeSlot": "9:00 AM"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Appointment struct {
			ID     string `json:"id"`
			Slot   string `json:"slot"`
			Status string `json:"status"`
		} `json:"appointment"`
	}](t, w)
	assert.Equal(t, "09:00", created.Appointment.Slot)
	assert.Equal(t, "pending", created.Appointment.Status)
	path := "/api/appointments/" + created.Appointment.ID

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPatch, path, alice, map[string]any{"action": "confirm"}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPatch, path, admin, map[string]any{"action": "reopen"}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPatch, path, admin, map[string]any{
		"prescription": map[string]any{"medications": []map[string]any{{"dosage": "1 pill"}}},
	}).Code, "medication name is required")

	w = a.do(http.MethodPatch, path, a.token(docID, models.RoleDoctor), map[string]any{
		"action":       "complete",
		"prescription": map[string]any{"medications": []map[string]any{{"name": "Amoxicillin", "dosage": "500mg"}}, "notes": "7 days"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
	assert.Contains(t, w.Body.String(), "Amoxicillin")

	w = a.do(http.MethodGet, "/api/appointments", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.Appointment.ID)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, path, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, path, admin, nil).Code)
}

func TestDepartmentAssignmentOverHTTP(t *testing.T) {
	a := newAPI(t)
	admin := a.admin()
	x := a.createDoctor(admin, "Dr X", "")
	y := a.createDoctor(admin, "Dr Y", "")

	w := a.do(http.MethodPost, "/api/departments", admin, map[string]any{"name": "Cardiology", "doctors": []string{x.Doctor.ID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cardio := decode[departmentBody](t, w)
	w = a.do(http.MethodPost, "/api/departments", admin, map[string]any{"name": "Neurology"})
	require.Equal(t, http.StatusCreated, w.Code)
	neuro := decode[departmentBody](t, w)

	// move X to neurology from the doctor side
	w = a.do(http.MethodPatch, "/api/doctors/dr-x", admin, map[string]any{"dept": neuro.Department.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, decode[doctorBody](t, w).Doctor.Dept)

	w = a.do(http.MethodGet, "/api/departments/cardiology", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[departmentBody](t, w).Department.Doctors)

	// re-adding X to cardiology while it belongs to neurology conflicts
	w = a.do(http.MethodPatch, "/api/departments/cardiology", admin, map[string]any{"doctors": []string{y.Doctor.ID, x.Doctor.ID}})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "doctor already assigned elsewhere")
	assert.Contains(t, w.Body.String(), x.Doctor.ID)

	w = a.do(http.MethodPatch, "/api/departments/"+cardio.Department.ID, admin, map[string]any{"doctors": []string{y.Doctor.ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{y.Doctor.ID}, decode[departmentBody](t, w).Department.Doctors)

	// explicit null unassigns
	w = a.do(http.MethodPatch, "/api/doctors/dr-x", admin, `{"dept": null}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[doctorBody](t, w).Doctor.Dept)

	w = a.do(http.MethodPatch, "/api/departments/cardiology", admin, map[string]any{"doctors": []string{primitive.NewObjectID().Hex()}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/api/departments/cardiology", admin, nil).Code)
	w = a.do(http.MethodGet, "/api/doctors/dr-y", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[doctorBody](t, w).Doctor.Dept)
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/auth/register", "", map[string]any{
		"fullName": "Alice", "email": "alice@mail.test", "password": "password1", "phone": "+15550100",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")

	w = a.do(http.MethodPost, "/auth/register", "", map[string]any{"fullName": "Alice", "email": "not-an-email", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/auth/login", "", map[string]any{"email": "alice@mail.test", "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[struct {
		Token string `json:"token"`
	}](t, w)
	require.NotEmpty(t, login.Token)

	w = a.do(http.MethodPut, "/api/me", login.Token, map[string]any{"fullName": "Alice Liddell"})
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alice Liddell")

	w = a.do(http.MethodPost, "/auth/login", "", map[string]any{"email": "alice@mail.test", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
