package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/scheduling"
)

// Memory is an in-process Store with the same uniqueness rules as the Mongo
// indexes. Every test gets its own isolated instance.
type Memory struct {
	mu           sync.Mutex
	accounts     map[primitive.ObjectID]*models.Doctor
	departments  map[primitive.ObjectID]*models.Department
	appointments map[primitive.ObjectID]*models.Appointment
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[primitive.ObjectID]*models.Doctor),
		departments:  make(map[primitive.ObjectID]*models.Department),
		appointments: make(map[primitive.ObjectID]*models.Appointment),
	}
}

func copyDoctor(d *models.Doctor) *models.Doctor {
	c := *d
	if d.Dept != nil {
		dept := *d.Dept
		c.Dept = &dept
	}
	c.Availability = append([]scheduling.AvailabilityWindow(nil), d.Availability...)
	return &c
}

func copyDepartment(d *models.Department) *models.Department {
	c := *d
	c.Doctors = append([]primitive.ObjectID{}, d.Doctors...)
	return &c
}

func copyAppointment(a *models.Appointment) *models.Appointment {
	c := *a
	if a.Prescription != nil {
		p := *a.Prescription
		p.Medications = append([]models.Medication(nil), a.Prescription.Medications...)
		c.Prescription = &p
	}
	return &c
}

func (m *Memory) emailTaken(email string) bool {
	for _, a := range m.accounts {
		if a.Email == email {
			return true
		}
	}
	return false
}

// Users

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(u.Email) {
		return ErrDuplicateKey
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.accounts[u.ID] = &models.Doctor{
		ID: u.ID, FullName: u.FullName, Email: u.Email, Password: u.Password,
		Role: u.Role, Phone: u.Phone, CreatedAt: u.CreatedAt,
	}
	return nil
}

func toUser(d *models.Doctor) *models.User {
	return &models.User{
		ID: d.ID, FullName: d.FullName, Email: d.Email, Password: d.Password,
		Role: d.Role, Phone: d.Phone, CreatedAt: d.CreatedAt,
	}
}

func (m *Memory) FindUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return toUser(a), nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return toUser(a), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateUserName(_ context.Context, id primitive.ObjectID, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.FullName = fullName
	return nil
}

// Doctors

func (m *Memory) doctor(id primitive.ObjectID) (*models.Doctor, bool) {
	a, ok := m.accounts[id]
	if !ok || a.Role != models.RoleDoctor {
		return nil, false
	}
	return a, true
}

func (m *Memory) CreateDoctor(_ context.Context, d *models.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(d.Email) {
		return ErrDuplicateKey
	}
	for _, a := range m.accounts {
		if a.Slug != "" && a.Slug == d.Slug {
			return ErrDuplicateKey
		}
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	m.accounts[d.ID] = copyDoctor(d)
	return nil
}

func (m *Memory) FindDoctor(_ context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctor(id)
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoctor(d), nil
}

func (m *Memory) FindDoctorBySlug(_ context.Context, slug string) (*models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Role == models.RoleDoctor && a.Slug == slug {
			return copyDoctor(a), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindDoctors(_ context.Context, ids []primitive.ObjectID) ([]models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Doctor, 0, len(ids))
	seen := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if d, ok := m.doctor(id); ok {
			out = append(out, *copyDoctor(d))
		}
	}
	return out, nil
}

func (m *Memory) ListDoctors(_ context.Context) ([]models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Doctor, 0)
	for _, a := range m.accounts {
		if a.Role == models.RoleDoctor {
			out = append(out, *copyDoctor(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *Memory) DoctorSlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) UpdateDoctorProfile(_ context.Context, id primitive.ObjectID, p models.DoctorPatch) (*models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctor(id)
	if !ok {
		return nil, ErrNotFound
	}
	if p.FullName != nil {
		d.FullName = *p.FullName
	}
	if p.Phone != nil {
		d.Phone = *p.Phone
	}
	if p.Specialty != nil {
		d.Specialty = *p.Specialty
	}
	if p.SetAvailability {
		d.Availability = append([]scheduling.AvailabilityWindow(nil), p.Availability...)
	}
	d.UpdatedAt = time.Now().UTC()
	return copyDoctor(d), nil
}

func (m *Memory) SetDoctorDept(_ context.Context, id primitive.ObjectID, dept *primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctor(id)
	if !ok {
		return ErrNotFound
	}
	if dept == nil {
		d.Dept = nil
	} else {
		v := *dept
		d.Dept = &v
	}
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) AssignDoctorDept(_ context.Context, id, dept primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctor(id)
	if !ok || (d.Dept != nil && *d.Dept != dept) {
		return false, nil
	}
	v := dept
	d.Dept = &v
	d.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *Memory) ClearDoctorDept(_ context.Context, id, dept primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctor(id)
	if !ok || !d.InDepartment(dept) {
		return false, nil
	}
	d.Dept = nil
	d.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *Memory) ClearDeptFromDoctors(_ context.Context, dept primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, a := range m.accounts {
		if a.Role == models.RoleDoctor && a.InDepartment(dept) {
			a.Dept = nil
			a.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeleteDoctor(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctor(id); !ok {
		return ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

// Departments

func (m *Memory) CreateDepartment(_ context.Context, d *models.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.departments {
		if existing.Slug == d.Slug {
			return ErrDuplicateKey
		}
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if d.Doctors == nil {
		d.Doctors = []primitive.ObjectID{}
	}
	m.departments[d.ID] = copyDepartment(d)
	return nil
}

func (m *Memory) FindDepartment(_ context.Context, id primitive.ObjectID) (*models.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.departments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDepartment(d), nil
}

func (m *Memory) FindDepartmentBySlug(_ context.Context, slug string) (*models.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.departments {
		if d.Slug == slug {
			return copyDepartment(d), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListDepartments(_ context.Context) ([]models.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Department, 0, len(m.departments))
	for _, d := range m.departments {
		out = append(out, *copyDepartment(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DepartmentSlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.departments {
		if d.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) UpdateDepartmentProfile(_ context.Context, id primitive.ObjectID, p models.DepartmentPatch) (*models.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.departments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Photo != nil {
		d.Photo = *p.Photo
	}
	d.UpdatedAt = time.Now().UTC()
	return copyDepartment(d), nil
}

func (m *Memory) SetDepartmentDoctors(_ context.Context, id primitive.ObjectID, doctors []primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.departments[id]
	if !ok {
		return ErrNotFound
	}
	d.Doctors = append([]primitive.ObjectID{}, doctors...)
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) AddDepartmentDoctor(_ context.Context, id, doctor primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.departments[id]
	if !ok {
		return ErrNotFound
	}
	if !d.HasDoctor(doctor) {
		d.Doctors = append(d.Doctors, doctor)
	}
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) PullDepartmentDoctor(_ context.Context, id, doctor primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.departments[id]
	if !ok {
		return ErrNotFound
	}
	kept := d.Doctors[:0]
	for _, doc := range d.Doctors {
		if doc != doctor {
			kept = append(kept, doc)
		}
	}
	d.Doctors = kept
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) DeleteDepartment(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.departments[id]; !ok {
		return ErrNotFound
	}
	delete(m.departments, id)
	return nil
}

// Appointments

func (m *Memory) InsertAppointment(_ context.Context, a *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Active {
		for _, existing := range m.appointments {
			if existing.Active && existing.DoctorID == a.DoctorID && existing.DateISO == a.DateISO && existing.Slot == a.Slot {
				return ErrDuplicateKey
			}
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	m.appointments[a.ID] = copyAppointment(a)
	return nil
}

func (m *Memory) FindAppointment(_ context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAppointment(a), nil
}

func (m *Memory) FindActiveAppointment(_ context.Context, doctor primitive.ObjectID, date scheduling.CalendarDate, slot scheduling.TimeOfDay) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.Active && a.DoctorID == doctor && a.DateISO == date && a.Slot == slot {
			return copyAppointment(a), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) BookedSlots(_ context.Context, doctor primitive.ObjectID, date scheduling.CalendarDate) ([]scheduling.TimeOfDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scheduling.TimeOfDay, 0)
	for _, a := range m.appointments {
		if a.Active && a.DoctorID == doctor && a.DateISO == date {
			out = append(out, a.Slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *Memory) ListAppointments(_ context.Context, f AppointmentFilter) ([]models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Appointment, 0)
	for _, a := range m.appointments {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Date != "" && a.DateISO != f.Date {
			continue
		}
		out = append(out, *copyAppointment(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) UpdateAppointmentStatus(_ context.Context, id primitive.ObjectID, from, to models.AppointmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return ErrNotFound
	}
	a.Status = to
	a.Active = to != models.StatusCancelled
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) SetPrescription(_ context.Context, id primitive.ObjectID, p *models.Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrNotFound
	}
	cp := *p
	cp.Medications = append([]models.Medication(nil), p.Medications...)
	a.Prescription = &cp
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) DeleteAppointment(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[id]; !ok {
		return ErrNotFound
	}
	delete(m.appointments, id)
	return nil
}
