package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/scheduling"
	"github.com/harentsoaR/clinic-api/internal/store"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

// DirectoryService manages doctor and department records. Every change to
// the doctor/department link goes through the AssignmentService.
type DirectoryService struct {
	store  AssignmentStore
	assign *AssignmentService
	log    *logrus.Logger
	now    func() time.Time
}

func NewDirectoryService(st AssignmentStore, assign *AssignmentService, log *logrus.Logger) *DirectoryService {
	return &DirectoryService{
		store:  st,
		assign: assign,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// resolveDoctor accepts either a hex id or a slug.
func (s *DirectoryService) resolveDoctor(ctx context.Context, ref string) (*models.Doctor, error) {
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		d, err := s.store.FindDoctor(ctx, id)
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return d, wrapFind(s.log, err, "doctor")
		}
	}
	d, err := s.store.FindDoctorBySlug(ctx, strings.ToLower(ref))
	return d, wrapFind(s.log, err, "doctor")
}

func (s *DirectoryService) resolveDepartment(ctx context.Context, ref string) (*models.Department, error) {
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		d, err := s.store.FindDepartment(ctx, id)
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return d, wrapFind(s.log, err, "department")
		}
	}
	d, err := s.store.FindDepartmentBySlug(ctx, strings.ToLower(ref))
	return d, wrapFind(s.log, err, "department")
}

func wrapFind(log *logrus.Logger, err error, what string) error {
	if err == nil {
		return nil
	}
	return storeFailure(log, err, what)
}

func (s *DirectoryService) GetDoctor(ctx context.Context, ref string) (*models.Doctor, error) {
	return s.resolveDoctor(ctx, ref)
}

func (s *DirectoryService) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	list, err := s.store.ListDoctors(ctx)
	if err != nil {
		return nil, storeFailure(s.log, err, "doctors")
	}
	return list, nil
}

func (s *DirectoryService) GetDepartment(ctx context.Context, ref string) (*models.Department, error) {
	return s.resolveDepartment(ctx, ref)
}

func (s *DirectoryService) ListDepartments(ctx context.Context) ([]models.Department, error) {
	list, err := s.store.ListDepartments(ctx)
	if err != nil {
		return nil, storeFailure(s.log, err, "departments")
	}
	return list, nil
}

type NewDoctor struct {
	FullName     string
	Email        string
	Password     string
	Phone        string
	Specialty    string
	Availability []scheduling.AvailabilityWindow
	// Dept is a hex department id, or empty for none.
	Dept string
}

// CreateDoctor stores a doctor account and, when Dept is given, links it
// through SyncDoctorDepartment. A failed link removes the new record again.
func (s *DirectoryService) CreateDoctor(ctx context.Context, in NewDoctor) (*models.Doctor, error) {
	var dept *primitive.ObjectID
	if in.Dept != "" {
		id, err := parseID(in.Dept, "department")
		if err != nil {
			return nil, err
		}
		dept = &id
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Persistence("failed to hash password", err)
	}
	now := s.now()
	doc := &models.Doctor{
		ID:           primitive.NewObjectID(),
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Password:     hash,
		Role:         models.RoleDoctor,
		Phone:        in.Phone,
		Specialty:    in.Specialty,
		Availability: in.Availability,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if doc.Availability == nil {
		doc.Availability = []scheduling.AvailabilityWindow{}
	}
	slug, err := s.insertDoctor(ctx, doc)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"doctorId": doc.ID.Hex(), "slug": slug}).Info("doctor created")

	if dept == nil {
		return doc, nil
	}
	linked, err := s.assign.SyncDoctorDepartment(ctx, doc.ID, dept)
	if err != nil {
		if perr := s.store.PullDepartmentDoctor(ctx, *dept, doc.ID); perr != nil && !errors.Is(perr, store.ErrNotFound) {
			s.log.WithError(perr).WithField("doctorId", doc.ID.Hex()).Error("rollback could not pull new doctor from department")
		}
		if derr := s.store.DeleteDoctor(ctx, doc.ID); derr != nil {
			s.log.WithError(derr).WithField("doctorId", doc.ID.Hex()).Error("rollback of new doctor failed")
		}
		return nil, err
	}
	return linked, nil
}

// insertDoctor allocates a slug and stores doc. Losing a slug race to a
// concurrent insert picks the next free slug; a duplicate with a free slug
// means the email is taken.
func (s *DirectoryService) insertDoctor(ctx context.Context, doc *models.Doctor) (string, error) {
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug, err := uniqueSlug(ctx, Slugify(doc.FullName), s.store.DoctorSlugExists)
		if err != nil {
			return "", storeOrApp(s.log, err, "doctor")
		}
		doc.Slug = slug
		err = s.store.CreateDoctor(ctx, doc)
		if err == nil {
			return slug, nil
		}
		if !errors.Is(err, store.ErrDuplicateKey) {
			return "", storeFailure(s.log, err, "doctor")
		}
		taken, serr := s.store.DoctorSlugExists(ctx, slug)
		if serr != nil {
			return "", storeFailure(s.log, serr, "doctor")
		}
		if !taken {
			return "", apperr.Conflict("an account with this email already exists", nil)
		}
		s.log.WithField("slug", slug).Debug("doctor slug taken concurrently, retrying")
	}
	return "", apperr.Conflict("could not allocate a unique slug", Slugify(doc.FullName))
}

type DoctorUpdate struct {
	FullName     *string
	Phone        *string
	Specialty    *string
	Availability []scheduling.AvailabilityWindow
	// SetAvailability and SetDept tell "not sent" apart from "cleared".
	SetAvailability bool
	Dept            *string
	SetDept         bool
}

func (u DoctorUpdate) hasProfile() bool {
	return u.FullName != nil || u.Phone != nil || u.Specialty != nil || u.SetAvailability
}

// UpdateDoctor patches profile fields and, when SetDept is true, moves the
// doctor with SyncDoctorDepartment.
func (s *DirectoryService) UpdateDoctor(ctx context.Context, ref string, u DoctorUpdate) (*models.Doctor, error) {
	if !u.hasProfile() && !u.SetDept {
		return nil, apperr.Validation("no update fields provided")
	}
	doc, err := s.resolveDoctor(ctx, ref)
	if err != nil {
		return nil, err
	}

	var dept *primitive.ObjectID
	if u.SetDept && u.Dept != nil && *u.Dept != "" {
		id, err := parseID(*u.Dept, "department")
		if err != nil {
			return nil, err
		}
		dept = &id
		if _, err := s.store.FindDepartment(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.Validation("unknown department id %s", id.Hex())
			}
			return nil, storeFailure(s.log, err, "department")
		}
	}

	if u.SetDept {
		if doc, err = s.assign.SyncDoctorDepartment(ctx, doc.ID, dept); err != nil {
			return nil, err
		}
	}
	if u.hasProfile() {
		patch := models.DoctorPatch{
			FullName:        u.FullName,
			Phone:           u.Phone,
			Specialty:       u.Specialty,
			Availability:    u.Availability,
			SetAvailability: u.SetAvailability,
		}
		if doc, err = s.store.UpdateDoctorProfile(ctx, doc.ID, patch); err != nil {
			return nil, storeFailure(s.log, err, "doctor")
		}
	}
	return doc, nil
}

func (s *DirectoryService) DeleteDoctor(ctx context.Context, ref string) error {
	doc, err := s.resolveDoctor(ctx, ref)
	if err != nil {
		return err
	}
	return s.assign.RemoveDoctor(ctx, doc.ID)
}

type NewDepartment struct {
	Name        string
	Description string
	Photo       string
	Doctors     []string
}

// CreateDepartment stores an empty department and then syncs the requested
// doctors onto it. If the sync is rejected the department is removed again.
func (s *DirectoryService) CreateDepartment(ctx context.Context, in NewDepartment) (*models.Department, error) {
	doctors, err := parseIDs(in.Doctors, "doctor")
	if err != nil {
		return nil, err
	}
	slug, err := uniqueSlug(ctx, Slugify(in.Name), s.store.DepartmentSlugExists)
	if err != nil {
		return nil, storeOrApp(s.log, err, "department")
	}

	now := s.now()
	dep := &models.Department{
		ID:          primitive.NewObjectID(),
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug,
		Description: in.Description,
		Photo:       in.Photo,
		Doctors:     []primitive.ObjectID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateDepartment(ctx, dep); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperr.Conflict("a department with this slug already exists", slug)
		}
		return nil, storeFailure(s.log, err, "department")
	}
	s.log.WithFields(logrus.Fields{"departmentId": dep.ID.Hex(), "slug": slug}).Info("department created")

	if len(doctors) == 0 {
		return dep, nil
	}
	synced, err := s.assign.SyncDepartmentDoctors(ctx, dep.ID, doctors)
	if err != nil {
		if rerr := s.assign.RemoveDepartment(ctx, dep.ID); rerr != nil {
			s.log.WithError(rerr).WithField("departmentId", dep.ID.Hex()).Error("rollback of new department failed")
		}
		return nil, err
	}
	return synced, nil
}

type DepartmentUpdate struct {
	Name        *string
	Description *string
	Photo       *string
	// Doctors replaces the doctor set when non-nil.
	Doctors *[]string
}

// UpdateDepartment patches profile fields and, when Doctors is sent, syncs
// the doctor set with SyncDepartmentDoctors. The slug is kept stable across
// renames so existing links keep working.
func (s *DirectoryService) UpdateDepartment(ctx context.Context, ref string, u DepartmentUpdate) (*models.Department, error) {
	hasProfile := u.Name != nil || u.Description != nil || u.Photo != nil
	if !hasProfile && u.Doctors == nil {
		return nil, apperr.Validation("no update fields provided")
	}
	dep, err := s.resolveDepartment(ctx, ref)
	if err != nil {
		return nil, err
	}

	var doctors []primitive.ObjectID
	if u.Doctors != nil {
		if doctors, err = parseIDs(*u.Doctors, "doctor"); err != nil {
			return nil, err
		}
	}

	// Sync first: a rejected doctor list must leave the profile untouched.
	if u.Doctors != nil {
		if dep, err = s.assign.SyncDepartmentDoctors(ctx, dep.ID, doctors); err != nil {
			return nil, err
		}
	}
	if hasProfile {
		patch := models.DepartmentPatch{Name: u.Name, Description: u.Description, Photo: u.Photo}
		if dep, err = s.store.UpdateDepartmentProfile(ctx, dep.ID, patch); err != nil {
			return nil, storeFailure(s.log, err, "department")
		}
	}
	return dep, nil
}

func (s *DirectoryService) DeleteDepartment(ctx context.Context, ref string) error {
	dep, err := s.resolveDepartment(ctx, ref)
	if err != nil {
		return err
	}
	return s.assign.RemoveDepartment(ctx, dep.ID)
}

// storeOrApp passes apperr values through and wraps anything else.
func storeOrApp(log *logrus.Logger, err error, what string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return storeFailure(log, err, what)
}
