package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/store"
)

const msgAssignedElsewhere = "doctor already assigned elsewhere"

type AssignmentStore interface {
	store.Doctors
	store.Departments
}

// AssignmentService keeps Department.Doctors and Doctor.Dept in agreement.
//
// There are no multi-document transactions. Every step is a set operation or
// a conditional update, and the steps are ordered so that running the same
// sync again after a partial failure converges on the same end state.
type AssignmentService struct {
	store   AssignmentStore
	metrics *metrics.SchedulingMetrics
	log     *logrus.Logger
}

func NewAssignmentService(st AssignmentStore, m *metrics.SchedulingMetrics, log *logrus.Logger) *AssignmentService {
	return &AssignmentService{store: st, metrics: m, log: log}
}

func syncOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

type conflictingDoctor struct {
	DoctorID     string `json:"doctorId"`
	FullName     string `json:"fullName"`
	DepartmentID string `json:"departmentId"`
}

// SyncDepartmentDoctors makes desired the exact doctor set of the department
// and updates each affected doctor's dept reference to match.
func (s *AssignmentService) SyncDepartmentDoctors(ctx context.Context, departmentID primitive.ObjectID, desired []primitive.ObjectID) (*models.Department, error) {
	dep, err := s.syncDepartmentDoctors(ctx, departmentID, desired)
	s.metrics.ObserveSync("department", syncOutcome(err))
	return dep, err
}

func (s *AssignmentService) syncDepartmentDoctors(ctx context.Context, departmentID primitive.ObjectID, desired []primitive.ObjectID) (*models.Department, error) {
	desired = dedupe(desired)

	dep, err := s.store.FindDepartment(ctx, departmentID)
	if err != nil {
		return nil, storeFailure(s.log, err, "department")
	}
	found, err := s.store.FindDoctors(ctx, desired)
	if err != nil {
		return nil, storeFailure(s.log, err, "doctors")
	}
	byID := make(map[primitive.ObjectID]models.Doctor, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}
	var unknown []string
	for _, id := range desired {
		if _, ok := byID[id]; !ok {
			unknown = append(unknown, id.Hex())
		}
	}
	if len(unknown) > 0 {
		e := apperr.Validation("unknown doctor ids")
		e.Details = unknown
		return nil, e
	}

	wanted := make(map[primitive.ObjectID]bool, len(desired))
	for _, id := range desired {
		wanted[id] = true
	}

	// Doctors to write dept on: the new ones, plus listed ones whose
	// reference was lost by an earlier partial sync. A desired doctor that
	// points at another department is a conflict, checked before any write.
	var toAssign []primitive.ObjectID
	var conflicts []conflictingDoctor
	for _, id := range desired {
		d := byID[id]
		switch {
		case d.Dept == nil:
			toAssign = append(toAssign, id)
		case !d.InDepartment(departmentID):
			conflicts = append(conflicts, conflictingDoctor{id.Hex(), d.FullName, d.Dept.Hex()})
		}
	}
	if len(conflicts) > 0 {
		s.log.WithFields(logrus.Fields{"departmentId": departmentID.Hex(), "conflicts": len(conflicts)}).
			Warn("department sync rejected")
		return nil, apperr.Conflict(msgAssignedElsewhere, conflicts)
	}

	for _, id := range dep.Doctors {
		if wanted[id] {
			continue
		}
		if _, err := s.store.ClearDoctorDept(ctx, id, departmentID); err != nil {
			return nil, s.partial(err, departmentID, "clear")
		}
	}
	for _, id := range toAssign {
		ok, err := s.store.AssignDoctorDept(ctx, id, departmentID)
		if err != nil {
			return nil, s.partial(err, departmentID, "assign")
		}
		if !ok {
			s.log.WithFields(logrus.Fields{"departmentId": departmentID.Hex(), "doctorId": id.Hex()}).
				Warn("department sync interrupted: doctor was assigned concurrently")
			return nil, apperr.Conflict(msgAssignedElsewhere, []string{id.Hex()})
		}
	}
	if err := s.store.SetDepartmentDoctors(ctx, departmentID, desired); err != nil {
		return nil, s.partial(err, departmentID, "set doctors")
	}

	updated, err := s.store.FindDepartment(ctx, departmentID)
	if err != nil {
		return nil, storeFailure(s.log, err, "department")
	}
	s.log.WithFields(logrus.Fields{"departmentId": departmentID.Hex(), "doctors": len(desired)}).Info("department doctors synced")
	return updated, nil
}

func (s *AssignmentService) partial(err error, departmentID primitive.ObjectID, step string) error {
	s.log.WithError(err).WithFields(logrus.Fields{"departmentId": departmentID.Hex(), "step": step}).
		Error("department sync failed part way; re-run the same sync to converge")
	return apperr.Persistence("department sync incomplete", err)
}

// SyncDoctorDepartment moves a doctor to dept, or out of any department when
// dept is nil. The doctor's own reference is written last.
func (s *AssignmentService) SyncDoctorDepartment(ctx context.Context, doctorID primitive.ObjectID, dept *primitive.ObjectID) (*models.Doctor, error) {
	doc, err := s.syncDoctorDepartment(ctx, doctorID, dept)
	s.metrics.ObserveSync("doctor", syncOutcome(err))
	return doc, err
}

func (s *AssignmentService) syncDoctorDepartment(ctx context.Context, doctorID primitive.ObjectID, dept *primitive.ObjectID) (*models.Doctor, error) {
	doc, err := s.store.FindDoctor(ctx, doctorID)
	if err != nil {
		return nil, storeFailure(s.log, err, "doctor")
	}
	if dept != nil {
		if _, err := s.store.FindDepartment(ctx, *dept); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.Validation("unknown department id %s", dept.Hex())
			}
			return nil, storeFailure(s.log, err, "department")
		}
	}

	prev := doc.Dept
	if prev != nil && (dept == nil || *prev != *dept) {
		if err := s.store.PullDepartmentDoctor(ctx, *prev, doctorID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, storeFailure(s.log, err, "department")
		}
	}
	if dept != nil {
		if err := s.store.AddDepartmentDoctor(ctx, *dept, doctorID); err != nil {
			return nil, storeFailure(s.log, err, "department")
		}
	}
	if err := s.store.SetDoctorDept(ctx, doctorID, dept); err != nil {
		return nil, storeFailure(s.log, err, "doctor")
	}

	updated, err := s.store.FindDoctor(ctx, doctorID)
	if err != nil {
		return nil, storeFailure(s.log, err, "doctor")
	}
	s.log.WithFields(logrus.Fields{"doctorId": doctorID.Hex(), "from": hexOrNil(prev), "to": hexOrNil(dept)}).
		Info("doctor department synced")
	return updated, nil
}

// RemoveDepartment detaches every doctor still pointing at the department,
// listed or not, and deletes it.
func (s *AssignmentService) RemoveDepartment(ctx context.Context, departmentID primitive.ObjectID) error {
	if _, err := s.store.FindDepartment(ctx, departmentID); err != nil {
		return storeFailure(s.log, err, "department")
	}
	cleared, err := s.store.ClearDeptFromDoctors(ctx, departmentID)
	if err != nil {
		return storeFailure(s.log, err, "doctor")
	}
	if err := s.store.DeleteDepartment(ctx, departmentID); err != nil {
		return storeFailure(s.log, err, "department")
	}
	s.log.WithFields(logrus.Fields{"departmentId": departmentID.Hex(), "detached": cleared}).Info("department deleted")
	return nil
}

// RemoveDoctor pulls the doctor out of its department and deletes it.
func (s *AssignmentService) RemoveDoctor(ctx context.Context, doctorID primitive.ObjectID) error {
	doc, err := s.store.FindDoctor(ctx, doctorID)
	if err != nil {
		return storeFailure(s.log, err, "doctor")
	}
	if doc.Dept != nil {
		if err := s.store.PullDepartmentDoctor(ctx, *doc.Dept, doctorID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return storeFailure(s.log, err, "department")
		}
	}
	if err := s.store.DeleteDoctor(ctx, doctorID); err != nil {
		return storeFailure(s.log, err, "doctor")
	}
	s.log.WithField("doctorId", doctorID.Hex()).Info("doctor deleted")
	return nil
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func hexOrNil(id *primitive.ObjectID) any {
	if id == nil {
		return nil
	}
	return id.Hex()
}
