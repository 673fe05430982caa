package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/scheduling"
)

const (
	usersCollection        = "users"
	departmentsCollection  = "departments"
	appointmentsCollection = "appointments"

	// ActiveSlotIndex is the partial unique index that makes double booking
	// impossible. Booking is only correct once it exists.
	ActiveSlotIndex = "uniq_active_doctor_date_slot"
)

// Mongo implements Store on a MongoDB database. Doctors are documents in the
// users collection with role "doctor".
type Mongo struct {
	users        *mongo.Collection
	departments  *mongo.Collection
	appointments *mongo.Collection
}

var _ Store = (*Mongo)(nil)

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		users:        db.Collection(usersCollection),
		departments:  db.Collection(departmentsCollection),
		appointments: db.Collection(appointmentsCollection),
	}
}

// EnsureIndexes provisions the indexes the store relies on for correctness.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.appointments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "dateISO", Value: 1}, {Key: "slot", Value: 1}},
			Options: options.Index().
				SetName(ActiveSlotIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "startTime", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("appointments indexes: %w", err)
	}

	_, err = s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"slug": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "dept", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	_, err = s.departments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("departments indexes: %w", err)
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	default:
		return err
	}
}

func now() time.Time { return time.Now().UTC() }

// Users

func (s *Mongo) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := s.users.InsertOne(ctx, u)
	return translate(err)
}

func (s *Mongo) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Mongo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Mongo) UpdateUserName(ctx context.Context, id primitive.ObjectID, fullName string) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"fullName": fullName}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Doctors

func doctorFilter(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "role": models.RoleDoctor}
}

func (s *Mongo) CreateDoctor(ctx context.Context, d *models.Doctor) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if d.Availability == nil {
		d.Availability = []scheduling.AvailabilityWindow{}
	}
	_, err := s.users.InsertOne(ctx, d)
	return translate(err)
}

func (s *Mongo) findDoctor(ctx context.Context, filter bson.M) (*models.Doctor, error) {
	var d models.Doctor
	if err := s.users.FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *Mongo) FindDoctor(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	return s.findDoctor(ctx, doctorFilter(id))
}

func (s *Mongo) FindDoctorBySlug(ctx context.Context, slug string) (*models.Doctor, error) {
	return s.findDoctor(ctx, bson.M{"slug": slug, "role": models.RoleDoctor})
}

func (s *Mongo) findDoctors(ctx context.Context, filter bson.M) ([]models.Doctor, error) {
	cursor, err := s.users.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "fullName", Value: 1}}))
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	doctors := make([]models.Doctor, 0)
	if err := cursor.All(ctx, &doctors); err != nil {
		return nil, translate(err)
	}
	return doctors, nil
}

func (s *Mongo) FindDoctors(ctx context.Context, ids []primitive.ObjectID) ([]models.Doctor, error) {
	if len(ids) == 0 {
		return []models.Doctor{}, nil
	}
	return s.findDoctors(ctx, bson.M{"_id": bson.M{"$in": ids}, "role": models.RoleDoctor})
}

func (s *Mongo) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	return s.findDoctors(ctx, bson.M{"role": models.RoleDoctor})
}

func (s *Mongo) DoctorSlugExists(ctx context.Context, slug string) (bool, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	return n > 0, translate(err)
}

func (s *Mongo) UpdateDoctorProfile(ctx context.Context, id primitive.ObjectID, p models.DoctorPatch) (*models.Doctor, error) {
	set := bson.M{"updatedAt": now()}
	if p.FullName != nil {
		set["fullName"] = *p.FullName
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Specialty != nil {
		set["specialty"] = *p.Specialty
	}
	if p.SetAvailability {
		windows := p.Availability
		if windows == nil {
			windows = []scheduling.AvailabilityWindow{}
		}
		set["availability"] = windows
	}

	var d models.Doctor
	err := s.users.FindOneAndUpdate(ctx, doctorFilter(id), bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&d)
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *Mongo) SetDoctorDept(ctx context.Context, id primitive.ObjectID, dept *primitive.ObjectID) error {
	res, err := s.users.UpdateOne(ctx, doctorFilter(id), bson.M{"$set": bson.M{"dept": dept, "updatedAt": now()}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) AssignDoctorDept(ctx context.Context, id, dept primitive.ObjectID) (bool, error) {
	filter := doctorFilter(id)
	filter["$or"] = bson.A{bson.M{"dept": nil}, bson.M{"dept": dept}}
	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"dept": dept, "updatedAt": now()}})
	if err != nil {
		return false, translate(err)
	}
	return res.MatchedCount > 0, nil
}

func (s *Mongo) ClearDoctorDept(ctx context.Context, id, dept primitive.ObjectID) (bool, error) {
	filter := doctorFilter(id)
	filter["dept"] = dept
	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"dept": nil, "updatedAt": now()}})
	if err != nil {
		return false, translate(err)
	}
	return res.MatchedCount > 0, nil
}

func (s *Mongo) ClearDeptFromDoctors(ctx context.Context, dept primitive.ObjectID) (int64, error) {
	filter := bson.M{"role": models.RoleDoctor, "dept": dept}
	res, err := s.users.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"dept": nil, "updatedAt": now()}})
	if err != nil {
		return 0, translate(err)
	}
	return res.ModifiedCount, nil
}

func (s *Mongo) DeleteDoctor(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.users.DeleteOne(ctx, doctorFilter(id))
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Departments

func (s *Mongo) CreateDepartment(ctx context.Context, d *models.Department) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if d.Doctors == nil {
		d.Doctors = []primitive.ObjectID{}
	}
	_, err := s.departments.InsertOne(ctx, d)
	return translate(err)
}

func (s *Mongo) findDepartment(ctx context.Context, filter bson.M) (*models.Department, error) {
	var d models.Department
	if err := s.departments.FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *Mongo) FindDepartment(ctx context.Context, id primitive.ObjectID) (*models.Department, error) {
	return s.findDepartment(ctx, bson.M{"_id": id})
}

func (s *Mongo) FindDepartmentBySlug(ctx context.Context, slug string) (*models.Department, error) {
	return s.findDepartment(ctx, bson.M{"slug": slug})
}

func (s *Mongo) ListDepartments(ctx context.Context) ([]models.Department, error) {
	cursor, err := s.departments.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	departments := make([]models.Department, 0)
	if err := cursor.All(ctx, &departments); err != nil {
		return nil, translate(err)
	}
	return departments, nil
}

func (s *Mongo) DepartmentSlugExists(ctx context.Context, slug string) (bool, error) {
	n, err := s.departments.CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	return n > 0, translate(err)
}

func (s *Mongo) UpdateDepartmentProfile(ctx context.Context, id primitive.ObjectID, p models.DepartmentPatch) (*models.Department, error) {
	set := bson.M{"updatedAt": now()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Photo != nil {
		set["photo"] = *p.Photo
	}

	var d models.Department
	err := s.departments.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&d)
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *Mongo) updateDepartment(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := s.departments.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) SetDepartmentDoctors(ctx context.Context, id primitive.ObjectID, doctors []primitive.ObjectID) error {
	if doctors == nil {
		doctors = []primitive.ObjectID{}
	}
	return s.updateDepartment(ctx, id, bson.M{"$set": bson.M{"doctors": doctors, "updatedAt": now()}})
}

func (s *Mongo) AddDepartmentDoctor(ctx context.Context, id, doctor primitive.ObjectID) error {
	return s.updateDepartment(ctx, id, bson.M{
		"$addToSet": bson.M{"doctors": doctor},
		"$set":      bson.M{"updatedAt": now()},
	})
}

func (s *Mongo) PullDepartmentDoctor(ctx context.Context, id, doctor primitive.ObjectID) error {
	return s.updateDepartment(ctx, id, bson.M{
		"$pull": bson.M{"doctors": doctor},
		"$set":  bson.M{"updatedAt": now()},
	})
}

func (s *Mongo) DeleteDepartment(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.departments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Appointments

func (s *Mongo) InsertAppointment(ctx context.Context, a *models.Appointment) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := s.appointments.InsertOne(ctx, a)
	return translate(err)
}

func (s *Mongo) FindAppointment(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	var a models.Appointment
	if err := s.appointments.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *Mongo) FindActiveAppointment(ctx context.Context, doctor primitive.ObjectID, date scheduling.CalendarDate, slot scheduling.TimeOfDay) (*models.Appointment, error) {
	var a models.Appointment
	filter := bson.M{"doctorId": doctor, "dateISO": date, "slot": slot, "active": true}
	if err := s.appointments.FindOne(ctx, filter).Decode(&a); err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *Mongo) BookedSlots(ctx context.Context, doctor primitive.ObjectID, date scheduling.CalendarDate) ([]scheduling.TimeOfDay, error) {
	filter := bson.M{"doctorId": doctor, "dateISO": date, "active": true}
	opts := options.Find().
		SetProjection(bson.M{"slot": 1}).
		SetSort(bson.D{{Key: "slot", Value: 1}})
	cursor, err := s.appointments.Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Slot scheduling.TimeOfDay `bson:"slot"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, translate(err)
	}
	slots := make([]scheduling.TimeOfDay, len(rows))
	for i, r := range rows {
		slots[i] = r.Slot
	}
	return slots, nil
}

func (s *Mongo) ListAppointments(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error) {
	filter := bson.M{}
	if f.PatientID != nil {
		filter["patientId"] = *f.PatientID
	}
	if f.DoctorID != nil {
		filter["doctorId"] = *f.DoctorID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Date != "" {
		filter["dateISO"] = f.Date
	}

	cursor, err := s.appointments.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}}))
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	appointments := make([]models.Appointment, 0)
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, translate(err)
	}
	return appointments, nil
}

func (s *Mongo) UpdateAppointmentStatus(ctx context.Context, id primitive.ObjectID, from, to models.AppointmentStatus) error {
	update := bson.M{"$set": bson.M{
		"status":    to,
		"active":    to != models.StatusCancelled,
		"updatedAt": now(),
	}}
	res, err := s.appointments.UpdateOne(ctx, bson.M{"_id": id, "status": from}, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) SetPrescription(ctx context.Context, id primitive.ObjectID, p *models.Prescription) error {
	res, err := s.appointments.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"prescription": p, "updatedAt": now()}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) DeleteAppointment(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.appointments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
