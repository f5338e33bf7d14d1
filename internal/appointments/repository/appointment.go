package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appointmentserrors "medislot/internal/appointments/errors"
	"medislot/pkg/config"
	"medislot/pkg/model"
)

const (
	CollectionName = "Appointments"

	// SlotIndexName is the unique partial index that keeps one live
	// appointment per (doctor_id, date, time_slot).
	SlotIndexName = "uniq_live_doctor_date_slot"
)

type AppointmentRepository interface {
	TryCreate(ctx context.Context, appt *model.Appointment) (*model.Appointment, error)
	CompareAndSwapStatus(ctx context.Context, id string, expected, next model.Status) (*model.Appointment, error)
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Appointment, error)
	CountByDoctor(ctx context.Context, doctorID string) (int64, error)
	ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Appointment, error)
	CountByPatient(ctx context.Context, patientID string) (int64, error)
	ListAll(ctx context.Context, limit int, offset int64) ([]*model.Appointment, error)
	Count(ctx context.Context) (int64, error)
}

type mongoAppointmentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAppointmentRepository(cfg *config.Config) AppointmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAppointmentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

func parseID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", appointmentserrors.ErrInvalidID, id)
	}
	return objectID, nil
}

// TryCreate relies on the unique partial index: the insert itself is the
// conflict check, so two concurrent bookings of the same triple cannot both land.
func (r *mongoAppointmentRepository) TryCreate(ctx context.Context, appt *model.Appointment) (*model.Appointment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := *appt
	doc.ID = ""
	doc.Active = doc.Status.IsLive()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: doctor %s on %s at %s", appointmentserrors.ErrSlotTaken, doc.DoctorID, doc.Date, doc.TimeSlot)
		}
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid.Hex()
	}
	return &doc, nil
}

func (r *mongoAppointmentRepository) CompareAndSwapStatus(ctx context.Context, id string, expected, next model.Status) (*model.Appointment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": objectID, "status": expected}
	update := bson.M{"$set": bson.M{
		"status":     next,
		"active":     next.IsLive(),
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Appointment
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update appointment status: %w", err)
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to check appointment existence: %w", err)
	}
	if count == 0 {
		return nil, appointmentserrors.ErrNotFound
	}
	return nil, appointmentserrors.ErrStatusChanged
}

func (r *mongoAppointmentRepository) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var appt model.Appointment
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&appt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appointmentserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return &appt, nil
}

func (r *mongoAppointmentRepository) find(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Appointment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{
			{Key: "date", Value: 1},
			{Key: "slot_index", Value: 1},
			{Key: "created_at", Value: 1},
			{Key: "_id", Value: 1},
		}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	appointments := make([]*model.Appointment, 0)
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appointments, nil
}

func (r *mongoAppointmentRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

func (r *mongoAppointmentRepository) ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Appointment, error) {
	return r.find(ctx, bson.M{"doctor_id": doctorID}, limit, offset)
}

func (r *mongoAppointmentRepository) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	return r.count(ctx, bson.M{"doctor_id": doctorID})
}

func (r *mongoAppointmentRepository) ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Appointment, error) {
	return r.find(ctx, bson.M{"patient_id": patientID}, limit, offset)
}

func (r *mongoAppointmentRepository) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	return r.count(ctx, bson.M{"patient_id": patientID})
}

func (r *mongoAppointmentRepository) ListAll(ctx context.Context, limit int, offset int64) ([]*model.Appointment, error) {
	return r.find(ctx, bson.M{}, limit, offset)
}

func (r *mongoAppointmentRepository) Count(ctx context.Context) (int64, error) {
	return r.count(ctx, bson.M{})
}
