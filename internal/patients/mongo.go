package patients

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wolfman30/clinic-intake/internal/appointments"
)

// MongoRepository stores patients and appointments as documents.
type MongoRepository struct {
	patients     *mongo.Collection
	appointments *mongo.Collection
	now          func() time.Time
}

type patientDoc struct {
	Patient     `bson:",inline"`
	PhoneDigits string `bson:"phone_digits"`
}

type appointmentDoc struct {
	appointments.Appointment `bson:",inline"`
	PhoneDigits              string `bson:"phone_digits"`
}

// ConnectMongo opens a client and verifies it with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("patients: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("patients: mongo ping: %w", err)
	}
	return client, nil
}

// NewMongoRepository uses the "patients" and "appointments" collections
// of db and makes sure their indexes exist.
func NewMongoRepository(ctx context.Context, db *mongo.Database) (*MongoRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("patients: mongo database required")
	}
	r := &MongoRepository{
		patients:     db.Collection("patients"),
		appointments: db.Collection("appointments"),
		now:          time.Now,
	}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoRepository) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := r.patients.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "phone_digits", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "name", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("patients: create patient indexes: %w", err)
	}
	if _, err := r.appointments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "phone_digits", Value: 1}, {Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("patients: create appointment indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	digits := appointments.NormalizePhone(p.Phone)
	if digits == "" {
		return nil, fmt.Errorf("patients: phone required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"id":           p.ID,
			"phone":        p.Phone,
			"phone_digits": digits,
			"created_at":   p.CreatedAt,
		},
	}
	if p.Name != "" {
		update["$set"] = bson.M{"name": p.Name}
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc patientDoc
	if err := r.patients.FindOneAndUpdate(ctx, bson.M{"phone_digits": digits}, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("patients: upsert patient: %w", err)
	}
	out := doc.Patient
	return &out, nil
}

func (r *MongoRepository) FindPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	var doc patientDoc
	err := r.patients.FindOne(ctx, bson.M{"phone_digits": appointments.NormalizePhone(phone)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: find by phone: %w", err)
	}
	out := doc.Patient
	return &out, nil
}

func (r *MongoRepository) CreateAppointment(ctx context.Context, appt appointments.Appointment) error {
	digits := appointments.NormalizePhone(appt.Phone)
	if digits == "" {
		return fmt.Errorf("patients: appointment phone required")
	}
	doc := appointmentDoc{Appointment: appt, PhoneDigits: digits}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.appointments.ReplaceOne(ctx, bson.M{"id": appt.ID}, doc, opts); err != nil {
		return fmt.Errorf("patients: upsert appointment: %w", err)
	}
	if _, err := r.patients.UpdateOne(ctx,
		bson.M{"phone_digits": digits, "$or": bson.A{
			bson.M{"last_visit": bson.M{"$exists": false}},
			bson.M{"last_visit": bson.M{"$lt": appt.CreatedAt}},
		}},
		bson.M{"$set": bson.M{"last_visit": appt.CreatedAt}},
	); err != nil {
		return fmt.Errorf("patients: touch last visit: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetPatientAppointments(ctx context.Context, phone string) ([]appointments.Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findAppointments(ctx, bson.M{"phone_digits": appointments.NormalizePhone(phone)}, opts)
}

func (r *MongoRepository) ListAppointments(ctx context.Context) ([]appointments.Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(500)
	return r.findAppointments(ctx, bson.M{}, opts)
}

func (r *MongoRepository) findAppointments(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]appointments.Appointment, error) {
	cursor, err := r.appointments.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("patients: find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var out []appointments.Appointment
	for cursor.Next(ctx) {
		var doc appointmentDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("patients: decode appointment: %w", err)
		}
		doc.Appointment.Source = "mongo"
		out = append(out, doc.Appointment)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("patients: appointment cursor: %w", err)
	}
	return out, nil
}

func (r *MongoRepository) Search(ctx context.Context, query string) ([]Patient, error) {
	filter := bson.M{}
	if query != "" {
		or := bson.A{bson.M{"name": bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}}}
		if digits := appointments.NormalizePhone(query); digits != "" {
			or = append(or, bson.M{"phone_digits": bson.M{"$regex": regexp.QuoteMeta(digits)}})
		}
		filter["$or"] = or
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "phone", Value: 1}}).SetLimit(50)
	cursor, err := r.patients.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("patients: search: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Patient
	for cursor.Next(ctx) {
		var doc patientDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("patients: decode patient: %w", err)
		}
		out = append(out, doc.Patient)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("patients: patient cursor: %w", err)
	}
	return out, nil
}
