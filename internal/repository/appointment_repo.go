package repository

import (
	"context"
	"fmt"

	"petvet/internal/docstore"
	"petvet/internal/model"
)

// AppointmentRepository defines operations for appointment data
type AppointmentRepository interface {
	Create(ctx context.Context, appointment *model.Appointment) error
	FindByUser(ctx context.Context, userID string) ([]model.Appointment, error)
}

type appointmentRepository struct {
	coll docstore.Collection
}

// NewAppointmentRepository creates a new AppointmentRepository
func NewAppointmentRepository(store docstore.Store) AppointmentRepository {
	return &appointmentRepository{coll: store.Collection(AppointmentsCollection)}
}

// Create inserts a new appointment and sets its ID
func (r *appointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	doc, err := encode(a)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	stored, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	a.ID = stored.ID()
	return nil
}

// FindByUser scans the collection for appointments booked by userID. Order is unspecified.
func (r *appointmentRepository) FindByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	docs, err := r.coll.Find(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	appointments := []model.Appointment{}
	for _, doc := range docs {
		if owner, _ := doc["userId"].(string); owner != userID {
			continue
		}
		var a model.Appointment
		if err := docstore.Decode(doc, &a); err != nil {
			return nil, fmt.Errorf("failed to decode appointment %s: %w", doc.ID(), err)
		}
		appointments = append(appointments, a)
	}
	return appointments, nil
}
