package repository

import (
	"context"
	"fmt"
	"time"

	"petvet/internal/docstore"
	"petvet/internal/model"
)

// ServiceRepository defines operations for service data
type ServiceRepository interface {
	Create(ctx context.Context, service *model.Service) error
	FindAll(ctx context.Context) ([]model.Service, error)
	FindByID(ctx context.Context, id string) (*model.Service, error)
	Update(ctx context.Context, id string, patch model.ServicePatch) (*model.Service, error)
}

type serviceRepository struct {
	coll docstore.Collection
}

// NewServiceRepository creates a new ServiceRepository
func NewServiceRepository(store docstore.Store) ServiceRepository {
	return &serviceRepository{coll: store.Collection(ServicesCollection)}
}

// Create inserts a new service and sets its ID
func (r *serviceRepository) Create(ctx context.Context, s *model.Service) error {
	doc, err := encode(s)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	stored, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	s.ID = stored.ID()
	return nil
}

// FindAll returns every service, active or not
func (r *serviceRepository) FindAll(ctx context.Context) ([]model.Service, error) {
	docs, err := r.coll.Find(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	services := make([]model.Service, 0, len(docs))
	for _, doc := range docs {
		s, err := decodeService(doc)
		if err != nil {
			return nil, err
		}
		services = append(services, *s)
	}
	return services, nil
}

// FindByID retrieves a service by its ID
func (r *serviceRepository) FindByID(ctx context.Context, id string) (*model.Service, error) {
	doc, err := r.coll.FindOne(ctx, docstore.IDField, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find service by ID: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeService(doc)
}

// Update merges the non-nil fields of patch into the service
func (r *serviceRepository) Update(ctx context.Context, id string, patch model.ServicePatch) (*model.Service, error) {
	doc, err := r.coll.UpdateOne(ctx, docstore.IDField, id, servicePatchDocument(patch))
	if err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeService(doc)
}

func decodeService(doc docstore.Document) (*model.Service, error) {
	s := &model.Service{Active: true} // records without the flag are active
	if err := docstore.Decode(doc, s); err != nil {
		return nil, fmt.Errorf("failed to decode service %s: %w", doc.ID(), err)
	}
	return s, nil
}

func servicePatchDocument(p model.ServicePatch) docstore.Document {
	doc := docstore.Document{}
	if p.Name != nil {
		doc["name"] = *p.Name
	}
	if p.Description != nil {
		doc["description"] = *p.Description
	}
	if p.Price != nil {
		doc["price"] = float64(*p.Price)
	}
	if p.Active != nil {
		doc["active"] = *p.Active
	}
	if p.DeletedAt != nil {
		doc["deletedAt"] = p.DeletedAt.UTC().Format(time.RFC3339Nano)
	}
	return doc
}
