package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"petvet/internal/model"
	"petvet/internal/repository"
)

// CatalogService manages the clinic's services
type CatalogService interface {
	CreateService(ctx context.Context, req model.CreateServiceRequest) (*model.Service, error)
	ListServices(ctx context.Context) ([]model.Service, error)
	SearchServices(ctx context.Context, term string) ([]model.Service, error)
	GetService(ctx context.Context, id string) (*model.Service, error)
	UpdateService(ctx context.Context, id string, patch model.ServicePatch) (*model.Service, error)
	DeleteService(ctx context.Context, id string) (*model.Service, error)
}

type catalogService struct {
	repo repository.ServiceRepository
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(repo repository.ServiceRepository) CatalogService {
	return &catalogService{repo: repo}
}

func (s *catalogService) CreateService(ctx context.Context, req model.CreateServiceRequest) (*model.Service, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if req.Price == nil {
		return nil, fmt.Errorf("%w: price is required", ErrInvalidInput)
	}
	if !req.Price.Positive() {
		return nil, fmt.Errorf("%w: price must be greater than zero", ErrInvalidInput)
	}

	now := time.Now().UTC()
	service := &model.Service{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       *req.Price,
		Active:      true,
		CreatedAt:   &now,
	}
	if err := s.repo.Create(ctx, service); err != nil {
		return nil, fmt.Errorf("failed to create service in repo: %w", err)
	}
	return service, nil
}

// ListServices returns the active services
func (s *catalogService) ListServices(ctx context.Context) ([]model.Service, error) {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list services from repo: %w", err)
	}
	active := make([]model.Service, 0, len(all))
	for _, svc := range all {
		if svc.Active {
			active = append(active, svc)
		}
	}
	return active, nil
}

// SearchServices matches term case-insensitively against the name and description
// of active services.
func (s *catalogService) SearchServices(ctx context.Context, term string) ([]model.Service, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", ErrInvalidInput)
	}
	active, err := s.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]model.Service, 0, len(active))
	for _, svc := range active {
		if strings.Contains(strings.ToLower(svc.Name), term) || strings.Contains(strings.ToLower(svc.Description), term) {
			matches = append(matches, svc)
		}
	}
	return matches, nil
}

// GetService returns an active service
func (s *catalogService) GetService(ctx context.Context, id string) (*model.Service, error) {
	svc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find service by ID: %w", err)
	}
	if svc == nil || !svc.Active {
		return nil, ErrServiceNotFound
	}
	return svc, nil
}

func (s *catalogService) UpdateService(ctx context.Context, id string, patch model.ServicePatch) (*model.Service, error) {
	patch.DeletedAt = nil
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		patch.Name = &name
	}
	if patch.Price != nil && !patch.Price.Positive() {
		return nil, fmt.Errorf("%w: price must be greater than zero", ErrInvalidInput)
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update service in repo: %w", err)
	}
	if updated == nil {
		return nil, ErrServiceNotFound
	}
	return updated, nil
}

// DeleteService deactivates a service. Deleting an inactive service returns it unchanged.
func (s *catalogService) DeleteService(ctx context.Context, id string) (*model.Service, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find service for deletion: %w", err)
	}
	if existing == nil {
		return nil, ErrServiceNotFound
	}
	if !existing.Active {
		return existing, nil
	}

	inactive := false
	now := time.Now().UTC()
	deleted, err := s.repo.Update(ctx, id, model.ServicePatch{Active: &inactive, DeletedAt: &now})
	if err != nil {
		return nil, fmt.Errorf("failed to delete service in repo: %w", err)
	}
	if deleted == nil {
		return nil, ErrServiceNotFound
	}
	return deleted, nil
}
