package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"petvet/internal/model"
	"petvet/internal/repository"
)

// AppointmentService books services for authenticated users
type AppointmentService interface {
	CreateAppointment(ctx context.Context, userID string, req model.CreateAppointmentRequest) (*model.Appointment, error)
	ListUserAppointments(ctx context.Context, userID string) ([]model.Appointment, error)
}

type appointmentService struct {
	repo        repository.AppointmentRepository
	serviceRepo repository.ServiceRepository
}

// NewAppointmentService creates a new AppointmentService
func NewAppointmentService(repo repository.AppointmentRepository, serviceRepo repository.ServiceRepository) AppointmentService {
	return &appointmentService{repo: repo, serviceRepo: serviceRepo}
}

func (s *appointmentService) CreateAppointment(ctx context.Context, userID string, req model.CreateAppointmentRequest) (*model.Appointment, error) {
	required := []struct{ field, value string }{
		{"serviceId", req.ServiceID},
		{"petName", req.PetName},
		{"ownerName", req.OwnerName},
		{"date", req.Date},
		{"time", req.Time},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidInput, r.field)
		}
	}

	svc, err := s.serviceRepo.FindByID(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find service for appointment: %w", err)
	}
	if svc == nil || !svc.Active {
		return nil, ErrServiceNotFound
	}

	appointment := &model.Appointment{
		UserID:               userID,
		ServiceID:            svc.ID,
		ServiceNameSnapshot:  svc.Name,
		ServicePriceSnapshot: svc.Price,
		PetName:              strings.TrimSpace(req.PetName),
		OwnerName:            strings.TrimSpace(req.OwnerName),
		Date:                 strings.TrimSpace(req.Date),
		Time:                 strings.TrimSpace(req.Time),
		Notes:                req.Notes,
		Status:               model.AppointmentStatusPending,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, appointment); err != nil {
		return nil, fmt.Errorf("failed to create appointment in repo: %w", err)
	}
	return appointment, nil
}

// ListUserAppointments returns the appointments booked by userID, never nil
func (s *appointmentService) ListUserAppointments(ctx context.Context, userID string) ([]model.Appointment, error) {
	appointments, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user appointments from repo: %w", err)
	}
	if appointments == nil {
		appointments = []model.Appointment{}
	}
	return appointments, nil
}
