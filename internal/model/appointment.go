package model

import "time"

const (
	AppointmentStatusPending   = "Pending"
	AppointmentStatusConfirmed = "Confirmed"
	AppointmentStatusCancelled = "Cancelled"
	AppointmentStatusCompleted = "Completed"
)

// Appointment is a booking of a service for a pet. The service name and price are
// copied at booking time and never follow later changes to the service.
type Appointment struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	ServiceID            string    `json:"serviceId"`
	ServiceNameSnapshot  string    `json:"serviceNameSnapshot"`
	ServicePriceSnapshot Price     `json:"servicePriceSnapshot"`
	PetName              string    `json:"petName"`
	OwnerName            string    `json:"ownerName"`
	Date                 string    `json:"date"`
	Time                 string    `json:"time"`
	Notes                string    `json:"notes"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"createdAt"`
}

// CreateAppointmentRequest is used for booking a service
type CreateAppointmentRequest struct {
	ServiceID string `json:"serviceId"`
	PetName   string `json:"petName"`
	OwnerName string `json:"ownerName"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Notes     string `json:"notes"`
}
