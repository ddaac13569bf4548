package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Price is a plain decimal amount. It decodes from a JSON number or a numeric string.
type Price float64

func (p *Price) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*p = Price(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("price must be a number")
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("price must be a number: %q", s)
	}
	*p = Price(n)
	return nil
}

// Positive reports whether p is a finite amount greater than zero
func (p Price) Positive() bool {
	return p > 0 && !math.IsInf(float64(p), 1)
}

// Service is a clinic offering. A service without an active flag is active.
type Service struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       Price      `json:"price"`
	Active      bool       `json:"active"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// CreateServiceRequest is used for creating a new service
type CreateServiceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       *Price `json:"price"`
}

// ServicePatch is a partial update; nil fields are left untouched
type ServicePatch struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Price       *Price     `json:"price,omitempty"`
	Active      *bool      `json:"active,omitempty"`
	DeletedAt   *time.Time `json:"-"`
}

// IsEmpty reports whether the patch changes nothing
func (p ServicePatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Active == nil && p.DeletedAt == nil
}
