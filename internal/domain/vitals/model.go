package vitals

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidReading = errors.New("invalid reading")

const (
	TypeGlucose       = "glucose"
	TypeBloodPressure = "blood_pressure"
)

// Reading is a single vital-sign measurement. It is evaluated once and not
// persisted here.
type Reading struct {
	// UserID is optional on the wire; admins and doctors use it to submit
	// for a patient.
	UserID    uuid.UUID `json:"user_id,omitempty"`
	Type      string    `json:"type"`
	Value     float64   `json:"value,omitempty"`
	Systolic  float64   `json:"systolic,omitempty"`
	Diastolic float64   `json:"diastolic,omitempty"`
	IsFasting bool      `json:"is_fasting,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate rejects readings that cannot be evaluated.
func (r Reading) Validate() error {
	switch r.Type {
	case TypeGlucose:
		if !finite(r.Value) || r.Value <= 0 {
			return fmt.Errorf("%w: glucose value must be a positive number", ErrInvalidReading)
		}
	case TypeBloodPressure:
		if !finite(r.Systolic) || !finite(r.Diastolic) || r.Systolic <= 0 || r.Diastolic <= 0 {
			return fmt.Errorf("%w: systolic and diastolic must be positive numbers", ErrInvalidReading)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidReading, r.Type)
	}
	return nil
}
