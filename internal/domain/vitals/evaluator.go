// Package vitals evaluates vital-sign readings against clinical thresholds
// and turns abnormal ones into alerts.
package vitals

import (
	"fmt"

	"github.com/monjedAmarna/chronicare-sub001/internal/domain/alert"
)

// Clinical thresholds. Glucose in mg/dL, blood pressure in mmHg.
const (
	GlucoseFastingLow  = 70.0
	GlucoseFastingHigh = 126.0
	GlucoseCritical    = 200.0

	SystolicHigh      = 140.0
	DiastolicHigh     = 90.0
	SystolicCritical  = 180.0
	DiastolicCritical = 120.0
	SystolicLow       = 90.0
	DiastolicLow      = 60.0
)

func candidate(category, level string, sev alert.Severity, title, message string, value float64) alert.Candidate {
	v := value
	return alert.Candidate{
		Title:    title,
		Message:  message,
		Category: category,
		Level:    level,
		Severity: sev,
		Value:    &v,
	}
}

// CheckGlucoseAlert returns at most one candidate: fasting readings are
// checked low, then high; random readings only against the critical limit.
// The returned candidates carry no UserID.
func CheckGlucoseAlert(value float64, isFasting bool) []alert.Candidate {
	var out []alert.Candidate
	if isFasting {
		switch {
		case value < GlucoseFastingLow:
			out = append(out, candidate(alert.CategoryGlucose, alert.LevelLow, alert.SeverityCritical,
				"Low blood glucose",
				fmt.Sprintf("Fasting glucose %.0f mg/dL is below %.0f mg/dL", value, GlucoseFastingLow), value))
		case value > GlucoseCritical:
			out = append(out, candidate(alert.CategoryGlucose, alert.LevelHigh, alert.SeverityCritical,
				"Critically high blood glucose",
				fmt.Sprintf("Fasting glucose %.0f mg/dL is above %.0f mg/dL", value, GlucoseCritical), value))
		case value > GlucoseFastingHigh:
			out = append(out, candidate(alert.CategoryGlucose, alert.LevelHigh, alert.SeverityHigh,
				"High blood glucose",
				fmt.Sprintf("Fasting glucose %.0f mg/dL is above %.0f mg/dL", value, GlucoseFastingHigh), value))
		}
		return out
	}

	if value > GlucoseCritical {
		out = append(out, candidate(alert.CategoryGlucose, alert.LevelHigh, alert.SeverityCritical,
			"Critically high blood glucose",
			fmt.Sprintf("Random glucose %.0f mg/dL is above %.0f mg/dL", value, GlucoseCritical), value))
	}
	return out
}

// CheckBloodPressureAlert returns up to two candidates. The high check emits
// critical or high, never both; the low check is independent of it.
func CheckBloodPressureAlert(systolic, diastolic float64) []alert.Candidate {
	var out []alert.Candidate
	reading := fmt.Sprintf("%.0f/%.0f mmHg", systolic, diastolic)

	switch {
	case systolic >= SystolicCritical || diastolic >= DiastolicCritical:
		out = append(out, candidate(alert.CategoryBloodPressure, alert.LevelHigh, alert.SeverityCritical,
			"Hypertensive crisis",
			fmt.Sprintf("Blood pressure %s is at or above %.0f/%.0f mmHg", reading, SystolicCritical, DiastolicCritical), systolic))
	case systolic >= SystolicHigh || diastolic >= DiastolicHigh:
		out = append(out, candidate(alert.CategoryBloodPressure, alert.LevelHigh, alert.SeverityHigh,
			"High blood pressure",
			fmt.Sprintf("Blood pressure %s is at or above %.0f/%.0f mmHg", reading, SystolicHigh, DiastolicHigh), systolic))
	}

	if systolic < SystolicLow || diastolic < DiastolicLow {
		out = append(out, candidate(alert.CategoryBloodPressure, alert.LevelLow, alert.SeverityHigh,
			"Low blood pressure",
			fmt.Sprintf("Blood pressure %s is below %.0f/%.0f mmHg", reading, SystolicLow, DiastolicLow), systolic))
	}
	return out
}

// Evaluate dispatches on the reading type. Unknown types yield nothing.
func Evaluate(r Reading) []alert.Candidate {
	switch r.Type {
	case TypeGlucose:
		return CheckGlucoseAlert(r.Value, r.IsFasting)
	case TypeBloodPressure:
		return CheckBloodPressureAlert(r.Systolic, r.Diastolic)
	default:
		return nil
	}
}
