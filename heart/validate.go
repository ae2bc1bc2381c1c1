package heart

import "fmt"

// FieldError describes a single rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidateRange checks that value lies inside [min, max]
func ValidateRange(field string, value, min, max float64) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %v and %v", field, min, max)
	}
	return nil
}

// Validate checks all fields of a record and collects every violation.
// An empty result means the record is safe to encode.
func Validate(rec Record) []FieldError {
	var errs []FieldError

	ranges := []struct {
		field    string
		value    float64
		min, max float64
	}{
		{"Age", float64(rec.Age), 1, 120},
		{"Resting BP", float64(rec.RestingBP), 50, 250},
		{"Cholesterol", float64(rec.Cholesterol), 0, 600},
		{"Max Heart Rate", float64(rec.MaxHR), 60, 220},
		{"Oldpeak", rec.Oldpeak, -5.0, 10.0},
	}
	for _, r := range ranges {
		if err := ValidateRange(r.field, r.value, r.min, r.max); err != nil {
			errs = append(errs, FieldError{Field: r.field, Message: err.Error()})
		}
	}

	enums := []struct {
		field string
		value string
		codes map[string]float64
	}{
		{"Sex", rec.Sex, sexCodes},
		{"ChestPainType", rec.ChestPainType, chestPainCodes},
		{"FastingBS", rec.FastingBS, yesNoCodes},
		{"RestingECG", rec.RestingECG, restingECGCodes},
		{"ExerciseAngina", rec.ExerciseAngina, yesNoCodes},
		{"ST_Slope", rec.STSlope, stSlopeCodes},
	}
	for _, e := range enums {
		if _, ok := e.codes[e.value]; !ok {
			errs = append(errs, FieldError{
				Field:   e.field,
				Message: fmt.Sprintf("unknown value %q", e.value),
			})
		}
	}

	return errs
}
