// Package patient assembles the single-row record the stroke classifier scores.
package patient

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"stroke-risk/internal/catalog"
	"stroke-risk/internal/common"
)

// Record is one row with the exact columns the classifier was trained on.
type Record struct {
	Gender          string  `json:"gender"`
	Age             int     `json:"age"`
	Hypertension    int     `json:"hypertension"`
	HeartDisease    int     `json:"heart_disease"`
	EverMarried     string  `json:"ever_married"`
	WorkType        string  `json:"work_type"`
	ResidenceType   string  `json:"Residence_type"`
	AvgGlucoseLevel float64 `json:"avg_glucose_level"`
	BMI             float64 `json:"bmi"`
	SmokingStatus   string  `json:"smoking_status"`
}

// Columns is the column order of a Record.
var Columns = []string{
	"gender", "age", "hypertension", "heart_disease", "ever_married",
	"work_type", "Residence_type", "avg_glucose_level", "bmi", "smoking_status",
}

// Categorical returns the record's categorical columns keyed by column name.
// Binary indicators are rendered as "0" or "1".
func (r Record) Categorical() map[string]string {
	return map[string]string{
		"gender":         r.Gender,
		"hypertension":   strconv.Itoa(r.Hypertension),
		"heart_disease":  strconv.Itoa(r.HeartDisease),
		"ever_married":   r.EverMarried,
		"work_type":      r.WorkType,
		"Residence_type": r.ResidenceType,
		"smoking_status": r.SmokingStatus,
	}
}

// Numeric returns the record's numeric columns keyed by column name.
func (r Record) Numeric() map[string]float64 {
	return map[string]float64{
		"age":               float64(r.Age),
		"avg_glucose_level": r.AvgGlucoseLevel,
		"bmi":               r.BMI,
	}
}

// Form holds what the user entered: display labels for the selects and
// the raw text of the numeric inputs.
type Form struct {
	Selections map[string]string `json:"selections"`
	Age        string            `json:"age"`
	BMI        string            `json:"bmi"`
	Glucose    string            `json:"avg_glucose_level"`
}

// DefaultForm returns the form as first shown: the first option of every
// select and the numeric defaults.
func DefaultForm(c *catalog.Catalog) Form {
	f := Form{
		Selections: make(map[string]string, len(c.Fields)),
		Age:        strconv.Itoa(common.DefaultAge),
		BMI:        strconv.FormatFloat(common.DefaultBMI, 'f', -1, 64),
		Glucose:    strconv.FormatFloat(common.DefaultGlucose, 'f', 1, 64),
	}
	for _, field := range c.Fields {
		f.Selections[field.Name] = field.Default()
	}
	return f
}

// ValidationError collects every field that failed to assemble.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// Assemble translates the form's labels through the catalog, parses the
// numeric inputs and returns the record. All problems are reported together
// in a *ValidationError.
func Assemble(c *catalog.Catalog, f Form) (Record, error) {
	var (
		r    Record
		verr ValidationError
	)

	translate := func(field string) string {
		v, err := c.Translate(field, f.Selections[field])
		if err != nil {
			if errors.Is(err, catalog.ErrUnknownLabel) {
				verr.add(field, fmt.Sprintf("unknown option %q", f.Selections[field]))
			} else {
				verr.add(field, err.Error())
			}
			return ""
		}
		return v
	}

	r.Gender = translate("gender")
	r.EverMarried = translate("ever_married")
	r.WorkType = translate("work_type")
	r.ResidenceType = translate("Residence_type")
	r.SmokingStatus = translate("smoking_status")
	r.Hypertension = binary(translate("hypertension"))
	r.HeartDisease = binary(translate("heart_disease"))

	age, err := strconv.Atoi(strings.TrimSpace(f.Age))
	switch {
	case err != nil:
		verr.add("age", "must be a whole number")
	case age < common.MinAge || age > common.MaxAge:
		verr.add("age", fmt.Sprintf("must be between %d and %d", common.MinAge, common.MaxAge))
	default:
		r.Age = age
	}

	r.BMI = parseMeasure(&verr, "bmi", f.BMI)
	r.AvgGlucoseLevel = parseMeasure(&verr, "avg_glucose_level", f.Glucose)

	if len(verr.Fields) > 0 {
		return Record{}, &verr
	}
	return r, nil
}

func parseMeasure(verr *ValidationError, field, raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	switch {
	case err != nil:
		verr.add(field, "must be a number")
	case math.IsNaN(v) || math.IsInf(v, 0):
		verr.add(field, "must be finite")
	case v < 0:
		verr.add(field, "must not be negative")
	default:
		return v
	}
	return 0
}

func binary(v string) int {
	if v == "1" {
		return 1
	}
	return 0
}
