package patient

import (
	"encoding/json"
	"errors"
	"testing"

	"stroke-risk/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadVI(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load("vi")
	require.NoError(t, err)
	return c
}

func TestDefaultForm(t *testing.T) {
	c := loadVI(t)
	f := DefaultForm(c)

	assert.Equal(t, "60", f.Age)
	assert.Equal(t, "22.5", f.BMI)
	assert.Equal(t, "90.0", f.Glucose)
	assert.Equal(t, "Nam", f.Selections["gender"])
	assert.Equal(t, "Không", f.Selections["hypertension"])
	assert.Equal(t, "Chưa bao giờ hút", f.Selections["smoking_status"])

	r, err := Assemble(c, f)
	require.NoError(t, err)
	assert.Equal(t, Record{
		Gender:          "Male",
		Age:             60,
		Hypertension:    0,
		HeartDisease:    0,
		EverMarried:     "Yes",
		WorkType:        "Private",
		ResidenceType:   "Urban",
		AvgGlucoseLevel: 90.0,
		BMI:             22.5,
		SmokingStatus:   "never smoked",
	}, r)
}

func TestAssemble(t *testing.T) {
	c := loadVI(t)

	f := Form{
		Selections: map[string]string{
			"gender":         "Nữ",
			"ever_married":   "Chưa",
			"work_type":      "Tự kinh doanh",
			"Residence_type": "Nông thôn",
			"hypertension":   "Có",
			"heart_disease":  "Có",
			"smoking_status": "Đang hút thuốc",
		},
		Age:     " 72 ",
		BMI:     "31.4",
		Glucose: "210.5",
	}

	r, err := Assemble(c, f)
	require.NoError(t, err)
	assert.Equal(t, "Female", r.Gender)
	assert.Equal(t, 72, r.Age)
	assert.Equal(t, 1, r.Hypertension)
	assert.Equal(t, 1, r.HeartDisease)
	assert.Equal(t, "No", r.EverMarried)
	assert.Equal(t, "Self-employed", r.WorkType)
	assert.Equal(t, "Rural", r.ResidenceType)
	assert.Equal(t, 210.5, r.AvgGlucoseLevel)
	assert.Equal(t, 31.4, r.BMI)
	assert.Equal(t, "smokes", r.SmokingStatus)
}

func TestAssemble_ValidationErrors(t *testing.T) {
	c := loadVI(t)

	tests := []struct {
		name       string
		mutate     func(f *Form)
		wantFields []string
	}{
		{"age zero", func(f *Form) { f.Age = "0" }, []string{"age"}},
		{"age too old", func(f *Form) { f.Age = "121" }, []string{"age"}},
		{"age fractional", func(f *Form) { f.Age = "60.5" }, []string{"age"}},
		{"bmi text", func(f *Form) { f.BMI = "tall" }, []string{"bmi"}},
		{"bmi negative", func(f *Form) { f.BMI = "-1" }, []string{"bmi"}},
		{"glucose infinite", func(f *Form) { f.Glucose = "Inf" }, []string{"avg_glucose_level"}},
		{"glucose NaN", func(f *Form) { f.Glucose = "NaN" }, []string{"avg_glucose_level"}},
		{"unknown label", func(f *Form) { f.Selections["gender"] = "Male" }, []string{"gender"}},
		{"missing selection", func(f *Form) { delete(f.Selections, "work_type") }, []string{"work_type"}},
		{
			"several at once",
			func(f *Form) {
				f.Age = ""
				f.Selections["smoking_status"] = "?"
			},
			[]string{"age", "smoking_status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := DefaultForm(c)
			tt.mutate(&f)

			_, err := Assemble(c, f)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr.Fields, len(tt.wantFields))
			for _, name := range tt.wantFields {
				assert.Contains(t, verr.Fields, name)
			}
		})
	}
}

func TestAssemble_BoundaryAges(t *testing.T) {
	c := loadVI(t)

	for _, age := range []string{"1", "120"} {
		f := DefaultForm(c)
		f.Age = age
		_, err := Assemble(c, f)
		assert.NoError(t, err, age)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"bmi": "must be a number",
		"age": "must be a whole number",
	}}
	assert.Equal(t, "invalid input: age: must be a whole number; bmi: must be a number", err.Error())
}

func TestRecord_JSONColumns(t *testing.T) {
	data, err := json.Marshal(Record{Gender: "Male", ResidenceType: "Urban"})
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, Columns, keys)
}

func TestRecord_Views(t *testing.T) {
	r := Record{Gender: "Female", Age: 45, Hypertension: 1, BMI: 28, AvgGlucoseLevel: 100, SmokingStatus: "smokes"}

	cat := r.Categorical()
	assert.Equal(t, "1", cat["hypertension"])
	assert.Equal(t, "0", cat["heart_disease"])
	assert.Equal(t, "Female", cat["gender"])

	num := r.Numeric()
	assert.Equal(t, 45.0, num["age"])
	assert.Equal(t, 28.0, num["bmi"])
	assert.Len(t, num, 3)
	assert.Len(t, cat, 7)
}
