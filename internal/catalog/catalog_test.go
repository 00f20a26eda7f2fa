package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Vietnamese(t *testing.T) {
	c, err := Load("vi")
	require.NoError(t, err)

	tests := []struct {
		field string
		label string
		want  string
	}{
		{"gender", "Nam", "Male"},
		{"gender", "Nữ", "Female"},
		{"gender", "Khác", "Other"},
		{"ever_married", "Rồi", "Yes"},
		{"ever_married", "Chưa", "No"},
		{"work_type", "Tư nhân / Doanh nghiệp", "Private"},
		{"work_type", "Tự kinh doanh", "Self-employed"},
		{"work_type", "Nhà nước", "Govt_job"},
		{"work_type", "Trẻ nhỏ", "children"},
		{"work_type", "Chưa đi làm", "Never_worked"},
		{"Residence_type", "Thành thị", "Urban"},
		{"Residence_type", "Nông thôn", "Rural"},
		{"hypertension", "Không", "0"},
		{"hypertension", "Có", "1"},
		{"heart_disease", "Không", "0"},
		{"heart_disease", "Có", "1"},
		{"smoking_status", "Chưa bao giờ hút", "never smoked"},
		{"smoking_status", "Đã bỏ thuốc", "formerly smoked"},
		{"smoking_status", "Đang hút thuốc", "smokes"},
		{"smoking_status", "Không rõ", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.label, func(t *testing.T) {
			got, err := c.Translate(tt.field, tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_EnglishMapsToSameValues(t *testing.T) {
	vi, err := Load("vi")
	require.NoError(t, err)
	en, err := Load("en")
	require.NoError(t, err)

	for _, name := range RequiredFields {
		vf, ok := vi.Field(name)
		require.True(t, ok, name)
		ef, ok := en.Field(name)
		require.True(t, ok, name)

		require.Len(t, ef.Options, len(vf.Options), name)
		for i := range vf.Options {
			assert.Equal(t, vf.Options[i].Value, ef.Options[i].Value, "%s option %d", name, i)
		}
	}
}

func TestLoad_UnknownLocale(t *testing.T) {
	_, err := Load("fr")
	assert.Error(t, err)
}

func TestLocales(t *testing.T) {
	assert.Equal(t, []string{"en", "vi"}, Locales())
}

func TestTranslate_Errors(t *testing.T) {
	c, err := Load("vi")
	require.NoError(t, err)

	_, err = c.Translate("gender", "Male")
	assert.ErrorIs(t, err, ErrUnknownLabel)

	_, err = c.Translate("blood_type", "A")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestField_Default(t *testing.T) {
	c, err := Load("vi")
	require.NoError(t, err)

	f, ok := c.Field("work_type")
	require.True(t, ok)
	assert.Equal(t, "Tư nhân / Doanh nghiệp", f.Default())
	assert.Equal(t, "", Field{}.Default())
}

func TestSection(t *testing.T) {
	c, err := Load("vi")
	require.NoError(t, err)

	var personal []string
	for _, f := range c.Section(SectionPersonal) {
		personal = append(personal, f.Name)
	}
	assert.Equal(t, []string{"gender", "ever_married", "work_type", "Residence_type"}, personal)

	var health []string
	for _, f := range c.Section(SectionHealth) {
		health = append(health, f.Name)
	}
	assert.Equal(t, []string{"hypertension", "heart_disease", "smoking_status"}, health)
}

func TestParse_Validation(t *testing.T) {
	base := func(extra string) string {
		return `locale: test
fields:
  - name: ever_married
    options: [{label: a, value: "Yes"}]
  - name: work_type
    options: [{label: a, value: Private}]
  - name: Residence_type
    options: [{label: a, value: Urban}]
  - name: hypertension
    binary: true
    options: [{label: a, value: "0"}]
  - name: heart_disease
    binary: true
    options: [{label: a, value: "1"}]
  - name: smoking_status
    options: [{label: a, value: smokes}]
` + extra
	}

	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name:    "valid minimal catalog",
			yaml:    base("  - name: gender\n    options: [{label: m, value: Male}]\n"),
			wantErr: false,
		},
		{
			name:    "missing required field",
			yaml:    base(""),
			wantErr: true,
		},
		{
			name:    "duplicate label",
			yaml:    base("  - name: gender\n    options: [{label: m, value: Male}, {label: m, value: Female}]\n"),
			wantErr: true,
		},
		{
			name:    "empty options",
			yaml:    base("  - name: gender\n    options: []\n"),
			wantErr: true,
		},
		{
			name:    "duplicate field",
			yaml:    base("  - name: gender\n    options: [{label: m, value: Male}]\n  - name: gender\n    options: [{label: m, value: Male}]\n"),
			wantErr: true,
		},
		{
			name: "binary field with non binary value",
			yaml: base("  - name: gender\n    options: [{label: m, value: Male}]\n") +
				"  - name: diabetes\n    binary: true\n    options: [{label: y, value: yes}]\n",
			wantErr: true,
		},
		{
			name: "indicator column not marked binary",
			yaml: strings.Replace(base("  - name: gender\n    options: [{label: m, value: Male}]\n"),
				"  - name: hypertension\n    binary: true\n    options: [{label: a, value: \"0\"}]\n",
				"  - name: hypertension\n    options: [{label: a, value: \"0\"}]\n", 1),
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "fields: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParse_IndicatorColumnsMustBeBinary(t *testing.T) {
	data, err := localeFS.ReadFile("locales/vi.yaml")
	require.NoError(t, err)

	// A custom catalog that drops the binary flag and maps "Có" to a word
	// would otherwise score every hypertensive patient as 0.
	custom := strings.Replace(string(data),
		"  - name: hypertension\n    label: \"Có bị Cao huyết áp không?\"\n    section: health\n    binary: true\n",
		"  - name: hypertension\n    label: \"Có bị Cao huyết áp không?\"\n    section: health\n", 1)
	custom = strings.Replace(custom, `{label: "Có", value: "1"}`, `{label: "Có", value: "yes"}`, 1)
	require.NotEqual(t, string(data), custom)

	_, err = Parse([]byte(custom))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hypertension")
}

func TestLoadFile(t *testing.T) {
	data, err := localeFS.ReadFile("locales/en.yaml")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "en", c.Locale)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
