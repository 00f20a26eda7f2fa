package web

import (
	"bytes"
	"html/template"
	"net/http"

	"stroke-risk/internal/catalog"
	"stroke-risk/internal/patient"

	"github.com/rs/zerolog/log"
)

type fieldView struct {
	catalog.Field
	Selected string
}

type resultView struct {
	Display string
	Band    string
	Message string
	Gauge   template.HTML
}

type pageData struct {
	Locale   string
	Strings  catalog.Strings
	Personal []fieldView
	Health   []fieldView
	Form     patient.Form
	Result   *resultView
	Error    string
}

// page lays the catalog out in its two columns with the form's current selections.
func (s *Server) page(form patient.Form) pageData {
	return pageData{
		Locale:   s.catalog.Locale,
		Strings:  s.catalog.Strings,
		Personal: s.fieldViews(catalog.SectionPersonal, form),
		Health:   s.fieldViews(catalog.SectionHealth, form),
		Form:     form,
	}
}

func (s *Server) fieldViews(section string, form patient.Form) []fieldView {
	fields := s.catalog.Section(section)
	views := make([]fieldView, 0, len(fields))
	for _, f := range fields {
		selected := form.Selections[f.Name]
		if _, ok := f.Lookup(selected); !ok {
			selected = f.Default()
		}
		views = append(views, fieldView{Field: f, Selected: selected})
	}
	return views
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.page(patient.DefaultForm(s.catalog)))
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "index.html", data); err != nil {
		log.Error().Err(err).Msg("Failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Error().Err(err).Msg("Failed to write page")
	}
}
