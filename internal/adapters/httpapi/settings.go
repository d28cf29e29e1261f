package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"surveycore/internal/core"
	"surveycore/pkg/domain"
)

func (s *Server) listSettings(w http.ResponseWriter, _ *http.Request) {
	settings := s.Service.Settings()
	values := make(map[string]any, len(core.SettingPaths()))
	for _, path := range core.SettingPaths() {
		v, _ := core.GetSetting(settings, path)
		values[path] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings, "paths": values})
}

func (s *Server) getSetting(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")
	v, err := s.Service.GetSetting(path)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "value": v})
}

// putSetting expects {"value": ...}. Strings are parsed into the setting's type.
func (s *Server) putSetting(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value any `json:"value"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&body); err != nil {
		writeFailure(w, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err))
		return
	}
	path := chi.URLParam(r, "path")
	persisted, err := s.Service.SetSetting(r.Context(), path, body.Value)
	if err != nil {
		writeFailure(w, err)
		return
	}
	v, _ := s.Service.GetSetting(path)
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "value": v, "persisted": persisted})
}
