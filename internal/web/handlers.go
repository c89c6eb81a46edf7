package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/fakedata/internal/catalog"
	"github.com/JonMunkholm/fakedata/internal/core"
	"github.com/JonMunkholm/fakedata/internal/logging"
)

// Paging defaults for the rows endpoint.
const (
	DefaultRowLimit = 50
	MaxRowLimit     = 500
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status        string                   `json:"status"`
	Resources     int                      `json:"resources"`
	ExportEnabled bool                     `json:"exportEnabled"`
	Exports       core.ExportLimiterStatus `json:"exports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:        "ok",
		Resources:     catalog.Count(),
		ExportEnabled: s.service.ExportEnabled(),
		Exports:       s.service.ExportStatus(),
	})
}

// handleListResources lists registered resources. With ?group=<name> only
// that group is returned; with ?grouped=true the result is keyed by group.
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if grouped, _ := strconv.ParseBool(q.Get("grouped")); grouped {
		writeJSON(w, r, http.StatusOK, s.service.ListResourcesByGroup())
		return
	}

	resources := s.service.ListResources()
	if group := q.Get("group"); group != "" {
		filtered := resources[:0:0]
		for _, res := range resources {
			if res.Group == group {
				filtered = append(filtered, res)
			}
		}
		resources = filtered
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"resources": resources,
		"count":     len(resources),
	})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	desc, err := s.service.Describe(chi.URLParam(r, "key"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, desc)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	offset, err := intQuery(r, "offset", 0, 0, -1)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit", DefaultRowLimit, 1, MaxRowLimit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	page, err := s.service.Rows(chi.URLParam(r, "key"), offset, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

func (s *Server) handleRow(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		respondServiceError(w, r, fmt.Errorf("%w: row index %q", core.ErrInvalidArgument, chi.URLParam(r, "index")))
		return
	}

	row, err := s.service.Row(chi.URLParam(r, "key"), index)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, row)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	desc, err := s.service.Reload(key)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("resource reloaded", "resource", key, "rows", desc.RowCount)
	writeJSON(w, r, http.StatusOK, desc)
}

func (s *Server) handleResetCache(w http.ResponseWriter, r *http.Request) {
	dropped := s.service.ResetCache()

	logging.FromContext(r.Context()).Info("resource cache reset", "dropped", dropped)
	writeJSON(w, r, http.StatusOK, map[string]int{"dropped": dropped})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Export(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"enabled": s.service.ExportEnabled(),
		"status":  s.service.ExportStatus(),
	})
}

// intQuery parses an integer query parameter. Missing values yield def;
// values below lo or above hi (when hi >= 0) are rejected.
func intQuery(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", core.ErrInvalidArgument, name, raw)
	}
	if v < lo || (hi >= 0 && v > hi) {
		if hi >= 0 {
			return 0, fmt.Errorf("%w: %s must be between %d and %d", core.ErrInvalidArgument, name, lo, hi)
		}
		return 0, fmt.Errorf("%w: %s must be at least %d", core.ErrInvalidArgument, name, lo)
	}
	return v, nil
}
