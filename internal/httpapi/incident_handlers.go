package httpapi

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"relief.org/internal/obs"
	"relief.org/internal/relief"
)

type createIncidentRequest struct {
	Type      string          `json:"type"`
	Severity  relief.Severity `json:"severity"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Needs     string          `json:"needs"`
}

type statusRequest struct {
	Status  string `json:"status"`
	Version *int64 `json:"version"`
}

var incidentCSVHeader = []string{"incidentId", "type", "severity", "status", "latitude", "longitude", "needs", "createdAt"}

func (a *API) createIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inc, err := a.relief.CreateIncident(r.Context(), relief.NewIncident{
		Type:      req.Type,
		Severity:  req.Severity,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Needs:     req.Needs,
	})
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/incidents/"+inc.ID)
	writeVersioned(w, http.StatusCreated, inc.Version, inc)
}

func (a *API) getIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := a.relief.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	writeVersioned(w, http.StatusOK, inc.Version, inc)
}

func (a *API) listIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := a.relief.ListIncidents(r.Context(), relief.IncidentFilter{
		Status:   relief.IncidentStatus(q.Get("status")),
		Severity: relief.Severity(q.Get("severity")),
	})
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) updateIncidentStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	version, err := expectedVersion(r, req.Version)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inc, err := a.relief.UpdateIncidentStatus(r.Context(), chi.URLParam(r, "id"), req.Status, version)
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	writeVersioned(w, http.StatusOK, inc.Version, inc)
}

func (a *API) exportIncidents(w http.ResponseWriter, r *http.Request) {
	items, err := a.relief.ExportIncidents(r.Context(), relief.IncidentStatus(r.URL.Query().Get("status")))
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	name := fmt.Sprintf("incidents-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(incidentCSVHeader)
	for _, inc := range items {
		_ = cw.Write([]string{
			inc.ID,
			inc.Type,
			string(inc.Severity),
			string(inc.Status),
			strconv.FormatFloat(inc.Latitude, 'f', -1, 64),
			strconv.FormatFloat(inc.Longitude, 'f', -1, 64),
			inc.Needs,
			inc.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		obs.Logger().Error("incident export interrupted", "request_id", RequestIDFromContext(r.Context()), "error", err)
	}
}
