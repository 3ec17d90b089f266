package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"relief.org/internal/relief"
)

type createAssignmentRequest struct {
	VolunteerID     string `json:"volunteer_id"`
	IncidentID      string `json:"incident_id"`
	TaskDescription string `json:"task_description"`
}

type completeAssignmentRequest struct {
	Completed *bool  `json:"completed"`
	Status    string `json:"status"`
	Version   *int64 `json:"version"`
}

func (a *API) createAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	asg, err := a.relief.CreateAssignment(r.Context(), relief.NewAssignment(req))
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/assignments/"+asg.ID)
	writeVersioned(w, http.StatusCreated, asg.Version, asg)
}

func (a *API) getAssignment(w http.ResponseWriter, r *http.Request) {
	asg, err := a.relief.GetAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	writeVersioned(w, http.StatusOK, asg.Version, asg)
}

func (a *API) listAssignmentsByVolunteer(w http.ResponseWriter, r *http.Request) {
	items, err := a.relief.ListAssignmentsByVolunteer(r.Context(), chi.URLParam(r, "volunteerId"))
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) completeAssignment(w http.ResponseWriter, r *http.Request) {
	// An empty body asks for nothing and returns the current record.
	var req completeAssignmentRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	version, err := expectedVersion(r, req.Version)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	asg, err := a.relief.CompleteAssignment(r.Context(), chi.URLParam(r, "id"),
		relief.CompletionInput{Completed: req.Completed, Status: req.Status}, version)
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	writeVersioned(w, http.StatusOK, asg.Version, asg)
}
