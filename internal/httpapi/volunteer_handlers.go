package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"relief.org/internal/relief"
)

type createVolunteerRequest struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Skills       string `json:"skills"`
	HomeBase     string `json:"home_base"`
	Availability string `json:"availability"`
}

func (a *API) createVolunteer(w http.ResponseWriter, r *http.Request) {
	var req createVolunteerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	v, err := a.relief.CreateVolunteer(r.Context(), relief.NewVolunteer(req))
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/volunteers/"+v.ID)
	writeVersioned(w, http.StatusCreated, v.Version, v)
}

func (a *API) getVolunteer(w http.ResponseWriter, r *http.Request) {
	v, err := a.relief.GetVolunteer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	writeVersioned(w, http.StatusOK, v.Version, v)
}

func (a *API) listVolunteers(w http.ResponseWriter, r *http.Request) {
	items, err := a.relief.ListVolunteers(r.Context())
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
