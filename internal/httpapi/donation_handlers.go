package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"relief.org/internal/relief"
)

type createDonationRequest struct {
	DonorName  string `json:"donor_name"`
	DonorEmail string `json:"donor_email"`
	ItemName   string `json:"item_name"`
	Quantity   int    `json:"quantity"`
	Unit       string `json:"unit"`
	Location   string `json:"location"`
}

func (a *API) createDonation(w http.ResponseWriter, r *http.Request) {
	var req createDonationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	d, err := a.relief.CreateDonation(r.Context(), relief.NewDonation(req))
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/donations/"+d.ID)
	writeVersioned(w, http.StatusCreated, d.Version, d)
}

func (a *API) getDonation(w http.ResponseWriter, r *http.Request) {
	d, err := a.relief.GetDonation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	writeVersioned(w, http.StatusOK, d.Version, d)
}

func (a *API) listDonations(w http.ResponseWriter, r *http.Request) {
	items, err := a.relief.ListDonations(r.Context(), relief.DonationFilter{
		Status: relief.DonationStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) updateDonationStatus(w http.ResponseWriter, r *http.Request) {
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
	d, err := a.relief.UpdateDonationStatus(r.Context(), chi.URLParam(r, "id"), req.Status, version)
	if err != nil {
		handleReliefError(w, r, err)
		return
	}
	writeVersioned(w, http.StatusOK, d.Version, d)
}
