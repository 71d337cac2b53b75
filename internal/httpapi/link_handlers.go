package httpapi

import (
	"errors"
	"net/http"

	"linkdesk.org/internal/audit"
	"linkdesk.org/internal/linksource"
)

type addLinkSourceRequest struct {
	Name string `json:"link_source_name"`
}

type updateLinkSourceRequest struct {
	ID   string `json:"link_source_id"`
	Name string `json:"link_source_name"`
}

type deleteLinkSourceRequest struct {
	ID string `json:"link_source_id"`
}

func (a *API) handleLinkSources(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		a.listLinkSources(w, r)
		return
	}
	// Mutations pass through the admin role gate.
	a.linkWrites.ServeHTTP(w, r)
}

func (a *API) mutateLinkSources(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.addLinkSource(w, r)
	case http.MethodPatch:
		a.updateLinkSource(w, r)
	case http.MethodDelete:
		a.deleteLinkSource(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) listLinkSources(w http.ResponseWriter, r *http.Request) {
	sources, err := a.links.List(r.Context())
	if err != nil {
		handleLinkSourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"link_sources": sources,
	})
}

func (a *API) addLinkSource(w http.ResponseWriter, r *http.Request) {
	var req addLinkSourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ls, err := a.links.Add(r.Context(), req.Name)
	if err != nil {
		handleLinkSourceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "linksource.create", map[string]any{
		"link_source_id": ls.ID,
		"name":           ls.Name,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"link_source": ls,
	})
}

func (a *API) updateLinkSource(w http.ResponseWriter, r *http.Request) {
	var req updateLinkSourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ls, err := a.links.Update(r.Context(), req.ID, req.Name)
	if err != nil {
		handleLinkSourceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "linksource.update", map[string]any{
		"link_source_id": ls.ID,
		"name":           ls.Name,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"link_source": ls,
	})
}

func (a *API) deleteLinkSource(w http.ResponseWriter, r *http.Request) {
	var req deleteLinkSourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ls, err := a.links.Delete(r.Context(), req.ID)
	if err != nil {
		handleLinkSourceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "linksource.delete", map[string]any{
		"link_source_id": ls.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"link_source": ls,
	})
}

func handleLinkSourceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, linksource.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "link source id and name are required")
	case errors.Is(err, linksource.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "link source not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
