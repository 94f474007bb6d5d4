package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/trossachsgroup/site-backend/internal/site"
)

func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.catalog)
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, ServiceListResponse{Services: h.catalog.Services})
}

func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	svc, ok := h.catalog.Service(slug)
	if !ok {
		h.writeError(w, http.StatusNotFound, CodeServiceNotFound, "service "+slug+" not found")
		return
	}
	h.writeJSON(w, http.StatusOK, svc)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, StatsResponse{Stats: h.catalog.Stats})
}

func (h *Handler) GetAbout(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.catalog.About)
}

func (h *Handler) GetContactInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.catalog.Contact)
}

// SubmitContact accepts the contact form
func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var req site.ContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	msg, err := h.inbox.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, site.ErrInvalidContact) {
			h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
			return
		}
		h.internalError(w, r, "submit contact", err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, ContactAccepted{ID: msg.ID, ReceivedAt: msg.ReceivedAt})
}

func (h *Handler) ListContactMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.inbox.Messages(r.Context())
	if err != nil {
		h.internalError(w, r, "list contact messages", err)
		return
	}
	h.writeJSON(w, http.StatusOK, ContactListResponse{Messages: msgs, Count: len(msgs)})
}
