package handlers

import "net/http"

// FindProviders GET /api/providers?serviceType=&datetime=
func (h *Handlers) FindProviders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	at, err := h.parseInstant("datetime", q.Get("datetime"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	providers, err := h.matching.FindAvailableProviders(r.Context(), q.Get("serviceType"), at)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, orEmpty(providers))
}

// FindTimeSlots GET /api/timeslots?serviceType=&date=&location=
func (h *Handlers) FindTimeSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date, err := h.parseDate("date", q.Get("date"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	slots, err := h.matching.FindOpenSlots(r.Context(), q.Get("serviceType"), date, q.Get("location"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, orEmpty(slots))
}

// GetProvider GET /api/providers/{id}
func (h *Handlers) GetProvider(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	detail, err := h.matching.GetProviderDetail(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, detail)
}

// ListProviderSlots GET /api/providers/{id}/slots
func (h *Handlers) ListProviderSlots(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	slots, err := h.availability.ListSlots(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, orEmpty(slots))
}
