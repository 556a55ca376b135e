package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cine-pos/internal/cart"
	"cine-pos/internal/catalog"
	"cine-pos/internal/models"
	"cine-pos/internal/payment"
	"cine-pos/internal/pos"
	"cine-pos/internal/seats"
)

type Handler struct {
	Service  *pos.Service
	Sessions *pos.SessionManager
	Catalog  *catalog.Service
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/v1/screenings", h.ListScreenings)
	r.Get("/api/v1/snacks", h.ListSnacks)

	r.Post("/api/v1/sessions", h.OpenSession)
	r.Route("/api/v1/sessions/{sessionId}", func(r chi.Router) {
		r.Get("/cart", h.GetCart)
		r.Post("/cart/tickets", h.AddSeats)
		r.Put("/cart/tickets/{index}/category", h.SetTicketCategory)
		r.Delete("/cart/tickets/{index}", h.RemoveTicket)
		r.Post("/cart/snacks", h.AddSnack)
		r.Put("/cart/snacks/{snackId}", h.AdjustSnack)
		r.Post("/customer", h.LinkCustomer)
		r.Put("/tenders", h.SetTenders)
		r.Post("/tenders", h.AddTender)
		r.Post("/checkout", h.Checkout)
		r.Post("/cancel", h.Cancel)
	})
}

// session pulls the till session out of the URL or writes a 404.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *pos.Session {
	sess, err := h.Sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil
	}
	return sess
}

// startOfDay is midnight in the venue's local timezone; truncating in UTC
// would drop early-morning screenings off the list for non-UTC venues.
func startOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ---------------- CATALOG ----------------

func (h *Handler) ListScreenings(w http.ResponseWriter, r *http.Request) {
	screenings, err := h.Catalog.ScreeningsFrom(r.Context(), startOfDay(time.Now()))
	if err != nil {
		http.Error(w, "Could not load screenings: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, screenings)
}

func (h *Handler) ListSnacks(w http.ResponseWriter, r *http.Request) {
	snacks, err := h.Catalog.ActiveSnacks(r.Context())
	if err != nil {
		http.Error(w, "Could not load snacks: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snacks)
}

// ---------------- SESSION ----------------

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CashierID string `json:"cashier_id"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.CashierID == "" {
		http.Error(w, "cashier_id is required", http.StatusBadRequest)
		return
	}
	// A known session id means the till is reconnecting; the stored cart is
	// rehydrated so the sale in progress survives.
	if req.SessionID != "" {
		sess := h.Sessions.Attach(req.SessionID, req.CashierID)
		if err := h.Service.Resume(r.Context(), sess); err != nil {
			http.Error(w, "Could not restore session: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"session_id": sess.ID,
			"total":      sess.Cart.Total(),
		})
		return
	}
	sess := h.Sessions.Open(req.CashierID)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cart":      sess.Cart,
		"total":     sess.Cart.Total(),
		"paid":      sess.Tenders.Paid(),
		"remaining": sess.Tenders.Remaining(sess.Cart.Total()),
		"customer":  sess.Customer,
	})
}

// ---------------- CART ----------------

func (h *Handler) AddSeats(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		ScreeningID string   `json:"screening_id"`
		SeatIDs     []string `json:"seat_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.SeatIDs) == 0 {
		http.Error(w, "At least one seat is required", http.StatusBadRequest)
		return
	}
	lines, err := h.Service.AddSeats(r.Context(), sess, req.ScreeningID, req.SeatIDs)
	if err != nil {
		h.cartError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"tickets": lines, "total": sess.Cart.Total()})
}

func (h *Handler) SetTicketCategory(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Invalid ticket index", http.StatusBadRequest)
		return
	}
	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Service.SetTicketCategory(r.Context(), sess, index, cart.Category(req.Category)); err != nil {
		h.cartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"total": sess.Cart.Total()})
}

func (h *Handler) RemoveTicket(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Invalid ticket index", http.StatusBadRequest)
		return
	}
	if err := h.Service.RemoveTicket(r.Context(), sess, index); err != nil {
		h.cartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"total": sess.Cart.Total()})
}

func (h *Handler) AddSnack(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		SnackID string `json:"snack_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	line, err := h.Service.AddSnack(r.Context(), sess, req.SnackID)
	if err != nil {
		h.cartError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"snack": line, "total": sess.Cart.Total()})
}

func (h *Handler) AdjustSnack(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Service.AdjustSnack(r.Context(), sess, chi.URLParam(r, "snackId"), req.Delta); err != nil {
		h.cartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"total": sess.Cart.Total()})
}

// ---------------- CUSTOMER & TENDERS ----------------

func (h *Handler) LinkCustomer(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	customer, err := h.Service.LinkCustomer(r.Context(), sess, req.Query)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			http.Error(w, "No customer found", http.StatusNotFound)
			return
		}
		http.Error(w, "Customer lookup failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) SetTenders(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	var tenders []models.Tender
	if err := json.NewDecoder(r.Body).Decode(&tenders); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.Tenders.SetTenders(tenders); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"paid":      sess.Tenders.Paid(),
		"remaining": sess.Tenders.Remaining(sess.Cart.Total()),
	})
}

func (h *Handler) AddTender(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	var tender models.Tender
	if err := json.NewDecoder(r.Body).Decode(&tender); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.Tenders.AddTender(tender); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"paid":      sess.Tenders.Paid(),
		"remaining": sess.Tenders.Remaining(sess.Cart.Total()),
	})
}

// ---------------- SETTLEMENT ----------------

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	receipt, err := h.Service.Commit(r.Context(), sess)
	if err != nil {
		h.commitError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	if err := h.Service.Cancel(r.Context(), sess); err != nil {
		http.Error(w, "Could not cancel sale: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- ERROR MAPPING ----------------

// cartError maps the validation taxonomy: recoverable operator input
// mistakes, no durable effect.
func (h *Handler) cartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrDuplicateSeat),
		errors.Is(err, seats.ErrSeatOccupied),
		errors.Is(err, seats.ErrSeatHeld):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, cart.ErrInvalidCategory),
		errors.Is(err, cart.ErrNoSuchLine),
		errors.Is(err, pos.ErrInactiveItem):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, catalog.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// commitError distinguishes "nothing happened" from "something durable
// happened but incompletely" for the operator.
func (h *Handler) commitError(w http.ResponseWriter, err error) {
	var commitErr *pos.CommitError
	if errors.As(err, &commitErr) {
		if commitErr.Partial() {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"status":       "completed_with_issues",
				"order_number": commitErr.OrderNumber,
				"failed_after": commitErr.Stage.String(),
				"error":        commitErr.Err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"status": "aborted",
			"error":  commitErr.Err.Error(),
		})
		return
	}
	switch {
	case errors.Is(err, pos.ErrEmptyCart):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, payment.ErrUnbalanced), errors.Is(err, payment.ErrNoTenders):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
