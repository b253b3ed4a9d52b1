/*
handlers.go - HTTP handlers for the loyalty engine

PURPOSE:
  Exposes the ledger, directory, and view composer over REST. Handlers
  parse, delegate, serialize; all business rules live in the engine.

ENDPOINTS:
  Self-service (any authenticated client):
    POST /api/orders           Record own purchase
    GET  /api/me               Own balance view

  Admin console (requires configured admin email):
    GET  /api/admin/clients?term=         Search registered clients
    GET  /api/admin/clients/{id}          Balance + history for a client
    POST /api/admin/clients/{id}/orders   Record purchase on behalf
    POST /api/admin/clients/{id}/redemptions  Redeem full balance
    GET  /api/admin/ledger?scope=today|all    Grouped global view

ERROR HANDLING:
  The engine's error kinds map onto HTTP statuses verbatim so the
  presentation layer can render an accurate message:
    400 validation    404 unknown client    409 redemption in flight
    422 insufficient balance    502 store failure
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/nadsa/loyalty-engine/directory"
	"github.com/nadsa/loyalty-engine/docstore"
	"github.com/nadsa/loyalty-engine/ledger"
	"github.com/nadsa/loyalty-engine/metrics"
	"github.com/nadsa/loyalty-engine/view"
)

// nameResolveWorkers bounds concurrent directory lookups when labeling
// the grouped view.
const nameResolveWorkers = 8

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Entries    *ledger.Ledger
	Recorder   *ledger.Recorder
	Aggregator *ledger.Aggregator
	Redeemer   *ledger.Redeemer
	Directory  *directory.Directory
	Metrics    *metrics.Metrics

	// Per-session directory caches, keyed by token session id. Created
	// on first use, dropped with the handler.
	mu     sync.Mutex
	caches map[string]*directory.SessionCache
}

func NewHandler(entries *ledger.Ledger, rec *ledger.Recorder, agg *ledger.Aggregator, red *ledger.Redeemer, dir *directory.Directory, m *metrics.Metrics) *Handler {
	return &Handler{
		Entries:    entries,
		Recorder:   rec,
		Aggregator: agg,
		Redeemer:   red,
		Directory:  dir,
		Metrics:    m,
		caches:     make(map[string]*directory.SessionCache),
	}
}

func (h *Handler) sessionCache(sessionID string) *directory.SessionCache {
	h.mu.Lock()
	defer h.mu.Unlock()
	cache, ok := h.caches[sessionID]
	if !ok {
		cache = directory.NewSessionCache()
		h.caches[sessionID] = cache
	}
	return cache
}

// =============================================================================
// SELF-SERVICE HANDLERS
// =============================================================================

// AddOwnOrder records a purchase for the authenticated client.
func (h *Handler) AddOwnOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated", nil)
		return
	}

	var req AddOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	actor := ledger.Actor{ID: p.ID, Email: p.Email, Role: ledger.RoleClient}
	entryID, err := h.Recorder.AddOrder(r.Context(), ledger.ClientID(p.ID), req.Amount, actor)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.Metrics.IncOrdersRecorded()
	writeJSON(w, http.StatusCreated, AddOrderResponse{EntryID: string(entryID)})
}

// GetOwnView returns the self-service balance view.
func (h *Handler) GetOwnView(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated", nil)
		return
	}

	balance, err := h.Aggregator.ComputeBalance(r.Context(), ledger.ClientID(p.ID))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view.BuildSelfView(balance))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// SearchClients handles the admin search box.
func (h *Handler) SearchClients(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")

	matches, err := h.Directory.Search(r.Context(), term)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.Metrics.IncSearches()
	writeJSON(w, http.StatusOK, matches)
}

// GetClientSummary returns balance and full history for one client.
func (h *Handler) GetClientSummary(w http.ResponseWriter, r *http.Request) {
	clientID := ledger.ClientID(chi.URLParam(r, "id"))

	exists, err := h.Directory.ClientExists(r.Context(), clientID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "client not found", nil)
		return
	}

	cache := h.sessionCache(sessionFrom(r.Context()))
	name, err := h.Directory.Lookup(r.Context(), cache, clientID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	balance, err := h.Aggregator.ComputeBalance(r.Context(), clientID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	history, err := h.Entries.ByClient(r.Context(), clientID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ClientSummaryResponse{
		ClientID:    string(clientID),
		DisplayName: name,
		Balance:     view.BuildSelfView(balance),
		Entries:     entryDTOs(history),
	})
}

// AddClientOrder records a purchase on behalf of a client.
func (h *Handler) AddClientOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	clientID := ledger.ClientID(chi.URLParam(r, "id"))

	var req AddOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	actor := ledger.Actor{ID: p.ID, Email: p.Email, Role: ledger.RoleAdmin}
	entryID, err := h.Recorder.AddOrder(r.Context(), clientID, req.Amount, actor)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.Metrics.IncOrdersRecorded()
	writeJSON(w, http.StatusCreated, AddOrderResponse{EntryID: string(entryID)})
}

// RedeemClient debits the client's full observed balance.
func (h *Handler) RedeemClient(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	clientID := ledger.ClientID(chi.URLParam(r, "id"))

	actor := ledger.Actor{ID: p.ID, Email: p.Email, Role: ledger.RoleAdmin}
	receipt, err := h.Redeemer.Redeem(r.Context(), clientID, actor)
	if err != nil {
		if errors.Is(err, ledger.ErrRedemptionInFlight) {
			h.Metrics.IncRedemptionConflicts()
		}
		h.writeEngineError(w, err)
		return
	}

	h.Metrics.IncRedemptions()
	writeJSON(w, http.StatusOK, RedeemResponse{
		NewTotalPoints:   receipt.NewTotalPoints,
		NewTotalDiscount: receipt.NewTotalDiscount,
	})
}

// GetGroupedLedger returns the admin daily/all-time view. The full
// history is fetched once and composed per the requested scope, so
// "today" and "all" stay consistent within one render cycle.
func (h *Handler) GetGroupedLedger(w http.ResponseWriter, r *http.Request) {
	scope := ledger.Scope(r.URL.Query().Get("scope"))
	switch scope {
	case "":
		scope = ledger.ScopeAll
	case ledger.ScopeToday, ledger.ScopeAll:
	default:
		writeError(w, http.StatusBadRequest, "scope must be today or all", nil)
		return
	}

	snapshot, err := h.Aggregator.ComputeGlobalView(r.Context(), ledger.ScopeAll)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	names, err := h.resolveNames(r, snapshot)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	groups := view.BuildAdminGroupedView(snapshot, scope, names)
	dtos := make([]GroupDTO, len(groups))
	for i, g := range groups {
		dtos[i] = GroupDTO{
			ClientID:         string(g.ClientID),
			DisplayName:      g.DisplayName,
			Entries:          entryDTOs(g.Entries),
			SubtotalPoints:   g.SubtotalPoints,
			SubtotalDiscount: g.SubtotalDiscount,
		}
	}
	writeJSON(w, http.StatusOK, GroupedViewResponse{Scope: string(scope), Groups: dtos})
}

// resolveNames labels every client in the snapshot, fanning lookups out
// over a bounded worker group backed by the session cache.
func (h *Handler) resolveNames(r *http.Request, snapshot ledger.GlobalView) (map[ledger.ClientID]string, error) {
	cache := h.sessionCache(sessionFrom(r.Context()))

	var mu sync.Mutex
	names := make(map[ledger.ClientID]string, len(snapshot.Clients))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(nameResolveWorkers)
	for clientID := range snapshot.Clients {
		clientID := clientID
		g.Go(func() error {
			name, err := h.Directory.Lookup(ctx, cache, clientID)
			if err != nil {
				return err
			}
			mu.Lock()
			names[clientID] = name
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
// Each kind keeps its own status so the console can render an accurate
// message; nothing collapses into a generic label.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation failed", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "client not found", err)
	case errors.Is(err, ledger.ErrRedemptionInFlight):
		writeError(w, http.StatusConflict, "redemption already in flight", err)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, "insufficient balance", err)
	case errors.Is(err, docstore.ErrStore):
		h.Metrics.IncStoreErrors()
		writeError(w, http.StatusBadGateway, "store operation failed", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
