package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadsa/loyalty-engine/api"
	"github.com/nadsa/loyalty-engine/directory"
	"github.com/nadsa/loyalty-engine/docstore"
	"github.com/nadsa/loyalty-engine/docstore/memory"
	"github.com/nadsa/loyalty-engine/identity"
	"github.com/nadsa/loyalty-engine/ledger"
	"github.com/nadsa/loyalty-engine/metrics"
	"github.com/nadsa/loyalty-engine/view"
)

const (
	testAdminEmail = "admin@admin.fr"
	testSecret     = "test-secret"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	store  docstore.Store
	tokens *api.TokenService
	router http.Handler
}

var sharedMetrics = metrics.New() // promauto registers globally; one set per test binary

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	entries := ledger.New(store)
	dir := directory.New(store)
	recorder := ledger.NewRecorder(entries, ledger.NewLinearPolicy(ledger.DefaultRate)).WithClients(dir)
	aggregator := ledger.NewAggregator(entries)
	redeemer := ledger.NewRedeemer(entries, aggregator, dir)

	handler := api.NewHandler(entries, recorder, aggregator, redeemer, dir, sharedMetrics)
	tokens := api.NewTokenService(testSecret)
	return &fixture{
		store:  store,
		tokens: tokens,
		router: api.NewRouter(handler, tokens, testAdminEmail),
	}
}

func (f *fixture) seedClient(t *testing.T, id, name, email string) {
	t.Helper()
	_, err := f.store.Insert(context.Background(), docstore.CollectionClients, directory.Client{
		ID:           ledger.ClientID(id),
		DisplayName:  name,
		Region:       "Oran",
		ContactEmail: email,
	})
	require.NoError(t, err)
}

func (f *fixture) token(t *testing.T, p identity.Principal) string {
	t.Helper()
	tok, err := f.tokens.Generate(p, "session-"+p.ID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) adminToken(t *testing.T) string {
	return f.token(t, identity.Principal{ID: "admin", Email: testAdminEmail, DisplayName: "Admin"})
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// =============================================================================
// AUTH TESTS
// =============================================================================

func TestAPI_MissingTokenRejected(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_NonAdminCannotReachAdminRoutes(t *testing.T) {
	f := newFixture(t)
	clientTok := f.token(t, identity.Principal{ID: "c-1", Email: "c1@example.com"})

	rec := f.do(t, http.MethodGet, "/api/admin/ledger", clientTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// SELF-SERVICE TESTS
// =============================================================================

func TestAPI_SelfServiceOrderAndView(t *testing.T) {
	// GIVEN: An authenticated client
	// WHEN: Adding an order of 1500 and reading /api/me
	// THEN: The view shows today=1500, points=15, discount=20

	f := newFixture(t)
	f.seedClient(t, "c-1", "Amine B.", "c1@example.com")
	tok := f.token(t, identity.Principal{ID: "c-1", Email: "c1@example.com", DisplayName: "Amine B."})

	rec := f.do(t, http.MethodPost, "/api/orders", tok, api.AddOrderRequest{Amount: "1500"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[api.AddOrderResponse](t, rec)
	assert.NotEmpty(t, created.EntryID)

	rec = f.do(t, http.MethodGet, "/api/me", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	self := decode[view.SelfView](t, rec)
	assert.Equal(t, int64(1500), self.TodayAmount)
	assert.Equal(t, int64(15), self.TotalPoints)
	assert.Equal(t, int64(20), self.TotalDiscount)
}

func TestAPI_InvalidAmountRejected(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, identity.Principal{ID: "c-1", Email: "c1@example.com"})

	for _, amount := range []string{"", "abc", "-5", "0"} {
		rec := f.do(t, http.MethodPost, "/api/orders", tok, api.AddOrderRequest{Amount: amount})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "amount %q", amount)
	}
}

// =============================================================================
// ADMIN CONSOLE TESTS
// =============================================================================

func TestAPI_AdminAddOrderAndRedeem(t *testing.T) {
	// End to end: admin records a 1500 purchase on behalf of a client,
	// the summary shows {15, 20}, redemption brings it to {0, 0} and the
	// history holds two entries summing to zero.

	f := newFixture(t)
	f.seedClient(t, "c-1", "Amine B.", "c1@example.com")
	admin := f.adminToken(t)

	rec := f.do(t, http.MethodPost, "/api/admin/clients/c-1/orders", admin, api.AddOrderRequest{Amount: "1500"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/admin/clients/c-1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[api.ClientSummaryResponse](t, rec)
	assert.Equal(t, "Amine B.", summary.DisplayName)
	assert.Equal(t, int64(15), summary.Balance.TotalPoints)
	assert.Equal(t, int64(20), summary.Balance.TotalDiscount)

	rec = f.do(t, http.MethodPost, "/api/admin/clients/c-1/redemptions", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	redeemed := decode[api.RedeemResponse](t, rec)
	assert.Equal(t, int64(0), redeemed.NewTotalPoints)
	assert.Equal(t, int64(0), redeemed.NewTotalDiscount)

	rec = f.do(t, http.MethodGet, "/api/admin/clients/c-1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary = decode[api.ClientSummaryResponse](t, rec)
	require.Len(t, summary.Entries, 2)
	var points int64
	for _, e := range summary.Entries {
		points += e.Points
	}
	assert.Equal(t, int64(0), points, "history must sum to zero after redemption")
}

func TestAPI_RedeemWithoutBalance(t *testing.T) {
	f := newFixture(t)
	f.seedClient(t, "c-1", "Amine B.", "c1@example.com")
	admin := f.adminToken(t)

	rec := f.do(t, http.MethodPost, "/api/admin/clients/c-1/redemptions", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAPI_RedeemUnknownClient(t *testing.T) {
	f := newFixture(t)
	admin := f.adminToken(t)

	rec := f.do(t, http.MethodPost, "/api/admin/clients/ghost/redemptions", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_SummaryUnknownClient(t *testing.T) {
	f := newFixture(t)
	admin := f.adminToken(t)

	rec := f.do(t, http.MethodGet, "/api/admin/clients/ghost", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_SearchThresholdAndMatch(t *testing.T) {
	f := newFixture(t)
	f.seedClient(t, "c-1", "Joelle Martin", "jm@example.com")
	f.seedClient(t, "c-2", "Karim S.", "ks@example.com")
	admin := f.adminToken(t)

	rec := f.do(t, http.MethodGet, "/api/admin/clients?term=j", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]directory.Match](t, rec), "single-character terms are a no-op")

	rec = f.do(t, http.MethodGet, "/api/admin/clients?term=jo", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decode[[]directory.Match](t, rec)
	require.Len(t, matches, 1)
	assert.Equal(t, "Joelle Martin", matches[0].DisplayName)
}

func TestAPI_GroupedLedgerScopes(t *testing.T) {
	f := newFixture(t)
	f.seedClient(t, "c-1", "Amine B.", "c1@example.com")
	f.seedClient(t, "c-2", "Nora Z.", "c2@example.com")
	admin := f.adminToken(t)

	for _, id := range []string{"c-1", "c-2"} {
		rec := f.do(t, http.MethodPost, "/api/admin/clients/"+id+"/orders", admin, api.AddOrderRequest{Amount: "1000"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/admin/ledger?scope=all", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grouped := decode[api.GroupedViewResponse](t, rec)
	require.Len(t, grouped.Groups, 2)
	// Deterministic group order, labeled via the directory.
	assert.Equal(t, "Amine B.", grouped.Groups[0].DisplayName)
	assert.Equal(t, "Nora Z.", grouped.Groups[1].DisplayName)

	rec = f.do(t, http.MethodGet, "/api/admin/ledger?scope=today", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	today := decode[api.GroupedViewResponse](t, rec)
	assert.Equal(t, "today", today.Scope)
	assert.Len(t, today.Groups, 2, "orders just placed are today's")

	rec = f.do(t, http.MethodGet, "/api/admin/ledger?scope=sometimes", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
