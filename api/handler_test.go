package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aurory-Game/ocil/custody"
	"github.com/Aurory-Game/ocil/custody/memory"
	"github.com/Aurory-Game/ocil/gate"
	"github.com/Aurory-Game/ocil/locker"
)

func newTestApp(t *testing.T) (*fiber.App, *locker.MemoryStore, *memory.Bank) {
	t.Helper()

	store := locker.NewMemoryStore()
	bank := memory.NewBank()
	service := locker.NewService(store, store, bank, bank, nil, nil)

	app := fiber.New()
	NewHandler(service, nil, nil).Register(app)

	return app, store, bank
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}

	return resp, decoded
}

func TestInitConfigEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/v1/config", map[string]any{"admin": "admin-key"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "admin-key", body["admin"])

	resp, body = doJSON(t, app, http.MethodPost, "/v1/config", map[string]any{"admin": "other"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_initialized", body["code"])

	resp, body = doJSON(t, app, http.MethodPost, "/v1/config", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_payload", body["code"])
}

func TestInitLockerEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/v1/lockers", map[string]any{"owner": "alice"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "alice", body["owner"])
	assert.Equal(t, float64(0), body["sequence"])

	resp, body = doJSON(t, app, http.MethodPost, "/v1/lockers", map[string]any{"owner": "alice"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_initialized", body["code"])
}

func TestGetLedgerEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/v1/lockers/nobody", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ledger_not_found", body["code"])
}

func TestDepositEndpoint(t *testing.T) {
	app, _, bank := newTestApp(t)
	bank.Fund(custody.AccountRef{Asset: "gold", Holder: "alice-wallet"}, "alice-wallet", 150)

	resp, _ := doJSON(t, app, http.MethodPost, "/v1/lockers", map[string]any{"owner": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/v1/lockers/alice/deposit", map[string]any{
		"asset":                "gold",
		"amount":               "100",
		"expectedPriorBalance": "0",
		"depositor":            "alice-wallet",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "gold", entry["asset"])
	assert.Equal(t, float64(100), entry["balance"])

	// Stale prior balance is a conflict.
	resp, body = doJSON(t, app, http.MethodPost, "/v1/lockers/alice/deposit", map[string]any{
		"asset":                "gold",
		"amount":               "50",
		"expectedPriorBalance": "0",
		"depositor":            "alice-wallet",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "prior_balance_mismatch", body["code"])
}

func TestDepositEndpointAmountValidation(t *testing.T) {
	app, _, _ := newTestApp(t)

	tests := []struct {
		name   string
		amount string
	}{
		{name: "fractional", amount: "10.5"},
		{name: "negative", amount: "-1"},
		{name: "not a number", amount: "lots"},
		{name: "beyond uint64", amount: "18446744073709551616"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, app, http.MethodPost, "/v1/lockers/alice/deposit", map[string]any{
				"asset":                "gold",
				"amount":               tt.amount,
				"expectedPriorBalance": "0",
				"depositor":            "alice-wallet",
			})
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "invalid_amount", body["code"])
		})
	}
}

func TestWithdrawEndpoint(t *testing.T) {
	app, _, bank := newTestApp(t)
	bank.Fund(custody.AccountRef{Asset: "gold", Holder: "alice-wallet"}, "alice-wallet", 100)

	resp, _ := doJSON(t, app, http.MethodPost, "/v1/lockers", map[string]any{"owner": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/v1/lockers/alice/deposit", map[string]any{
		"asset":                "gold",
		"amount":               "100",
		"expectedPriorBalance": "0",
		"depositor":            "alice-wallet",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/v1/lockers/alice/withdraw", map[string]any{
		"asset":                "gold",
		"amount":               "40",
		"expectedPriorBalance": "100",
		"finalBalance":         "60",
		"principal":            "alice",
		"destination":          map[string]any{"asset": "gold", "holder": "alice-recv"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(60), entries[0].(map[string]any)["balance"])

	// The withdrawn value reached the principal's account.
	dest, ok, err := bank.Lookup(context.Background(), custody.AccountRef{Asset: "gold", Holder: "alice-recv"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(40), dest.Amount)
}

func TestWithdrawEndpointInsufficientFunds(t *testing.T) {
	app, _, bank := newTestApp(t)
	bank.Fund(custody.VaultRef("gold", "alice"), "", 10)

	resp, _ := doJSON(t, app, http.MethodPost, "/v1/lockers", map[string]any{"owner": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/v1/lockers/alice/withdraw", map[string]any{
		"asset":                "gold",
		"amount":               "40",
		"expectedPriorBalance": "0",
		"finalBalance":         "0",
		"principal":            "alice",
		"destination":          map[string]any{"asset": "gold", "holder": "alice-recv"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "insufficient_funds", body["code"])
}

func TestAdvanceSequenceEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/v1/lockers", map[string]any{"owner": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/v1/lockers/alice/sequence", map[string]any{"expectedSequence": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["sequence"])

	resp, body = doJSON(t, app, http.MethodPost, "/v1/lockers/alice/sequence", map[string]any{"expectedSequence": 0})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "sequence_mismatch", body["code"])
}

func TestDepositBatchEndpoint(t *testing.T) {
	app, _, bank := newTestApp(t)
	bank.Fund(custody.AccountRef{Asset: "gold", Holder: "wallet"}, "wallet", 100)
	bank.Fund(custody.AccountRef{Asset: "silver", Holder: "wallet"}, "wallet", 50)

	resp, _ := doJSON(t, app, http.MethodPost, "/v1/lockers", map[string]any{"owner": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	accounts := []map[string]any{
		{"asset": "gold"},
		{"asset": "gold", "holder": "wallet"},
		{"asset": "gold", "holder": "alice"},
		{"asset": "gold"},
		{"asset": "silver"},
		{"asset": "silver", "holder": "wallet"},
		{"asset": "silver", "holder": "alice"},
		{"asset": "silver"},
	}

	resp, body := doJSON(t, app, http.MethodPost, "/v1/lockers/alice/deposit-batch", map[string]any{
		"accounts":              accounts,
		"amounts":               []string{"100", "50"},
		"expectedPriorBalances": []string{"0", "0"},
		"expectedSequence":      0,
		"depositor":             "wallet",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["sequence"])
	assert.Len(t, body["entries"].([]any), 2)

	// Replay trips the sequence guard.
	resp, body = doJSON(t, app, http.MethodPost, "/v1/lockers/alice/deposit-batch", map[string]any{
		"accounts":              accounts,
		"amounts":               []string{"100", "50"},
		"expectedPriorBalances": []string{"0", "0"},
		"expectedSequence":      0,
		"depositor":             "wallet",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "sequence_mismatch", body["code"])
}

func TestDepositBatchEndpointMalformedLayout(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/v1/lockers", map[string]any{"owner": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/v1/lockers/alice/deposit-batch", map[string]any{
		"accounts":              []map[string]any{{"asset": "gold"}},
		"amounts":               []string{"100"},
		"expectedPriorBalances": []string{"0"},
		"expectedSequence":      0,
		"depositor":             "wallet",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "malformed_batch_layout", body["code"])
}

func TestFrozenGateBlocksMutations(t *testing.T) {
	store := locker.NewMemoryStore()
	bank := memory.NewBank()
	service := locker.NewService(store, store, bank, bank, nil, nil)

	require.NoError(t, store.CreateConfig(context.Background(), &locker.Config{Admin: "admin-key"}))
	require.NoError(t, store.SetFrozen(true))

	app := fiber.New()
	NewHandler(service, gate.New(store, nil, 0, nil), nil).Register(app)

	resp, body := doJSON(t, app, http.MethodPost, "/v1/lockers", map[string]any{"owner": "alice"})
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
	assert.Equal(t, "frozen", body["code"])

	// Reads stay available while frozen.
	resp, _ = doJSON(t, app, http.MethodGet, "/v1/lockers/alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
