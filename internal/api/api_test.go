package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faucetScope/internal/alert"
	"faucetScope/internal/chain"
	"faucetScope/internal/faucet"
	"faucetScope/internal/model"
	"faucetScope/internal/reconcile"
	"faucetScope/internal/storage"
)

const testWallet = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func newTestServer(store *storage.MemoryStore) *Server {
	return newTestServerWithNetworks(store, nil)
}

func newTestServerWithNetworks(store *storage.MemoryStore, networks []reconcile.Network) *Server {
	oracle := faucet.NewOracle(store, faucet.DefaultCooldown, nil)
	recorder := faucet.NewRecorder(store, faucet.DefaultCooldown, faucet.DefaultGrantAmount, nil)
	reconciler := reconcile.NewReconciler(reconcile.Config{}, store, nil)
	annotator := alert.NewAnnotator(store, alert.DefaultThresholds, nil)
	return NewServer(oracle, recorder, reconciler, networks, annotator, nil)
}

// stubLedger serves a fixed set of transfer logs for handler tests.
type stubLedger struct {
	latest uint64
	logs   []chain.TransferLog
}

func (s *stubLedger) ChainID(context.Context) (uint64, error) { return 97, nil }

func (s *stubLedger) LatestBlockNumber(context.Context) (uint64, error) { return s.latest, nil }

func (s *stubLedger) BlockTimestamp(context.Context, uint64) (uint64, error) {
	return 0, errors.New("header not found")
}

func (s *stubLedger) TransferLogs(_ context.Context, fromBlock, toBlock uint64, _ []common.Address) ([]chain.TransferLog, error) {
	out := make([]chain.TransferLog, 0)
	for _, log := range s.logs {
		if log.BlockNumber >= fromBlock && log.BlockNumber <= toBlock {
			out = append(out, log)
		}
	}
	return out, nil
}

func (s *stubLedger) BalanceOf(context.Context, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		decoded = nil
	}
	return rec, decoded
}

func TestEligibilityEndpoint(t *testing.T) {
	router := newTestServer(storage.NewMemoryStore()).Router()

	rec, body := doJSON(t, router, http.MethodGet, "/api/v1/faucet/"+testWallet+"/eligibility", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["eligible"])
}

func TestEligibilityEndpointInvalidAddress(t *testing.T) {
	router := newTestServer(storage.NewMemoryStore()).Router()

	rec, body := doJSON(t, router, http.MethodGet, "/api/v1/faucet/nope/eligibility", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ADDRESS", body["error"])
}

func TestEligibilityEndpointFailsClosed(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Fail = true
	router := newTestServer(store).Router()

	rec, body := doJSON(t, router, http.MethodGet, "/api/v1/faucet/"+testWallet+"/eligibility", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["eligible"])
	assert.Equal(t, "STORE_UNAVAILABLE", body["error"])
}

func TestClaimEndpointFlow(t *testing.T) {
	router := newTestServer(storage.NewMemoryStore()).Router()
	payload := `{"wallet":"` + testWallet + `"}`

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/faucet/claim", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "10", body["amount"])

	// Second claim inside the window is rejected with the wait returned.
	rec, body = doJSON(t, router, http.MethodPost, "/api/v1/faucet/claim", payload)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NOT_ELIGIBLE", body["error"])
	assert.NotEmpty(t, body["wait"])
}

func TestClaimEndpointStoreUnavailable(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Fail = true
	router := newTestServer(store).Router()

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/faucet/claim", `{"wallet":"`+testWallet+`"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "STORE_UNAVAILABLE", body["error"])
}

func TestClaimEndpointMissingWallet(t *testing.T) {
	router := newTestServer(storage.NewMemoryStore()).Router()

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/faucet/claim", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconcileEndpointWalletCaseInsensitive(t *testing.T) {
	contract := common.HexToAddress("0x1000000000000000000000000000000000000001")
	registry, err := model.NewTokenRegistry(map[string]string{contract.Hex(): "vex"})
	require.NoError(t, err)

	ledger := &stubLedger{
		latest: 100,
		logs: []chain.TransferLog{{
			TxHash:      common.HexToHash("0x01"),
			Contract:    contract,
			From:        common.HexToAddress("0x00000000000000000000000000000000000000ee"),
			To:          common.HexToAddress(testWallet),
			Value:       big.NewInt(1),
			BlockNumber: 50,
		}},
	}
	networks := []reconcile.Network{{
		Name:      "testnet",
		Ledger:    ledger,
		Registry:  registry,
		Contracts: []common.Address{contract},
	}}
	router := newTestServerWithNetworks(storage.NewMemoryStore(), networks).Router()

	// The checksum-cased wallet must match the lowercased transfer rows.
	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/reconcile", `{"wallet":"`+testWallet+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["transfers_merged"])
}

func TestReconcileEndpointInvalidWallet(t *testing.T) {
	router := newTestServer(storage.NewMemoryStore()).Router()

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/reconcile", `{"wallet":"not-an-address"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ADDRESS", body["error"])
}

func TestReconcileEndpointUnknownNetwork(t *testing.T) {
	router := newTestServer(storage.NewMemoryStore()).Router()

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/reconcile", `{"network":"nonesuch"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlertsEndpointFeedAndResolve(t *testing.T) {
	store := storage.NewMemoryStore()
	server := newTestServer(store)
	router := server.Router()

	annotator := alert.NewAnnotator(store, alert.DefaultThresholds, nil)
	created, err := annotator.Evaluate(context.Background(), model.MetricsSample{ChainID: 97, ActiveValidators: 1})
	require.NoError(t, err)
	require.Len(t, created, 1)

	rec, _ := doJSON(t, router, http.MethodGet, "/api/v1/alerts?chain_id=97", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []model.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)

	resolvePath := "/api/v1/alerts/" + alerts[0].ID.String() + "/resolve"
	rec, body := doJSON(t, router, http.MethodPost, resolvePath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["resolved"])

	// Resolving again is still a success.
	rec, _ = doJSON(t, router, http.MethodPost, resolvePath, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	alerts = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	assert.Empty(t, alerts)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestServer(storage.NewMemoryStore()).Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
