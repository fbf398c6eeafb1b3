package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newRPCServer answers each JSON-RPC method from the results table; any
// other method gets a method-not-found error.
func newRPCServer(t *testing.T, results map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		response := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if result, ok := results[req.Method]; ok {
			response["result"] = result
		} else {
			response["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			t.Errorf("encode rpc response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func dialTest(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestValidatorCountFromSigners(t *testing.T) {
	server := newRPCServer(t, map[string]any{
		"clique_getSigners": []string{
			"0x0000000000000000000000000000000000000001",
			"0x0000000000000000000000000000000000000002",
			"0x0000000000000000000000000000000000000003",
		},
	})

	count, err := dialTest(t, server.URL).validatorCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestValidatorCountPeerFallback(t *testing.T) {
	server := newRPCServer(t, map[string]any{"net_peerCount": "0x5"})

	count, err := dialTest(t, server.URL).validatorCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

// A node answering neither method is a failed sample, never a zero
// validator reading.
func TestValidatorCountUnavailable(t *testing.T) {
	server := newRPCServer(t, map[string]any{})

	_, err := dialTest(t, server.URL).validatorCount(context.Background())
	require.Error(t, err)
}
