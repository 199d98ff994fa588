package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/learnchain/txwatcher/config"
	"github.com/learnchain/txwatcher/pkg/clients/backend"
)

func TestRegisterTx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/tx/register", r.URL.Path)
		require.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		var request backend.RegisterTxRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		require.Equal(t, "abc", request.TxHash)
		require.Equal(t, backend.TxTypeModuleMint, request.TxType)
		require.Equal(t, "101", request.InstanceID)
		require.Equal(t, "modhash123", request.Metadata["moduleHash"])

		json.NewEncoder(w).Encode(backend.RegisterTxResult{TxHash: "abc", State: "on-chain"})
	}))
	t.Cleanup(server.Close)

	client, err := backend.NewClient(&config.BackendConfig{URL: server.URL, AccessToken: "secret-token"})
	require.NoError(t, err)
	require.True(t, client.IsAuthenticated())

	result, err := client.RegisterTx(context.Background(), &backend.RegisterTxRequest{
		TxHash:     "abc",
		TxType:     backend.TxTypeModuleMint,
		InstanceID: "101",
		Metadata:   map[string]string{"moduleHash": "modhash123"},
	})
	require.NoError(t, err)
	require.Equal(t, "abc", result.TxHash)
	require.Equal(t, "on-chain", result.State)
}

func TestRegisterTxUnauthenticated(t *testing.T) {
	client, err := backend.NewClient(&config.BackendConfig{URL: "http://localhost:9999"})
	require.NoError(t, err)
	require.False(t, client.IsAuthenticated())

	_, err = client.RegisterTx(context.Background(), &backend.RegisterTxRequest{TxHash: "abc"})
	require.ErrorContains(t, err, "not authenticated")
}

func TestRegisterTxBackendRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown module", http.StatusUnprocessableEntity)
	}))
	t.Cleanup(server.Close)

	client, err := backend.NewClient(&config.BackendConfig{URL: server.URL, AccessToken: "secret-token"})
	require.NoError(t, err)

	_, err = client.RegisterTx(context.Background(), &backend.RegisterTxRequest{TxHash: "abc"})
	require.ErrorContains(t, err, "status 422")
}
