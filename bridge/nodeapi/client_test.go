package nodeapi

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendlt/movecall/internal/account"
	"github.com/opendlt/movecall/internal/crypto/signer"
	"github.com/opendlt/movecall/internal/metrics"
	"github.com/opendlt/movecall/internal/testnode"
	"github.com/opendlt/movecall/types/move"
	"github.com/opendlt/movecall/types/txn"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	config := DefaultClientConfig(endpoint)
	config.PollInterval = 5 * time.Millisecond
	client, err := NewClient(config)
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&ClientConfig{PollInterval: time.Second})
	assert.Error(t, err)

	config := DefaultClientConfig("http://localhost:8080/v1/")
	config.PollInterval = 0
	_, err = NewClient(config)
	assert.Error(t, err)

	client, err := NewClient(DefaultClientConfig("http://localhost:8080/v1/"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1", client.Endpoint())
}

func TestLedgerInfoAndChainIDCache(t *testing.T) {
	node := testnode.New(t, &testnode.Config{ChainID: 27})
	client := newTestClient(t, node.URL())
	ctx := context.Background()

	info, err := client.GetLedgerInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, txn.ChainID(27), info.ChainID)
	assert.Equal(t, "full_node", info.NodeRole)
	assert.Equal(t, uint64(node.Now().Unix()), info.TimestampSecs())

	for i := 0; i < 3; i++ {
		id, err := client.ChainID(ctx)
		require.NoError(t, err)
		assert.Equal(t, txn.ChainID(27), id)
	}
	assert.Equal(t, 1, node.Requests("ledger"))
}

func TestGetAccount(t *testing.T) {
	node := testnode.New(t, nil)
	client := newTestClient(t, node.URL())
	ctx := context.Background()

	pub, _, err := ed25519GenerateForTest()
	require.NoError(t, err)
	addr := node.CreateAccount(pub)
	node.SetSequenceNumber(addr, 12)

	data, err := client.GetAccount(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), data.SequenceNumber)
	assert.Equal(t, addr.StringLong(), data.AuthenticationKey)

	missing := move.Address{0xab}
	_, err = client.GetAccount(ctx, missing)
	assert.True(t, IsNotFound(err))

	seq, err := client.AccountSequenceNumber(ctx, missing)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)
}

func TestServerErrorsAreNetworkErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"node is syncing","error_code":"internal_error"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/v1")
	_, err := client.GetLedgerInfo(context.Background())

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusServiceUnavailable, netErr.StatusCode)
	assert.True(t, netErr.Retryable())
	assert.ErrorContains(t, err, "node is syncing")

	// no retries inside the client
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransportErrorsAreNetworkErrors(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/v1"
	server.Close()

	client := newTestClient(t, endpoint)
	_, err := client.GetLedgerInfo(context.Background())

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
}

func TestAPIErrorWithoutJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway config", http.StatusTeapot)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetLedgerInfo(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTeapot, apiErr.StatusCode)
	assert.Equal(t, "bad gateway config", apiErr.Message)

	var netErr *NetworkError
	assert.False(t, errors.As(err, &netErr))
}

func TestRequestsCarryHeaders(t *testing.T) {
	var userAgent, accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		_ = json.NewEncoder(w).Encode(map[string]any{"chain_id": 4, "ledger_timestamp": "1000000"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetLedgerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "movecall/1.0", userAgent)
	assert.Equal(t, "application/json", accept)
}

func TestRateLimiterThrottlesRequests(t *testing.T) {
	node := testnode.New(t, nil)

	config := DefaultClientConfig(node.URL())
	config.RequestsPerSecond = 20
	client, err := NewClient(config)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 25; i++ {
		_, err := client.GetLedgerInfo(context.Background())
		require.NoError(t, err)
	}
	// a burst of 20 passes immediately, the remaining 5 wait 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestViewResultAccessors(t *testing.T) {
	node := testnode.New(t, nil)
	m := metrics.New()
	config := DefaultClientConfig(node.URL())
	client, err := NewClient(config, WithMetrics(m))
	require.NoError(t, err)
	ctx := context.Background()

	pub, _, err := ed25519GenerateForTest()
	require.NoError(t, err)
	addr := node.CreateAccount(pub)
	node.SetSequenceNumber(addr, 42)

	req, err := NewViewRequest("0x1::account::get_sequence_number", nil, addr)
	require.NoError(t, err)
	result, err := client.View(ctx, req)
	require.NoError(t, err)
	seq, err := result.Uint64(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq)

	req, err = NewViewRequest("0x1::account::exists_at", nil, move.Address{0x77})
	require.NoError(t, err)
	result, err = client.View(ctx, req)
	require.NoError(t, err)
	exists, err := result.Bool(0)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = result.String(3)
	assert.Error(t, err)
	_, err = result.Uint64(0)
	assert.Error(t, err)
}

func TestViewAbortIsAPIError(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.getMessage(t)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "ENO_MESSAGE")
}

func TestNewViewRequest(t *testing.T) {
	req, err := NewViewRequest("0x1::coin::balance", []string{"0x1::aptos_coin::AptosCoin"}, move.AddressOne, move.U64(7), move.Bytes([]byte{1, 2}))
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"function": "0x1::coin::balance",
		"type_arguments": ["0x1::aptos_coin::AptosCoin"],
		"arguments": ["0x0000000000000000000000000000000000000000000000000000000000000001", "7", "0x0102"]
	}`, string(data))

	_, err = NewViewRequest("0x1::coin::bal-ance", nil)
	var encErr *move.EncodingError
	assert.ErrorAs(t, err, &encErr)

	_, err = NewViewRequest("0x1::coin::balance", []string{"vector<"})
	assert.ErrorAs(t, err, &encErr)
}

func ed25519GenerateForTest() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

func TestSubmitServerErrorIsNotRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"chain_id":4,"epoch":"1","ledger_version":"1","oldest_ledger_version":"0","ledger_timestamp":"1700000000000000","block_height":"1","node_role":"full_node"}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream unavailable","error_code":"internal_error"}`))
	}))
	defer server.Close()

	pub, priv, err := ed25519GenerateForTest()
	require.NoError(t, err)
	s, err := signer.NewKeySigner(priv, "test")
	require.NoError(t, err)
	acct, err := account.New(s, 0)
	require.NoError(t, err)
	require.Equal(t, pub, acct.PublicKey())

	b, err := NewBuilder(nil)
	require.NoError(t, err)
	tx, err := b.BuildCall(messageCall(t, acct.Address(), "x"), acct, 4)
	require.NoError(t, err)

	client := newTestClient(t, server.URL+"/v1")
	outcome, err := client.Submit(context.Background(), tx)
	assert.Nil(t, outcome)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusBadGateway, netErr.StatusCode)

	var rejected *SubmissionRejectedError
	assert.False(t, errors.As(err, &rejected))
}

func TestWaitExpiresWhenLedgerReachesExpiration(t *testing.T) {
	const expiration = 1_700_000_060

	var ledgerCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/v1/transactions/by_hash/") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Transaction not found","error_code":"transaction_not_found"}`))
			return
		}
		ledgerCalls.Add(1)
		_, _ = w.Write([]byte(`{"chain_id":4,"epoch":"1","ledger_version":"9","oldest_ledger_version":"0","ledger_timestamp":"1700000060000000","block_height":"9","node_role":"full_node"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/v1")
	outcome, err := client.WaitForTransaction(context.Background(), &Outcome{
		Hash:        "0x" + strings.Repeat("ab", 32),
		Status:      StatusSubmitted,
		Accepted:    true,
		Expiration:  expiration,
		SubmittedAt: time.Now(),
	})

	var expired *ExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, uint64(expiration), expired.LedgerTimestamp)
	assert.Equal(t, StatusExpired, outcome.Status)
	assert.Equal(t, int32(1), ledgerCalls.Load())
}
