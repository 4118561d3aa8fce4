package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/punchamoorthee/bucksops/internal/domain"
	"github.com/punchamoorthee/bucksops/internal/service"
	"github.com/punchamoorthee/bucksops/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	m := store.NewMemory()
	logger := zap.NewNop()
	auth := service.NewAuth(m, "test-secret", time.Hour, decimal.NewFromInt(1000), logger)
	engine := service.NewEngine(m, m, m, logger)
	handler := NewHandler(engine, auth, logger)
	srv := httptest.NewServer(NewRouter(handler, auth, logger))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, payload interface{}) (*http.Response, []byte) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

// registerAndLogin creates a user through the API and returns its token.
func registerAndLogin(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "hunter2"}
	resp, _ := doJSON(t, "POST", srv.URL+"/api/v1/register", "", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, "POST", srv.URL+"/api/v1/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &loginResp))
	require.NotEmpty(t, loginResp.Token)
	return loginResp.Token
}

func TestRegisterAndLoginFlow(t *testing.T) {
	srv := newTestServer(t)

	creds := map[string]string{"username": "alice", "password": "hunter2"}
	resp, body := doJSON(t, "POST", srv.URL+"/api/v1/register", "", creds)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var regResp struct {
		UserID    int64  `json:"user_id"`
		AccountID int64  `json:"account_id"`
		Username  string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(body, &regResp))
	assert.Equal(t, "alice", regResp.Username)
	assert.NotZero(t, regResp.AccountID)

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", srv.URL+"/api/v1/register", "", creds)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("bad password unauthorized", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", srv.URL+"/api/v1/login", "", map[string]string{"username": "alice", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", srv.URL+"/api/v1/register", "", map[string]string{"username": "x"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, "GET", srv.URL+"/api/v1/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, "GET", srv.URL+"/api/v1/balance", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBalanceAndUsers(t *testing.T) {
	srv := newTestServer(t)
	alice := registerAndLogin(t, srv, "alice")
	registerAndLogin(t, srv, "bob")

	resp, body := doJSON(t, "GET", srv.URL+"/api/v1/balance", alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var balResp struct {
		Balance decimal.Decimal `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(body, &balResp))
	assert.True(t, balResp.Balance.Equal(decimal.NewFromInt(1000)))

	resp, body = doJSON(t, "GET", srv.URL+"/api/v1/users", alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var users []domain.User
	require.NoError(t, json.Unmarshal(body, &users))
	assert.Len(t, users, 2)
}

func TestSendEndpoint(t *testing.T) {
	srv := newTestServer(t)
	alice := registerAndLogin(t, srv, "alice")
	registerAndLogin(t, srv, "bob") // bob is user 2

	t.Run("successful send", func(t *testing.T) {
		resp, body := doJSON(t, "POST", srv.URL+"/api/v1/transfers/send", alice,
			map[string]interface{}{"receiver_id": 2, "amount": "250.50"})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var transfer domain.Transfer
		require.NoError(t, json.Unmarshal(body, &transfer))
		assert.Equal(t, domain.TransferStatusApproved, transfer.Status)
		assert.Equal(t, domain.TransferTypeSend, transfer.Type)
	})

	tests := []struct {
		name       string
		payload    map[string]interface{}
		wantStatus int
	}{
		{"insufficient funds", map[string]interface{}{"receiver_id": 2, "amount": "99999"}, http.StatusUnprocessableEntity},
		{"zero amount", map[string]interface{}{"receiver_id": 2, "amount": "0"}, http.StatusUnprocessableEntity},
		{"self transfer", map[string]interface{}{"receiver_id": 1, "amount": "10"}, http.StatusUnprocessableEntity},
		{"unknown receiver", map[string]interface{}{"receiver_id": 404, "amount": "10"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, "POST", srv.URL+"/api/v1/transfers/send", alice, tt.payload)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestRequestAndResolveEndpoints(t *testing.T) {
	srv := newTestServer(t)
	alice := registerAndLogin(t, srv, "alice") // user 1
	bob := registerAndLogin(t, srv, "bob")     // user 2

	// bob asks alice for 30
	resp, body := doJSON(t, "POST", srv.URL+"/api/v1/transfers/request", bob,
		map[string]interface{}{"payer_id": 1, "amount": "30"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var transfer domain.Transfer
	require.NoError(t, json.Unmarshal(body, &transfer))
	assert.Equal(t, domain.TransferStatusPending, transfer.Status)

	resolveURL := fmt.Sprintf("%s/api/v1/transfers/%d/resolve", srv.URL, transfer.ID)

	t.Run("requester cannot resolve", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", resolveURL, bob, map[string]string{"decision": "approve"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("pending shows up for payer only", func(t *testing.T) {
		resp, body := doJSON(t, "GET", srv.URL+"/api/v1/transfers/pending", alice, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var pending []domain.Transfer
		require.NoError(t, json.Unmarshal(body, &pending))
		assert.Len(t, pending, 1)

		resp, body = doJSON(t, "GET", srv.URL+"/api/v1/transfers/pending", bob, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &pending))
		assert.Empty(t, pending)
	})

	t.Run("invalid decision rejected", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", resolveURL, alice, map[string]string{"decision": "maybe"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("payer approves, funds move", func(t *testing.T) {
		resp, body := doJSON(t, "POST", resolveURL, alice, map[string]string{"decision": "approve"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var resolved domain.Transfer
		require.NoError(t, json.Unmarshal(body, &resolved))
		assert.Equal(t, domain.TransferStatusApproved, resolved.Status)

		resp, body = doJSON(t, "GET", srv.URL+"/api/v1/balance", alice, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var balResp struct {
			Balance decimal.Decimal `json:"balance"`
		}
		require.NoError(t, json.Unmarshal(body, &balResp))
		assert.True(t, balResp.Balance.Equal(decimal.NewFromInt(970)))
	})

	t.Run("second resolve conflicts", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", resolveURL, alice, map[string]string{"decision": "reject"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestHistoryAndDetailEndpoints(t *testing.T) {
	srv := newTestServer(t)
	alice := registerAndLogin(t, srv, "alice") // user 1
	bob := registerAndLogin(t, srv, "bob")     // user 2
	carol := registerAndLogin(t, srv, "carol") // user 3

	resp, body := doJSON(t, "POST", srv.URL+"/api/v1/transfers/send", alice,
		map[string]interface{}{"receiver_id": 2, "amount": "10"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var transfer domain.Transfer
	require.NoError(t, json.Unmarshal(body, &transfer))

	t.Run("participants see history", func(t *testing.T) {
		resp, body := doJSON(t, "GET", srv.URL+"/api/v1/transfers", bob, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var history []domain.Transfer
		require.NoError(t, json.Unmarshal(body, &history))
		assert.Len(t, history, 1)
	})

	t.Run("non-participant history empty", func(t *testing.T) {
		resp, body := doJSON(t, "GET", srv.URL+"/api/v1/transfers", carol, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var history []domain.Transfer
		require.NoError(t, json.Unmarshal(body, &history))
		assert.Empty(t, history)
	})

	detailURL := fmt.Sprintf("%s/api/v1/transfers/%d", srv.URL, transfer.ID)

	t.Run("participant reads detail", func(t *testing.T) {
		resp, body := doJSON(t, "GET", detailURL, bob, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var got domain.Transfer
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, transfer.ID, got.ID)
	})

	t.Run("non-participant gets forbidden", func(t *testing.T) {
		resp, _ := doJSON(t, "GET", detailURL, carol, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("unknown transfer", func(t *testing.T) {
		resp, _ := doJSON(t, "GET", srv.URL+"/api/v1/transfers/9999", alice, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, "GET", srv.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}
