package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/mintaro/internal/auth"
	"github.com/sudo-init-do/mintaro/internal/escrow"
	"github.com/sudo-init-do/mintaro/internal/messaging"
	"github.com/sudo-init-do/mintaro/internal/metrics"
)

type failingDB struct{}

func (failingDB) Ping(context.Context) error { return errors.New("connection refused") }

type party struct {
	key  *ecdsa.PrivateKey
	addr string
}

func newParty(t *testing.T) party {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return party{key: key, addr: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

type app struct {
	e     *echo.Echo
	admin party
}

func newApp(t *testing.T, db pinger) *app {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := metrics.New()
	hub := messaging.NewHub(logger)
	engine := escrow.NewEngine(escrow.NewLocalLedger(), escrow.WithLogger(logger), escrow.WithObserver(recorder, hub))
	hub.SetEngine(engine)
	issuer := auth.NewIssuer("secret", time.Hour)
	admin := newParty(t)

	return &app{
		admin: admin,
		e: newRouter(deps{
			engine:   engine,
			issuer:   issuer,
			login:    auth.NewHandler(auth.NewChallenges(time.Minute), issuer, []string{admin.addr}, logger),
			hub:      hub,
			recorder: recorder,
			logger:   logger,
			ready:    readyHandler(engine, db),
		}),
	}
}

func (a *app) call(t *testing.T, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

// signIn runs the challenge and login exchange for p and returns its token.
func (a *app) signIn(t *testing.T, p party) string {
	t.Helper()
	rec := a.call(t, "", http.MethodPost, "/auth/challenge", `{"address":"`+p.addr+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ch auth.ChallengeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ch))

	sig, err := crypto.Sign(accounts.TextHash([]byte(ch.Message)), p.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	body, err := json.Marshal(auth.LoginRequest{Address: p.addr, Message: ch.Message, Signature: hexutil.Encode(sig)})
	require.NoError(t, err)
	rec = a.call(t, "", http.MethodPost, "/auth/login", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login auth.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	return login.Token
}

func TestHealth(t *testing.T) {
	a := newApp(t, nil)
	assert.Equal(t, http.StatusOK, a.call(t, "", http.MethodGet, "/health", "").Code)

	rec := a.call(t, "", http.MethodGet, "/", "")
	assert.Contains(t, rec.Body.String(), `"backend":"local"`)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = a.call(t, "", http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestReady_DatabaseDown(t *testing.T) {
	a := newApp(t, failingDB{})
	rec := a.call(t, "", http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db unreachable")
}

func TestEscrowFlowOverHTTP(t *testing.T) {
	a := newApp(t, nil)
	client, freelancer := newParty(t), newParty(t)
	clientTok := a.signIn(t, client)
	freelancerTok := a.signIn(t, freelancer)
	adminTok := a.signIn(t, a.admin)

	rec := a.call(t, clientTok, http.MethodGet, "/auth/me", "")
	assert.JSONEq(t, `{"address":"`+client.addr+`","role":"user"}`, rec.Body.String())

	require.Equal(t, http.StatusCreated, a.call(t, clientTok, http.MethodPost, "/jobs", `{"freelancer":"`+freelancer.addr+`"}`).Code)
	require.Equal(t, http.StatusCreated, a.call(t, clientTok, http.MethodPost, "/jobs/1/milestones", `{"amount":"30"}`).Code)
	require.Equal(t, http.StatusCreated, a.call(t, clientTok, http.MethodPost, "/jobs/1/milestones", `{"amount":"70"}`).Code)
	require.Equal(t, http.StatusOK, a.call(t, clientTok, http.MethodPost, "/jobs/1/milestones/1/approve", "").Code)
	require.Equal(t, http.StatusOK, a.call(t, clientTok, http.MethodPost, "/jobs/1/milestones/1/release", "").Code)

	assert.Equal(t, http.StatusForbidden, a.call(t, freelancerTok, http.MethodPost, "/jobs/1/milestones/2/approve", "").Code)
	assert.Equal(t, http.StatusForbidden, a.call(t, clientTok, http.MethodGet, "/admin/stats", "").Code)

	rec = a.call(t, adminTok, http.MethodGet, "/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"locked_total":"70"`)
	assert.Contains(t, rec.Body.String(), `"balance_total":"30"`)

	rec = a.call(t, freelancerTok, http.MethodPost, "/wallet/withdraw", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"amount":"30"`)

	rec = a.call(t, "", http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `mintaro_escrow_events_total{backend="local",kind="payment_released"} 1`)
	assert.Contains(t, body, `mintaro_escrow_events_total{backend="local",kind="withdrawn"} 1`)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	a := newApp(t, nil)
	for _, path := range []string{"/auth/me", "/wallet/balance", "/jobs/1", "/admin/snapshot"} {
		assert.Equal(t, http.StatusUnauthorized, a.call(t, "", http.MethodGet, path, "").Code, path)
	}
}
