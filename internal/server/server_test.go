package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/config"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/testutil"
)

type env struct {
	app      *fiber.App
	db       *gorm.DB
	provider *identity.JWTProvider
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := testutil.NewDB(t)
	provider := identity.NewJWTProvider("test-secret", 60)
	cfg := &config.Config{
		CORSOrigins:     "http://localhost:3000",
		FrontendBaseURL: "http://localhost:3000",
		JWTExpiresMin:   60,
	}
	hub := realtime.NewHub()
	app := New(Deps{
		Config:   cfg,
		DB:       gdb,
		Provider: provider,
		Hub:      hub,
		Notifier: realtime.NopNotifier{},
	}, NewServices(gdb, realtime.NopNotifier{}))
	return &env{app: app, db: gdb, provider: provider}
}

func (e *env) token(t *testing.T, p models.Profile) string {
	t.Helper()
	tok, err := e.provider.Issue(identity.Principal{ID: p.ID, Role: p.Role})
	require.NoError(t, err)
	return tok
}

// do sends a JSON request and decodes the JSON response into out when set.
func (e *env) do(t *testing.T, method, path, token string, body any, out any) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	if out != nil {
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type errorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	e := newEnv(t)

	var created models.Profile
	resp := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"full_name": "Siti Rahma",
		"email":     "Siti@Example.com",
		"password":  "rahasia123",
		"role":      "mitra",
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "siti@example.com", created.Email)
	assert.Equal(t, models.RoleMitra, created.Role)

	var mp models.MitraProfile
	require.NoError(t, e.db.First(&mp, "mitra_id = ?", created.ID).Error)

	var dup errorBody
	resp = e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"full_name": "Siti Lagi",
		"email":     "siti@example.com",
		"password":  "rahasia123",
	}, &dup)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, dup.Fields, "email")

	var wrong errorBody
	resp = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "siti@example.com",
		"password": "salah",
	}, &wrong)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "wrong email or password", wrong.Error)

	resp = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "siti@example.com",
		"password": "rahasia123",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.CookieName {
			session = ck
		}
	}
	require.NotNil(t, session)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(session)
	me, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer me.Body.Close()
	require.Equal(t, http.StatusOK, me.StatusCode)

	var got models.Profile
	require.NoError(t, json.NewDecoder(me.Body).Decode(&got))
	assert.Equal(t, created.ID, got.ID)
}

func TestAuth_RegisterValidation(t *testing.T) {
	e := newEnv(t)

	var body errorBody
	resp := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "123",
		"role":     "admin",
	}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation error", body.Error)
	for _, f := range []string{"full_name", "email", "password", "role"} {
		assert.Contains(t, body.Fields, f)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	user := testutil.CreateProfile(t, e.db, models.RoleUser)
	mitra := testutil.CreateProfile(t, e.db, models.RoleMitra)
	svc := testutil.CreateService(t, e.db, 100000)
	testutil.Credit(t, e.db, user.ID, 200000)
	testutil.Credit(t, e.db, mitra.ID, 25000)

	userTok, mitraTok := e.token(t, user), e.token(t, mitra)

	var o models.Order
	resp := e.do(t, http.MethodPost, "/api/orders", userTok, map[string]any{
		"service_id":     svc.ID,
		"scheduled_date": "2026-11-02",
		"scheduled_time": "09:30",
		"address":        "Jl. Braga 12, Bandung",
		"payment_method": "balance",
	}, &o)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.True(t, decimal.NewFromInt(100000).Equal(o.TotalPrice))

	var bal struct {
		Balance decimal.Decimal `json:"balance"`
	}
	resp = e.do(t, http.MethodGet, "/api/balance/"+user.ID.String(), userTok, nil, &bal)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decimal.NewFromInt(100000).Equal(bal.Balance), "got %s", bal.Balance)

	var board []models.Order
	resp = e.do(t, http.MethodGet, "/api/orders?status=pending", mitraTok, nil, &board)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, board, 1)

	base := "/api/orders/" + o.ID.String()
	for _, step := range []string{"/accept", "/start", "/complete"} {
		resp = e.do(t, http.MethodPost, base+step, mitraTok, nil, &o)
		require.Equal(t, http.StatusOK, resp.StatusCode, step)
	}
	assert.Equal(t, models.OrderStatusCompleted, o.Status)
	assert.NotEmpty(t, o.InvoiceURL)

	resp = e.do(t, http.MethodGet, "/api/balance/"+mitra.ID.String(), mitraTok, nil, &bal)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decimal.NewFromInt(125000).Equal(bal.Balance), "got %s", bal.Balance)

	var again errorBody
	resp = e.do(t, http.MethodPost, base+"/complete", mitraTok, nil, &again)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, again.Error)

	resp = e.do(t, http.MethodPost, base+"/rate", userTok, map[string]any{"rating": 5, "review": "rapi"}, &o)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, o.Rating)
	assert.Equal(t, 5, *o.Rating)
}

func TestAccessControl(t *testing.T) {
	e := newEnv(t)
	user := testutil.CreateProfile(t, e.db, models.RoleUser)
	other := testutil.CreateProfile(t, e.db, models.RoleUser)
	admin := testutil.CreateProfile(t, e.db, models.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/me", "", http.StatusUnauthorized},
		{"forged token", http.MethodGet, "/api/me", "not.a.jwt", http.StatusUnauthorized},
		{"user on admin stats", http.MethodGet, "/api/admin/stats", e.token(t, user), http.StatusForbidden},
		{"admin on admin stats", http.MethodGet, "/api/admin/stats", e.token(t, admin), http.StatusOK},
		{"user reads other balance", http.MethodGet, "/api/balance/" + other.ID.String(), e.token(t, user), http.StatusForbidden},
		{"admin reads any balance", http.MethodGet, "/api/balance/" + other.ID.String(), e.token(t, admin), http.StatusOK},
		{"user lists top-ups", http.MethodGet, "/api/topup-requests", e.token(t, user), http.StatusForbidden},
		{"public services", http.MethodGet, "/api/services", "", http.StatusOK},
		{"public vouchers", http.MethodGet, "/api/vouchers", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(t, tt.method, tt.path, tt.token, nil, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)
	admin := testutil.CreateProfile(t, e.db, models.RoleAdmin)
	tok := e.token(t, admin)

	var body errorBody
	resp := e.do(t, http.MethodGet, "/api/orders/"+uuid.NewString(), tok, nil, &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "order not found", body.Error)

	resp = e.do(t, http.MethodGet, "/api/orders/abc", tok, nil, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid id", body.Error)

	resp = e.do(t, http.MethodPost, "/api/topup-requests/"+uuid.NewString()+"/approve", tok, nil, &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTopUpOverHTTP(t *testing.T) {
	e := newEnv(t)
	user := testutil.CreateProfile(t, e.db, models.RoleUser)
	admin := testutil.CreateProfile(t, e.db, models.RoleAdmin)

	var req models.TopUpRequest
	resp := e.do(t, http.MethodPost, "/api/topup", e.token(t, user), map[string]any{"amount": 75000}, &req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.ApprovalPending, req.Status)

	resp = e.do(t, http.MethodPost, "/api/topup-requests/"+req.ID.String()+"/approve", e.token(t, admin), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []models.BalanceTransaction
	resp = e.do(t, http.MethodGet, "/api/balance-transactions/"+user.ID.String(), e.token(t, user), nil, &history)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, history, 1)
	assert.Equal(t, models.TrxTopUp, history[0].Type)
	assert.True(t, decimal.NewFromInt(75000).Equal(history[0].Amount))
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/metrics", "", nil, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "go_goroutines")
}

func TestChatAndMitraDashboard(t *testing.T) {
	e := newEnv(t)
	user := testutil.CreateProfile(t, e.db, models.RoleUser)
	mitra := testutil.CreateProfile(t, e.db, models.RoleMitra)
	outsider := testutil.CreateProfile(t, e.db, models.RoleUser)
	svc := testutil.CreateService(t, e.db, 50000)
	testutil.Credit(t, e.db, mitra.ID, 10000)

	userTok, mitraTok := e.token(t, user), e.token(t, mitra)

	var o models.Order
	resp := e.do(t, http.MethodPost, "/api/orders", userTok, map[string]any{
		"service_id":     svc.ID,
		"address":        "Jl. Dago 5, Bandung",
		"payment_method": "cash",
	}, &o)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body errorBody
	resp = e.do(t, http.MethodPost, "/api/chat", userTok, map[string]string{
		"order_id": o.ID.String(),
		"message":  "halo",
	}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "no mitra assigned yet")

	resp = e.do(t, http.MethodPost, "/api/orders/"+o.ID.String()+"/accept", mitraTok, nil, &o)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msg models.ChatMessage
	resp = e.do(t, http.MethodPost, "/api/chat", userTok, map[string]string{
		"order_id": o.ID.String(),
		"message":  "Mas, jam 9 bisa?",
	}, &msg)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, mitra.ID, msg.ReceiverID)

	var dash struct {
		ActiveOrders int64 `json:"active_orders"`
		UnreadChats  int64 `json:"unread_chats"`
	}
	resp = e.do(t, http.MethodGet, "/api/mitra/dashboard", mitraTok, nil, &dash)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, dash.ActiveOrders)
	assert.EqualValues(t, 1, dash.UnreadChats)

	var msgs []models.ChatMessage
	resp = e.do(t, http.MethodGet, "/api/chat/"+o.ID.String(), mitraTok, nil, &msgs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, msgs, 1)

	resp = e.do(t, http.MethodGet, "/api/mitra/dashboard", mitraTok, nil, &dash)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, dash.UnreadChats)

	resp = e.do(t, http.MethodGet, "/api/chat/"+o.ID.String(), e.token(t, outsider), nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/mitra/dashboard", userTok, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestProfileUpdate(t *testing.T) {
	e := newEnv(t)
	mitra := testutil.CreateProfile(t, e.db, models.RoleMitra)
	other := testutil.CreateProfile(t, e.db, models.RoleUser)
	admin := testutil.CreateProfile(t, e.db, models.RoleAdmin)
	path := "/api/profile/" + mitra.ID.String()

	var got struct {
		models.Profile
		Mitra *models.MitraProfile `json:"mitra_profile"`
	}
	resp := e.do(t, http.MethodPut, path, e.token(t, mitra), map[string]any{
		"full_name":     "Budi Service AC",
		"description":   "Servis AC rumah dan kantor",
		"service_types": []string{"ac", "cleaning"},
	}, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Budi Service AC", got.FullName)
	require.NotNil(t, got.Mitra)
	assert.Equal(t, "Servis AC rumah dan kantor", got.Mitra.Description)
	assert.JSONEq(t, `["ac","cleaning"]`, string(got.Mitra.ServiceTypes))

	resp = e.do(t, http.MethodPut, path, e.token(t, mitra), map[string]any{"is_verified": true}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodPut, path, e.token(t, other), map[string]any{"full_name": "x"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodPut, path, e.token(t, admin), map[string]any{"is_blocked": true}, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.IsBlocked)
}

func TestProfileGet(t *testing.T) {
	e := newEnv(t)
	mitra := testutil.CreateProfile(t, e.db, models.RoleMitra)
	other := testutil.CreateProfile(t, e.db, models.RoleUser)
	admin := testutil.CreateProfile(t, e.db, models.RoleAdmin)
	path := "/api/profile/" + mitra.ID.String()

	countSubRows := func() int64 {
		var n int64
		require.NoError(t, e.db.Model(&models.MitraProfile{}).Where("mitra_id = ?", mitra.ID).Count(&n).Error)
		return n
	}

	var full map[string]any
	resp := e.do(t, http.MethodGet, path, e.token(t, mitra), nil, &full)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, mitra.Email, full["email"])
	assert.NotContains(t, full, "mitra_profile")
	assert.Zero(t, countSubRows(), "reading a profile does not create rows")

	resp = e.do(t, http.MethodPut, path, e.token(t, mitra), map[string]any{"description": "Servis AC"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var public map[string]any
	resp = e.do(t, http.MethodGet, path, e.token(t, other), nil, &public)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, mitra.ID.String(), public["id"])
	assert.NotContains(t, public, "email")
	assert.NotContains(t, public, "phone")
	assert.NotContains(t, public, "is_blocked")
	require.Contains(t, public, "mitra_profile")
	sub := public["mitra_profile"].(map[string]any)
	assert.Equal(t, "Servis AC", sub["description"])
	assert.NotContains(t, sub, "balance_snapshot")

	resp = e.do(t, http.MethodGet, path, e.token(t, admin), nil, &full)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, mitra.Email, full["email"])
}
