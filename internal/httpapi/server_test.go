// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodies/melodies/internal/account"
	"github.com/melodies/melodies/internal/auth"
)

var testNow = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

// stubService answers every call with the configured function, or panics.
type stubService struct {
	register       func(auth.Registration) (*account.Account, error)
	login          func(email, password string) (*account.Account, error)
	checkEmail     func(email string) (bool, error)
	getAccount     func(id ulid.ULID) (*account.Account, error)
	sendOTP        func(email, name string) error
	verifyOTP      func(email, code string) (auth.Verified, error)
	resendOTP      func(email string) error
	updateProfile  func(id ulid.ULID, p auth.ProfilePatch) (*account.Account, error)
	resolve        func(rawID, email string) (ulid.ULID, error)
	deleteAccount  func(id ulid.ULID, password string) error
	changePassword func(id ulid.ULID, oldPassword, newPassword string) error
}

func (s *stubService) Register(_ context.Context, r auth.Registration) (*account.Account, error) {
	return s.register(r)
}

func (s *stubService) Login(_ context.Context, email, password string) (*account.Account, error) {
	return s.login(email, password)
}

func (s *stubService) CheckEmailExists(_ context.Context, email string) (bool, error) {
	return s.checkEmail(email)
}

func (s *stubService) GetAccount(_ context.Context, id ulid.ULID) (*account.Account, error) {
	return s.getAccount(id)
}

func (s *stubService) SendOTP(_ context.Context, email, name string) error {
	return s.sendOTP(email, name)
}

func (s *stubService) VerifyOTP(_ context.Context, email, code string) (auth.Verified, error) {
	return s.verifyOTP(email, code)
}

func (s *stubService) ResendOTP(_ context.Context, email string) error {
	return s.resendOTP(email)
}

func (s *stubService) UpdateProfile(_ context.Context, id ulid.ULID, p auth.ProfilePatch) (*account.Account, error) {
	return s.updateProfile(id, p)
}

func (s *stubService) ResolveAccountID(_ context.Context, rawID, email string) (ulid.ULID, error) {
	return s.resolve(rawID, email)
}

func (s *stubService) DeleteAccount(_ context.Context, id ulid.ULID, password string) error {
	return s.deleteAccount(id, password)
}

func (s *stubService) ChangePassword(_ context.Context, id ulid.ULID, oldPassword, newPassword string) error {
	return s.changePassword(id, oldPassword, newPassword)
}

func testAccount() *account.Account {
	return &account.Account{
		ID:              ulid.Make(),
		Email:           "linh@test.com",
		PasswordHash:    "$argon2id$secret",
		Name:            "Linh",
		Birthday:        "2000-01-01",
		Gender:          "female",
		IsActive:        true,
		IsEmailVerified: true,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
}

type testServer struct {
	srv     *Server
	handler http.Handler
	logs    *bytes.Buffer
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T, svc AccountService, mutate ...func(*Config)) *testServer {
	t.Helper()
	cfg := Config{Version: "1.0.0"}
	for _, m := range mutate {
		m(&cfg)
	}
	logs := &bytes.Buffer{}
	reg := prometheus.NewRegistry()
	srv, err := NewServer(cfg, svc,
		WithLogger(slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		WithRegistry(reg),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, handler: srv.Handler(), logs: logs, reg: reg}
}

type response struct {
	status int
	header http.Header
	body   map[string]any
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	out := response{status: rec.Code, header: rec.Header()}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out.body), "body: %s", rec.Body.String())
	return out
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(Config{}, nil)
	require.Error(t, err)
}

func TestServer_RootAndHealth(t *testing.T) {
	ts := newTestServer(t, &stubService{})

	res := ts.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.body["success"])
	assert.Equal(t, "Melodies API is running...", res.body["message"])
	assert.Equal(t, "1.0.0", res.body["version"])

	res = ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "API is healthy", res.body["message"])
	assert.Equal(t, "2026-06-01T08:00:00Z", res.body["timestamp"])
}

func TestServer_UnknownRoute(t *testing.T) {
	ts := newTestServer(t, &stubService{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/nope"},
		{http.MethodGet, "/api/auth/register"},
		{http.MethodPost, "/"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			res := ts.do(t, tc.method, tc.path, nil)
			assert.Equal(t, http.StatusNotFound, res.status)
			assert.Equal(t, false, res.body["success"])
			assert.Equal(t, "Route không tồn tại", res.body["message"])
		})
	}
}

func TestServer_MalformedBody(t *testing.T) {
	ts := newTestServer(t, &stubService{})

	res := ts.do(t, http.MethodPost, "/api/auth/login", "{not json")
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Dữ liệu không hợp lệ", res.body["message"])

	res = ts.do(t, http.MethodPost, "/api/auth/login", `{"email": 42}`)
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestServer_MissingFieldMessages(t *testing.T) {
	ts := newTestServer(t, &stubService{})
	id := ulid.Make().String()

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		headers []string
		message string
	}{
		{"register", http.MethodPost, "/api/auth/register", map[string]any{"email": "a@test.com"}, nil, "Vui lòng điền đầy đủ thông tin bắt buộc"},
		{"login", http.MethodPost, "/api/auth/login", map[string]any{"email": "a@test.com"}, nil, "Vui lòng nhập email và mật khẩu"},
		{"check email", http.MethodPost, "/api/auth/check-email", nil, nil, "Email là bắt buộc"},
		{"send otp", http.MethodPost, "/api/auth/send-otp", map[string]any{"email": "  "}, nil, "Email là bắt buộc"},
		{"verify otp", http.MethodPost, "/api/auth/verify-otp", map[string]any{"email": "a@test.com"}, nil, "Email và mã OTP là bắt buộc"},
		{"resend otp", http.MethodPost, "/api/auth/resend-otp", map[string]any{}, nil, "Email là bắt buộc"},
		{"profile", http.MethodPut, "/api/auth/profile", map[string]any{"name": "X"}, nil, "Thiếu thông tin userId hoặc email"},
		{"delete without key", http.MethodDelete, "/api/auth/account", map[string]any{"password": "x"}, nil, "Thiếu thông tin userId hoặc email"},
		{"delete without password", http.MethodDelete, "/api/auth/account", map[string]any{"email": "a@test.com"}, nil, "Vui lòng nhập mật khẩu để xác nhận"},
		{"change password", http.MethodPut, "/api/auth/change-password", map[string]any{"oldPassword": "x"}, []string{DefaultIdentityHeader, id}, "Vui lòng nhập đầy đủ thông tin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ts.do(t, tt.method, tt.path, tt.body, tt.headers...)
			assert.Equal(t, http.StatusBadRequest, res.status)
			assert.Equal(t, false, res.body["success"])
			assert.Equal(t, tt.message, res.body["message"])
		})
	}
}

func TestServer_Register(t *testing.T) {
	a := testAccount()
	var got auth.Registration
	ts := newTestServer(t, &stubService{register: func(r auth.Registration) (*account.Account, error) {
		got = r
		return a, nil
	}})

	res := ts.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"email": "Linh@Test.com", "password": "longenough1", "name": "Linh",
		"birthday": "2000-01-01", "gender": "female", "country": "VN",
		"marketingConsent": true,
	})

	assert.Equal(t, http.StatusCreated, res.status)
	assert.Equal(t, "Đăng ký thành công", res.body["message"])
	user, ok := res.body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, a.ID.String(), user["id"])
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, fmt.Sprint(res.body), "$argon2id$")

	assert.Equal(t, "Linh@Test.com", got.Email)
	assert.Equal(t, "VN", got.Country)
	assert.True(t, got.MarketingConsent)
	assert.False(t, got.DataSharing)
}

func TestServer_ErrorMapping(t *testing.T) {
	validation := oops.Code(auth.CodePasswordTooShort).Wrap(auth.ErrValidation)
	conflict := oops.Code(auth.CodeEmailTaken).Wrap(fmt.Errorf("%w: %w", auth.ErrConflict, account.ErrConflict))
	badPassword := oops.Code(string(auth.FailureBadPassword)).Wrap(auth.ErrAuthentication)
	wrongOTP := oops.Code(string(auth.FailureWrongOTP)).Wrap(auth.ErrAuthentication)
	notifyFailed := oops.Code(auth.CodeNotificationFailed).Wrap(auth.ErrInternal)
	storage := oops.Code(auth.CodeStorageFailed).Wrap(auth.ErrInternal)

	tests := []struct {
		name    string
		svc     *stubService
		method  string
		path    string
		body    any
		status  int
		message string
	}{
		{
			name:    "register short password",
			svc:     &stubService{register: func(auth.Registration) (*account.Account, error) { return nil, validation }},
			method:  http.MethodPost,
			path:    "/api/auth/register",
			body:    map[string]any{"email": "a@test.com", "password": "short", "name": "A", "birthday": "2000-01-01", "gender": "male"},
			status:  http.StatusBadRequest,
			message: "Mật khẩu phải có ít nhất 10 ký tự",
		},
		{
			name:    "register duplicate",
			svc:     &stubService{register: func(auth.Registration) (*account.Account, error) { return nil, conflict }},
			method:  http.MethodPost,
			path:    "/api/auth/register",
			body:    map[string]any{"email": "a@test.com", "password": "longenough1", "name": "A", "birthday": "2000-01-01", "gender": "male"},
			status:  http.StatusBadRequest,
			message: "Email đã được sử dụng",
		},
		{
			name:    "login wrong password",
			svc:     &stubService{login: func(string, string) (*account.Account, error) { return nil, badPassword }},
			method:  http.MethodPost,
			path:    "/api/auth/login",
			body:    map[string]any{"email": "a@test.com", "password": "nope"},
			status:  http.StatusUnauthorized,
			message: "Mật khẩu không chính xác",
		},
		{
			name:    "login storage failure",
			svc:     &stubService{login: func(string, string) (*account.Account, error) { return nil, storage }},
			method:  http.MethodPost,
			path:    "/api/auth/login",
			body:    map[string]any{"email": "a@test.com", "password": "nope"},
			status:  http.StatusInternalServerError,
			message: "Đăng nhập thất bại",
		},
		{
			name:    "verify wrong code",
			svc:     &stubService{verifyOTP: func(string, string) (auth.Verified, error) { return auth.Verified{}, wrongOTP }},
			method:  http.MethodPost,
			path:    "/api/auth/verify-otp",
			body:    map[string]any{"email": "a@test.com", "otp": "000000"},
			status:  http.StatusBadRequest,
			message: "Mã OTP không chính xác",
		},
		{
			name:    "send otp mail failure",
			svc:     &stubService{sendOTP: func(string, string) error { return notifyFailed }},
			method:  http.MethodPost,
			path:    "/api/auth/send-otp",
			body:    map[string]any{"email": "a@test.com"},
			status:  http.StatusBadRequest,
			message: "Không thể gửi email xác thực",
		},
		{
			name:    "resend otp storage failure",
			svc:     &stubService{resendOTP: func(string) error { return storage }},
			method:  http.MethodPost,
			path:    "/api/auth/resend-otp",
			body:    map[string]any{"email": "a@test.com"},
			status:  http.StatusBadRequest,
			message: "Không thể gửi lại mã OTP",
		},
		{
			name:    "unclassified error",
			svc:     &stubService{checkEmail: func(string) (bool, error) { return false, errors.New("boom") }},
			method:  http.MethodPost,
			path:    "/api/auth/check-email",
			body:    map[string]any{"email": "a@test.com"},
			status:  http.StatusInternalServerError,
			message: "Lỗi khi kiểm tra email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.svc)
			res := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, res.status)
			assert.Equal(t, false, res.body["success"])
			assert.Equal(t, tt.message, res.body["message"])
		})
	}
}

func TestServer_InternalErrorsAreLogged(t *testing.T) {
	storage := oops.Code(auth.CodeStorageFailed).With("operation", "touch").Wrap(auth.ErrInternal)
	ts := newTestServer(t, &stubService{login: func(string, string) (*account.Account, error) { return nil, storage }})

	ts.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "a@test.com", "password": "x"})

	assert.Contains(t, ts.logs.String(), `"msg":"login failed"`)
	assert.Contains(t, ts.logs.String(), auth.CodeStorageFailed)
}

func TestServer_CheckEmail(t *testing.T) {
	ts := newTestServer(t, &stubService{checkEmail: func(email string) (bool, error) {
		return email == "taken@test.com", nil
	}})

	res := ts.do(t, http.MethodPost, "/api/auth/check-email", map[string]any{"email": "taken@test.com"})
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, map[string]any{"success": true, "exists": true}, res.body)

	res = ts.do(t, http.MethodPost, "/api/auth/check-email", map[string]any{"email": "free@test.com"})
	assert.Equal(t, false, res.body["exists"])
}

func TestServer_Me(t *testing.T) {
	a := testAccount()
	ts := newTestServer(t, &stubService{getAccount: func(id ulid.ULID) (*account.Account, error) {
		if id != a.ID {
			return nil, oops.Code(auth.CodeAccountNotFound).Wrap(auth.ErrNotFound)
		}
		return a, nil
	}})

	res := ts.do(t, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "Chưa đăng nhập", res.body["message"])

	res = ts.do(t, http.MethodGet, "/api/auth/me", nil, DefaultIdentityHeader, "not-a-ulid")
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = ts.do(t, http.MethodGet, "/api/auth/me", nil, DefaultIdentityHeader, ulid.Make().String())
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, "Không tìm thấy người dùng", res.body["message"])

	res = ts.do(t, http.MethodGet, "/api/auth/me", nil, DefaultIdentityHeader, a.ID.String())
	assert.Equal(t, http.StatusOK, res.status)
	user, ok := res.body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "linh@test.com", user["email"])
}

func TestServer_CustomIdentityHeader(t *testing.T) {
	a := testAccount()
	ts := newTestServer(t, &stubService{getAccount: func(ulid.ULID) (*account.Account, error) { return a, nil }},
		func(c *Config) { c.IdentityHeader = "X-User" })

	res := ts.do(t, http.MethodGet, "/api/auth/me", nil, DefaultIdentityHeader, a.ID.String())
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = ts.do(t, http.MethodGet, "/api/auth/me", nil, "X-User", a.ID.String())
	assert.Equal(t, http.StatusOK, res.status)
}

func TestServer_VerifyOTP(t *testing.T) {
	ts := newTestServer(t, &stubService{verifyOTP: func(email, code string) (auth.Verified, error) {
		return auth.Verified{Email: strings.ToLower(email)}, nil
	}})

	res := ts.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]any{"email": "U@Test.com", "otp": "483920"})
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Xác thực email thành công", res.body["message"])
	assert.Equal(t, "u@test.com", res.body["email"])
}

func TestServer_SendAndResendOTP(t *testing.T) {
	var sent []string
	ts := newTestServer(t, &stubService{
		sendOTP:   func(email, name string) error { sent = append(sent, email+"/"+name); return nil },
		resendOTP: func(email string) error { sent = append(sent, email); return nil },
	})

	res := ts.do(t, http.MethodPost, "/api/auth/send-otp", map[string]any{"email": "u@test.com", "name": "Linh"})
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Mã OTP đã được gửi đến email của bạn", res.body["message"])

	res = ts.do(t, http.MethodPost, "/api/auth/resend-otp", map[string]any{"email": "u@test.com"})
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Mã OTP mới đã được gửi đến email của bạn", res.body["message"])

	assert.Equal(t, []string{"u@test.com/Linh", "u@test.com"}, sent)
}

func TestServer_UpdateProfile(t *testing.T) {
	a := testAccount()
	var gotPatch auth.ProfilePatch
	var gotRaw, gotEmail string
	svc := &stubService{
		resolve: func(rawID, email string) (ulid.ULID, error) {
			gotRaw, gotEmail = rawID, email
			return a.ID, nil
		},
		updateProfile: func(id ulid.ULID, p auth.ProfilePatch) (*account.Account, error) {
			gotPatch = p
			a.Name = p.Name
			return a, nil
		},
	}
	ts := newTestServer(t, svc)

	t.Run("new email wins", func(t *testing.T) {
		res := ts.do(t, http.MethodPut, "/api/auth/profile", map[string]any{
			"email": "linh@test.com", "newEmail": "new@test.com", "name": "Linh N",
		})
		assert.Equal(t, http.StatusOK, res.status)
		assert.Equal(t, "Cập nhật thông tin thành công", res.body["message"])
		assert.Equal(t, "", gotRaw)
		assert.Equal(t, "linh@test.com", gotEmail)
		assert.Equal(t, "new@test.com", gotPatch.Email)
		assert.Equal(t, "Linh N", gotPatch.Name)
	})

	t.Run("lookup email reapplied", func(t *testing.T) {
		res := ts.do(t, http.MethodPut, "/api/auth/profile", map[string]any{
			"userId": a.ID.String(), "email": "linh@test.com", "country": "VN",
		})
		assert.Equal(t, http.StatusOK, res.status)
		assert.Equal(t, a.ID.String(), gotRaw)
		assert.Equal(t, "linh@test.com", gotPatch.Email)
		assert.Equal(t, "VN", gotPatch.Country)
	})
}

func TestServer_UpdateProfile_UnknownAccount(t *testing.T) {
	ts := newTestServer(t, &stubService{resolve: func(string, string) (ulid.ULID, error) {
		return ulid.ULID{}, oops.Code(auth.CodeAccountNotFound).Wrap(auth.ErrNotFound)
	}})

	res := ts.do(t, http.MethodPut, "/api/auth/profile", map[string]any{"email": "ghost@test.com", "name": "G"})
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, "Không tìm thấy người dùng", res.body["message"])
}

func TestServer_DeleteAccount(t *testing.T) {
	a := testAccount()
	var deleted ulid.ULID
	ts := newTestServer(t, &stubService{
		resolve: func(string, string) (ulid.ULID, error) { return a.ID, nil },
		deleteAccount: func(id ulid.ULID, password string) error {
			if password != "right-password" {
				return oops.Code(string(auth.FailureBadPassword)).Wrap(auth.ErrAuthentication)
			}
			deleted = id
			return nil
		},
	})

	res := ts.do(t, http.MethodDelete, "/api/auth/account", map[string]any{"email": "linh@test.com", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Mật khẩu không chính xác", res.body["message"])

	res = ts.do(t, http.MethodDelete, "/api/auth/account", map[string]any{"userId": a.ID.String(), "password": "right-password"})
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Tài khoản đã được xóa thành công", res.body["message"])
	assert.Equal(t, a.ID, deleted)
}

func TestServer_ChangePassword(t *testing.T) {
	id := ulid.Make()
	ts := newTestServer(t, &stubService{changePassword: func(_ ulid.ULID, oldPassword, newPassword string) error {
		switch {
		case len(newPassword) < 10:
			return oops.Code(auth.CodePasswordTooShort).Wrap(auth.ErrValidation)
		case oldPassword != "old-password":
			return oops.Code(string(auth.FailureBadPassword)).Wrap(auth.ErrAuthentication)
		}
		return nil
	}})

	res := ts.do(t, http.MethodPut, "/api/auth/change-password", map[string]any{"oldPassword": "a", "newPassword": "b"})
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "Vui lòng đăng nhập", res.body["message"])

	res = ts.do(t, http.MethodPut, "/api/auth/change-password",
		map[string]any{"oldPassword": "old-password", "newPassword": "short"}, DefaultIdentityHeader, id.String())
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Mật khẩu mới phải có ít nhất 10 ký tự", res.body["message"])

	res = ts.do(t, http.MethodPut, "/api/auth/change-password",
		map[string]any{"oldPassword": "guess", "newPassword": "long-enough-1"}, DefaultIdentityHeader, id.String())
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Mật khẩu cũ không chính xác", res.body["message"])

	res = ts.do(t, http.MethodPut, "/api/auth/change-password",
		map[string]any{"oldPassword": "old-password", "newPassword": "long-enough-1"}, DefaultIdentityHeader, id.String())
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Đổi mật khẩu thành công", res.body["message"])
}

func TestServer_RateLimitsCodeRoutes(t *testing.T) {
	ts := newTestServer(t, &stubService{
		sendOTP: func(string, string) error { return nil },
		login: func(string, string) (*account.Account, error) {
			return nil, oops.Code(string(auth.FailureUnknownEmail)).Wrap(auth.ErrAuthentication)
		},
	}, func(c *Config) {
		c.RateLimit = RateLimitConfig{Enabled: true, Burst: 2, Rate: 0.5}
	})

	body := map[string]any{"email": "u@test.com"}
	for range 2 {
		res := ts.do(t, http.MethodPost, "/api/auth/send-otp", body)
		require.Equal(t, http.StatusOK, res.status)
	}
	res := ts.do(t, http.MethodPost, "/api/auth/send-otp", body)
	assert.Equal(t, http.StatusTooManyRequests, res.status)
	assert.Equal(t, "Quá nhiều yêu cầu. Vui lòng thử lại sau", res.body["message"])
	assert.Equal(t, "2", res.header.Get("Retry-After"))

	// other routes are not limited
	for range 3 {
		res = ts.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "u@test.com", "password": "x"})
		assert.Equal(t, http.StatusUnauthorized, res.status)
	}
}

func TestServer_ClientKey(t *testing.T) {
	srv := &Server{}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "10.0.0.7", srv.clientKey(req))

	srv.cfg.TrustForwardedFor = true
	assert.Equal(t, "203.0.113.9", srv.clientKey(req))

	req.Header.Del("X-Forwarded-For")
	req.RemoteAddr = "no-port"
	assert.Equal(t, "no-port", srv.clientKey(req))
}

func TestServer_RequestMetrics(t *testing.T) {
	ts := newTestServer(t, &stubService{})

	ts.do(t, http.MethodGet, "/api/health", nil)
	ts.do(t, http.MethodGet, "/api/health", nil)
	ts.do(t, http.MethodGet, "/missing", nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(ts.srv.requests.WithLabelValues("GET /api/health", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ts.srv.requests.WithLabelValues("unmatched", "404")))
}

func TestServer_CORS(t *testing.T) {
	ts := newTestServer(t, &stubService{}, func(c *Config) {
		c.AllowedOrigins = []string{"https://app.melodies.test"}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://app.melodies.test")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.melodies.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_StartStop(t *testing.T) {
	srv, err := NewServer(Config{Addr: "127.0.0.1:0", Version: "1.0.0"}, &stubService{})
	require.NoError(t, err)

	errCh, err := srv.Start()
	require.NoError(t, err)
	assert.NotEmpty(t, srv.Addr())

	_, err = srv.Start()
	require.Error(t, err, "second start fails")

	resp, err := http.Get("http://" + srv.Addr() + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx), "stop is idempotent")

	_, open := <-errCh
	assert.False(t, open)
}
