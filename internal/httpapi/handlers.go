// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/melodies/melodies/internal/auth"
)

const (
	msgMalformedBody   = "Dữ liệu không hợp lệ"
	msgRouteNotFound   = "Route không tồn tại"
	msgNotLoggedIn     = "Chưa đăng nhập"
	msgLoginRequired   = "Vui lòng đăng nhập"
	msgEmailRequired   = "Email là bắt buộc"
	msgAccountKeyGone  = "Thiếu thông tin userId hoặc email"
	msgTooManyRequests = "Quá nhiều yêu cầu. Vui lòng thử lại sau"
)

var (
	registerPolicy = policy{
		route:          "register",
		authStatus:     http.StatusBadRequest,
		internalStatus: http.StatusInternalServerError,
		fallback:       "Đăng ký thất bại",
		overrides:      map[string]string{auth.CodeMissingFields: "Vui lòng điền đầy đủ thông tin bắt buộc"},
	}
	loginPolicy = policy{
		route:          "login",
		authStatus:     http.StatusUnauthorized,
		internalStatus: http.StatusInternalServerError,
		fallback:       "Đăng nhập thất bại",
		overrides:      map[string]string{auth.CodeMissingFields: "Vui lòng nhập email và mật khẩu"},
	}
	checkEmailPolicy = policy{
		route:          "check email",
		authStatus:     http.StatusBadRequest,
		internalStatus: http.StatusInternalServerError,
		fallback:       "Lỗi khi kiểm tra email",
		overrides:      map[string]string{auth.CodeMissingFields: msgEmailRequired},
	}
	mePolicy = policy{
		route:          "get current account",
		authStatus:     http.StatusUnauthorized,
		internalStatus: http.StatusInternalServerError,
		fallback:       "Lỗi khi lấy thông tin người dùng",
	}
	sendOTPPolicy = policy{
		route:          "send otp",
		authStatus:     http.StatusBadRequest,
		internalStatus: http.StatusBadRequest,
		fallback:       "Không thể gửi mã OTP",
		overrides:      map[string]string{auth.CodeMissingFields: msgEmailRequired},
	}
	verifyOTPPolicy = policy{
		route:          "verify otp",
		authStatus:     http.StatusBadRequest,
		internalStatus: http.StatusInternalServerError,
		fallback:       "Xác thực OTP thất bại",
		overrides:      map[string]string{auth.CodeMissingFields: "Email và mã OTP là bắt buộc"},
	}
	resendOTPPolicy = policy{
		route:          "resend otp",
		authStatus:     http.StatusBadRequest,
		internalStatus: http.StatusBadRequest,
		fallback:       "Không thể gửi lại mã OTP",
		overrides:      map[string]string{auth.CodeMissingFields: msgEmailRequired},
	}
	profilePolicy = policy{
		route:          "update profile",
		authStatus:     http.StatusBadRequest,
		internalStatus: http.StatusInternalServerError,
		fallback:       "Không thể cập nhật thông tin",
		overrides:      map[string]string{auth.CodeMissingFields: msgAccountKeyGone},
	}
	deletePolicy = policy{
		route:          "delete account",
		authStatus:     http.StatusBadRequest,
		internalStatus: http.StatusInternalServerError,
		fallback:       "Không thể xóa tài khoản",
		overrides:      map[string]string{auth.CodeMissingFields: "Vui lòng nhập mật khẩu để xác nhận"},
	}
	changePasswordPolicy = policy{
		route:          "change password",
		authStatus:     http.StatusBadRequest,
		internalStatus: http.StatusInternalServerError,
		fallback:       "Không thể đổi mật khẩu",
		overrides: map[string]string{
			auth.CodeMissingFields:          "Vui lòng nhập đầy đủ thông tin",
			auth.CodePasswordTooShort:       "Mật khẩu mới phải có ít nhất 10 ký tự",
			string(auth.FailureBadPassword): "Mật khẩu cũ không chính xác",
		},
	}
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, "Melodies API is running...", envelope{"version": s.cfg.Version})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, "API is healthy", envelope{"timestamp": s.now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeFail(w, http.StatusNotFound, msgRouteNotFound)
}

type registerRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	Name             string `json:"name"`
	Birthday         string `json:"birthday"`
	Gender           string `json:"gender"`
	Country          string `json:"country"`
	MarketingConsent bool   `json:"marketingConsent"`
	DataSharing      bool   `json:"dataSharing"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}
	if anyBlank(req.Email, req.Password, req.Name, req.Birthday, req.Gender) {
		writeFail(w, http.StatusBadRequest, registerPolicy.message(auth.CodeMissingFields))
		return
	}

	a, err := s.svc.Register(r.Context(), auth.Registration{
		Email:            req.Email,
		Password:         req.Password,
		Name:             req.Name,
		Birthday:         req.Birthday,
		Gender:           req.Gender,
		Country:          req.Country,
		MarketingConsent: req.MarketingConsent,
		DataSharing:      req.DataSharing,
	})
	if err != nil {
		s.writeError(w, r, registerPolicy, err)
		return
	}
	writeOK(w, http.StatusCreated, "Đăng ký thành công", envelope{"user": a.Public()})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}
	if anyBlank(req.Email, req.Password) {
		writeFail(w, http.StatusBadRequest, loginPolicy.message(auth.CodeMissingFields))
		return
	}

	a, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, loginPolicy, err)
		return
	}
	writeOK(w, http.StatusOK, "Đăng nhập thành công", envelope{"user": a.Public()})
}

type emailRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}
	if anyBlank(req.Email) {
		writeFail(w, http.StatusBadRequest, msgEmailRequired)
		return
	}

	exists, err := s.svc.CheckEmailExists(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, checkEmailPolicy, err)
		return
	}
	writeOK(w, http.StatusOK, "", envelope{"exists": exists})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeFail(w, http.StatusUnauthorized, msgNotLoggedIn)
		return
	}

	a, err := s.svc.GetAccount(r.Context(), id)
	if err != nil {
		s.writeError(w, r, mePolicy, err)
		return
	}
	writeOK(w, http.StatusOK, "", envelope{"user": a.Public()})
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}
	if anyBlank(req.Email) {
		writeFail(w, http.StatusBadRequest, msgEmailRequired)
		return
	}

	if err := s.svc.SendOTP(r.Context(), req.Email, req.Name); err != nil {
		s.writeError(w, r, sendOTPPolicy, err)
		return
	}
	writeOK(w, http.StatusOK, "Mã OTP đã được gửi đến email của bạn", nil)
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}
	if anyBlank(req.Email, req.OTP) {
		writeFail(w, http.StatusBadRequest, verifyOTPPolicy.message(auth.CodeMissingFields))
		return
	}

	v, err := s.svc.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		s.writeError(w, r, verifyOTPPolicy, err)
		return
	}
	writeOK(w, http.StatusOK, "Xác thực email thành công", envelope{"email": v.Email})
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}
	if anyBlank(req.Email) {
		writeFail(w, http.StatusBadRequest, msgEmailRequired)
		return
	}

	if err := s.svc.ResendOTP(r.Context(), req.Email); err != nil {
		s.writeError(w, r, resendOTPPolicy, err)
		return
	}
	writeOK(w, http.StatusOK, "Mã OTP mới đã được gửi đến email của bạn", nil)
}

type profileRequest struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	NewEmail string `json:"newEmail"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Birthday string `json:"birthday"`
	Country  string `json:"country"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}
	if anyBlank(req.UserID) && anyBlank(req.Email) {
		writeFail(w, http.StatusBadRequest, msgAccountKeyGone)
		return
	}

	ctx := r.Context()
	id, err := s.svc.ResolveAccountID(ctx, req.UserID, req.Email)
	if err != nil {
		s.writeError(w, r, profilePolicy, err)
		return
	}

	// newEmail when changing address, otherwise the lookup email is reapplied
	newEmail := req.NewEmail
	if newEmail == "" {
		newEmail = req.Email
	}

	a, err := s.svc.UpdateProfile(ctx, id, auth.ProfilePatch{
		Name:     req.Name,
		Email:    newEmail,
		Gender:   req.Gender,
		Birthday: req.Birthday,
		Country:  req.Country,
	})
	if err != nil {
		s.writeError(w, r, profilePolicy, err)
		return
	}
	writeOK(w, http.StatusOK, "Cập nhật thông tin thành công", envelope{"user": a.Public()})
}

type deleteAccountRequest struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}
	if anyBlank(req.UserID) && anyBlank(req.Email) {
		writeFail(w, http.StatusBadRequest, msgAccountKeyGone)
		return
	}
	if req.Password == "" {
		writeFail(w, http.StatusBadRequest, deletePolicy.message(auth.CodeMissingFields))
		return
	}

	ctx := r.Context()
	id, err := s.svc.ResolveAccountID(ctx, req.UserID, req.Email)
	if err != nil {
		s.writeError(w, r, deletePolicy, err)
		return
	}
	if err := s.svc.DeleteAccount(ctx, id, req.Password); err != nil {
		s.writeError(w, r, deletePolicy, err)
		return
	}
	writeOK(w, http.StatusOK, "Tài khoản đã được xóa thành công", nil)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeFail(w, http.StatusUnauthorized, msgLoginRequired)
		return
	}

	var req changePasswordRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeFail(w, http.StatusBadRequest, changePasswordPolicy.message(auth.CodeMissingFields))
		return
	}

	if err := s.svc.ChangePassword(r.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		s.writeError(w, r, changePasswordPolicy, err)
		return
	}
	writeOK(w, http.StatusOK, "Đổi mật khẩu thành công", nil)
}

// identity reads the account id set by the upstream authenticator.
func (s *Server) identity(r *http.Request) (ulid.ULID, bool) {
	raw := strings.TrimSpace(r.Header.Get(s.cfg.IdentityHeader))
	if raw == "" {
		return ulid.ULID{}, false
	}
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, false
	}
	return id, true
}

func (s *Server) decodeOrFail(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decode(w, r, dst); err != nil {
		s.logger.DebugContext(r.Context(), "rejecting request body", "path", r.URL.Path, "error", err)
		writeFail(w, http.StatusBadRequest, msgMalformedBody)
		return false
	}
	return true
}

func anyBlank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
