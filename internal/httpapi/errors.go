// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/melodies/melodies/internal/auth"
	"github.com/melodies/melodies/pkg/errutil"
)

// Client-facing messages by error code.
var messages = map[string]string{
	auth.CodePasswordTooShort:        "Mật khẩu phải có ít nhất 10 ký tự",
	auth.CodeInvalidEmail:            "Email không hợp lệ",
	auth.CodeInvalidGender:           "Giới tính không hợp lệ",
	auth.CodeEmailTaken:              "Email đã được sử dụng",
	auth.CodeAccountNotFound:         "Không tìm thấy người dùng",
	string(auth.FailureUnknownEmail): "Email không tồn tại",
	string(auth.FailureBadPassword):  "Mật khẩu không chính xác",
	string(auth.FailureNoPendingOTP): "Vui lòng yêu cầu gửi mã OTP mới",
	string(auth.FailureExpiredOTP):   "Mã OTP đã hết hạn. Vui lòng yêu cầu mã mới",
	string(auth.FailureWrongOTP):     "Mã OTP không chính xác",
	auth.CodeNotificationFailed:      "Không thể gửi email xác thực",
}

// policy is how a route reports coordinator errors.
type policy struct {
	route string
	// authStatus is used for ErrAuthentication.
	authStatus int
	// internalStatus is used for ErrInternal.
	internalStatus int
	// fallback is the message when no code-specific one applies.
	fallback string
	// overrides replace messages for this route only.
	overrides map[string]string
}

func (p policy) message(code string) string {
	if msg, ok := p.overrides[code]; ok {
		return msg
	}
	if msg, ok := messages[code]; ok {
		return msg
	}
	return p.fallback
}

// writeError maps a coordinator error to a status and message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, p policy, err error) {
	code := errutil.Code(err)

	var status int
	switch {
	case errors.Is(err, auth.ErrValidation), errors.Is(err, auth.ErrConflict):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrAuthentication):
		status = p.authStatus
	case errors.Is(err, auth.ErrInternal):
		status = p.internalStatus
		errutil.LogErrorContext(r.Context(), s.logger, p.route+" failed", err)
	default:
		status = http.StatusInternalServerError
		code = ""
		errutil.LogErrorContext(r.Context(), s.logger, p.route+" failed", err)
	}

	writeFail(w, status, p.message(code))
}
