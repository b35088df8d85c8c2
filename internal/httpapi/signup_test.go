// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package httpapi_test

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/melodies/melodies/internal/httpapi"
)

var _ = Describe("Account API", func() {
	var env *apiEnv

	registration := map[string]any{
		"email":    "Linh@Test.com",
		"password": "correct-horse-1",
		"name":     "Linh",
		"birthday": "2000-01-01",
		"gender":   "female",
		"country":  "VN",
	}

	BeforeEach(func() {
		env = newAPIEnv()
	})

	AfterEach(func() {
		env.close()
	})

	register := func() string {
		GinkgoHelper()
		status, body := env.call(http.MethodPost, "/api/auth/register", registration)
		Expect(status).To(Equal(http.StatusCreated))
		user, ok := body["user"].(map[string]any)
		Expect(ok).To(BeTrue())
		id, ok := user["id"].(string)
		Expect(ok).To(BeTrue())
		return id
	}

	Describe("email verification", func() {
		It("sends a code and accepts it once", func() {
			status, body := env.call(http.MethodPost, "/api/auth/send-otp", map[string]any{"email": "linh@test.com", "name": "Linh"})
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["success"]).To(BeTrue())

			msg, ok := env.mail.Last("linh@test.com")
			Expect(ok).To(BeTrue())
			Expect(msg.HTML).To(ContainSubstring("483920"))

			status, body = env.call(http.MethodPost, "/api/auth/verify-otp", map[string]any{"email": "LINH@test.com", "otp": "483920"})
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["email"]).To(Equal("linh@test.com"))

			status, body = env.call(http.MethodPost, "/api/auth/verify-otp", map[string]any{"email": "linh@test.com", "otp": "483920"})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body["message"]).To(Equal("Vui lòng yêu cầu gửi mã OTP mới"))
		})

		It("keeps the code after a wrong guess", func() {
			env.call(http.MethodPost, "/api/auth/send-otp", map[string]any{"email": "linh@test.com"})

			status, body := env.call(http.MethodPost, "/api/auth/verify-otp", map[string]any{"email": "linh@test.com", "otp": "000000"})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body["message"]).To(Equal("Mã OTP không chính xác"))

			status, _ = env.call(http.MethodPost, "/api/auth/verify-otp", map[string]any{"email": "linh@test.com", "otp": "483920"})
			Expect(status).To(Equal(http.StatusOK))
		})

		It("rejects an expired code", func() {
			env.call(http.MethodPost, "/api/auth/send-otp", map[string]any{"email": "linh@test.com"})
			env.clock.Advance(10 * time.Minute)

			status, body := env.call(http.MethodPost, "/api/auth/verify-otp", map[string]any{"email": "linh@test.com", "otp": "483920"})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body["message"]).To(Equal("Mã OTP đã hết hạn. Vui lòng yêu cầu mã mới"))
		})

		It("refuses to send a code to a registered address", func() {
			register()

			status, body := env.call(http.MethodPost, "/api/auth/send-otp", map[string]any{"email": "linh@test.com"})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body["message"]).To(Equal("Email đã được sử dụng"))
		})
	})

	Describe("registration and login", func() {
		It("registers, greets, and logs in", func() {
			id := register()
			Expect(id).NotTo(BeEmpty())

			welcome, ok := env.mail.Last("linh@test.com")
			Expect(ok).To(BeTrue())
			Expect(welcome.HTML).To(ContainSubstring("https://app.melodies.test/login"))

			status, body := env.call(http.MethodPost, "/api/auth/check-email", map[string]any{"email": "LINH@TEST.COM"})
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["exists"]).To(BeTrue())

			status, body = env.call(http.MethodPost, "/api/auth/login", map[string]any{"email": "linh@test.com", "password": "correct-horse-1"})
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["message"]).To(Equal("Đăng nhập thành công"))
			user, ok := body["user"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(user).To(HaveKey("lastLogin"))
			Expect(user).NotTo(HaveKey("passwordHash"))
		})

		It("rejects a duplicate registration", func() {
			register()
			status, body := env.call(http.MethodPost, "/api/auth/register", registration)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body["message"]).To(Equal("Email đã được sử dụng"))
		})

		It("distinguishes unknown emails from wrong passwords", func() {
			register()

			status, body := env.call(http.MethodPost, "/api/auth/login", map[string]any{"email": "ghost@test.com", "password": "whatever-1"})
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["message"]).To(Equal("Email không tồn tại"))

			status, body = env.call(http.MethodPost, "/api/auth/login", map[string]any{"email": "linh@test.com", "password": "wrong-pass-1"})
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["message"]).To(Equal("Mật khẩu không chính xác"))
		})
	})

	Describe("account management", func() {
		var id string

		BeforeEach(func() {
			id = register()
		})

		It("returns the current account for the identity header", func() {
			status, body := env.call(http.MethodGet, "/api/auth/me", nil, httpapi.DefaultIdentityHeader, id)
			Expect(status).To(Equal(http.StatusOK))
			user, ok := body["user"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(user["email"]).To(Equal("linh@test.com"))
		})

		It("updates the profile and moves the email", func() {
			status, body := env.call(http.MethodPut, "/api/auth/profile", map[string]any{
				"email":    "linh@test.com",
				"newEmail": "linh.new@test.com",
				"name":     "Linh Nguyen",
			})
			Expect(status).To(Equal(http.StatusOK))
			user, ok := body["user"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(user["email"]).To(Equal("linh.new@test.com"))
			Expect(user["name"]).To(Equal("Linh Nguyen"))

			status, _ = env.call(http.MethodPost, "/api/auth/login", map[string]any{"email": "linh.new@test.com", "password": "correct-horse-1"})
			Expect(status).To(Equal(http.StatusOK))
		})

		It("changes the password", func() {
			status, body := env.call(http.MethodPut, "/api/auth/change-password",
				map[string]any{"oldPassword": "nope-nope-1", "newPassword": "brand-new-pass"},
				httpapi.DefaultIdentityHeader, id)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body["message"]).To(Equal("Mật khẩu cũ không chính xác"))

			status, _ = env.call(http.MethodPut, "/api/auth/change-password",
				map[string]any{"oldPassword": "correct-horse-1", "newPassword": "brand-new-pass"},
				httpapi.DefaultIdentityHeader, id)
			Expect(status).To(Equal(http.StatusOK))

			status, _ = env.call(http.MethodPost, "/api/auth/login", map[string]any{"email": "linh@test.com", "password": "brand-new-pass"})
			Expect(status).To(Equal(http.StatusOK))
		})

		It("deletes the account after confirming the password", func() {
			status, _ := env.call(http.MethodDelete, "/api/auth/account", map[string]any{"userId": id, "password": "wrong-pass-1"})
			Expect(status).To(Equal(http.StatusBadRequest))

			status, _ = env.call(http.MethodDelete, "/api/auth/account", map[string]any{"userId": id, "password": "correct-horse-1"})
			Expect(status).To(Equal(http.StatusOK))

			status, body := env.call(http.MethodGet, "/api/auth/me", nil, httpapi.DefaultIdentityHeader, id)
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(body["message"]).To(Equal("Không tìm thấy người dùng"))
		})
	})
})
