package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smiledesk/clinic-booking/internal/transport/middleware"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var _ = Describe("LoggingMiddleware", func() {
	var (
		logOutput *bytes.Buffer
		handler   http.Handler
	)

	BeforeEach(func() {
		logOutput = &bytes.Buffer{}
		logger := slog.New(slog.NewTextHandler(logOutput, nil))
		handler = middleware.LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok":true}`))
		}))
	})

	It("should log request and response for API calls", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		Expect(logOutput.String()).To(ContainSubstring("incoming request"))
		Expect(logOutput.String()).To(ContainSubstring("/api/v1/appointments/"))
		Expect(logOutput.String()).To(ContainSubstring("response"))
	})

	It("should stay quiet for health probes", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		Expect(logOutput.String()).To(BeEmpty())
	})

	It("should mask credential fields in the request body", func() {
		body := strings.NewReader(`{"email":"alice@mail.com","password":"hunter2"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		Expect(logOutput.String()).ToNot(ContainSubstring("hunter2"))
		Expect(logOutput.String()).To(ContainSubstring("[FILTERED]"))
		Expect(logOutput.String()).To(ContainSubstring("alice@mail.com"))
	})

	It("should truncate oversized bodies instead of logging them", func() {
		body := strings.NewReader(`{"notes":"` + strings.Repeat("x", 5000) + `"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/", body)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		Expect(logOutput.String()).To(ContainSubstring("[TRUNCATED]"))
		Expect(logOutput.String()).ToNot(ContainSubstring("xxxxxxxxxx"))
	})
})
