package paymentgateway_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smiledesk/clinic-booking/internal/paymentgateway"
)

func TestPaymentGateway(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Payment Gateway Suite")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var _ = Describe("Client", func() {
	var (
		server      *httptest.Server
		client      *paymentgateway.Client
		tokenCalls  int32
		lastPath    string
		lastBody    map[string]interface{}
		responder   func(w http.ResponseWriter, r *http.Request)
		ctx         context.Context
	)

	BeforeEach(func() {
		tokenCalls = 0
		lastPath = ""
		lastBody = nil
		responder = nil

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1/oauth2/token" {
				atomic.AddInt32(&tokenCalls, 1)
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"access_token":"token-abc","expires_in":3600}`)
				return
			}

			lastPath = r.URL.Path
			if r.Body != nil {
				json.NewDecoder(r.Body).Decode(&lastBody)
			}
			if responder != nil {
				responder(w, r)
			}
		}))

		client = paymentgateway.NewClient(paymentgateway.Config{
			BaseURL:        server.URL,
			ClientID:       "client-id",
			ClientSecret:   "client-secret",
			ReturnURL:      "https://clinic.example/return",
			CancelURL:      "https://clinic.example/cancel",
			RequestTimeout: 5 * time.Second,
		}, testLogger())
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("CreatePayment", func() {
		Context("when the gateway accepts the charge", func() {
			It("should return the payment id and approval link", func() {
				responder = func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					fmt.Fprint(w, `{
						"id": "PAYID-1",
						"state": "created",
						"links": [
							{"href": "https://paypal.example/self", "rel": "self"},
							{"href": "https://paypal.example/approve", "rel": "approval_url"}
						]
					}`)
				}

				resp, err := client.CreatePayment(ctx, &paymentgateway.CreatePaymentRequest{
					AmountCents: 15050,
					Currency:    "USD",
					Description: "Dental appointment",
					InvoiceID:   "appt-10-pay-1",
				})

				Expect(err).ToNot(HaveOccurred())
				Expect(resp.PaymentID).To(Equal("PAYID-1"))
				Expect(resp.ApprovalURL).To(Equal("https://paypal.example/approve"))
				Expect(resp.State).To(Equal(paymentgateway.PaymentStateCreated))
				Expect(lastPath).To(Equal("/v1/payments/payment"))

				transactions := lastBody["transactions"].([]interface{})
				amount := transactions[0].(map[string]interface{})["amount"].(map[string]interface{})
				Expect(amount["total"]).To(Equal("150.50"))
			})
		})

		Context("when the request is incomplete", func() {
			It("should fail validation before any HTTP call", func() {
				_, err := client.CreatePayment(ctx, &paymentgateway.CreatePaymentRequest{
					Currency:  "USD",
					InvoiceID: "appt-10-pay-1",
				})

				Expect(err).To(HaveOccurred())
				Expect(lastPath).To(BeEmpty())
			})
		})

		Context("when the gateway errors", func() {
			It("should surface the status and body", func() {
				responder = func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadRequest)
					fmt.Fprint(w, `{"name":"VALIDATION_ERROR"}`)
				}

				_, err := client.CreatePayment(ctx, &paymentgateway.CreatePaymentRequest{
					AmountCents: 15050,
					Currency:    "USD",
					InvoiceID:   "appt-10-pay-1",
				})

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("400"))
			})
		})
	})

	Describe("ExecutePayment", func() {
		It("should extract the sale transaction id", func() {
			responder = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{
					"id": "PAYID-1",
					"state": "approved",
					"transactions": [
						{"related_resources": [{"sale": {"id": "SALE-9", "state": "completed"}}]}
					]
				}`)
			}

			resp, err := client.ExecutePayment(ctx, "PAYID-1", "PAYER-7")

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.TransactionID).To(Equal("SALE-9"))
			Expect(resp.State).To(Equal(paymentgateway.PaymentStateApproved))
			Expect(lastPath).To(Equal("/v1/payments/payment/PAYID-1/execute"))
			Expect(lastBody["payer_id"]).To(Equal("PAYER-7"))
		})

		It("should require both identifiers", func() {
			_, err := client.ExecutePayment(ctx, "", "PAYER-7")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("RefundSale", func() {
		It("should issue a partial refund with an amount", func() {
			responder = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"id": "REFUND-1", "state": "completed"}`)
			}

			resp, err := client.RefundSale(ctx, "SALE-9", 5000, "USD")

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.RefundID).To(Equal("REFUND-1"))
			Expect(lastPath).To(Equal("/v1/payments/sale/SALE-9/refund"))
			amount := lastBody["amount"].(map[string]interface{})
			Expect(amount["total"]).To(Equal("50.00"))
		})

		It("should send an empty body for a full refund", func() {
			responder = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"id": "REFUND-2", "state": "completed"}`)
			}

			_, err := client.RefundSale(ctx, "SALE-9", 0, "USD")

			Expect(err).ToNot(HaveOccurred())
			Expect(lastBody).To(BeEmpty())
		})
	})

	Describe("token caching", func() {
		It("should reuse the OAuth token across calls", func() {
			responder = func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Header.Get("Authorization")).To(Equal("Bearer token-abc"))
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"id": "REFUND-1", "state": "completed"}`)
			}

			_, err := client.RefundSale(ctx, "SALE-1", 0, "USD")
			Expect(err).ToNot(HaveOccurred())
			_, err = client.RefundSale(ctx, "SALE-2", 0, "USD")
			Expect(err).ToNot(HaveOccurred())

			Expect(atomic.LoadInt32(&tokenCalls)).To(Equal(int32(1)))
		})
	})
})
