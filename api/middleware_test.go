package api

import (
	"bytes"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("auth middleware", func() {
	It("allows requests when no API keys are configured", func() {
		server, _ := newTestServer(Config{})
		req, _ := http.NewRequest(http.MethodPost, "/sbp", bytes.NewBufferString(`{"jsonrpc":"2.0","method":"sbp/sniff","id":1}`))
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("rejects requests without a bearer token when keys are configured", func() {
		server, _ := newTestServer(Config{APIKeys: []string{"secret"}})
		req, _ := http.NewRequest(http.MethodPost, "/sbp", bytes.NewBufferString(`{"jsonrpc":"2.0","method":"sbp/sniff","id":1}`))
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	It("accepts a matching bearer token", func() {
		server, _ := newTestServer(Config{APIKeys: []string{"secret"}})
		req, _ := http.NewRequest(http.MethodPost, "/sbp", bytes.NewBufferString(`{"jsonrpc":"2.0","method":"sbp/sniff","id":1}`))
		req.Header.Set("Authorization", "Bearer secret")
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("exempts GET /health from auth", func() {
		server, _ := newTestServer(Config{APIKeys: []string{"secret"}})
		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})

var _ = Describe("rate limit middleware", func() {
	It("returns 429 with Retry-After once the bucket is exhausted", func() {
		server, _ := newTestServer(Config{RateLimitRequestsPerMinute: 1})

		body := `{"jsonrpc":"2.0","method":"sbp/sniff","id":1}`

		req1, _ := http.NewRequest(http.MethodPost, "/sbp", bytes.NewBufferString(body))
		req1.Header.Set("Sbp-Agent-Id", "agent-a")
		resp1, err := server.app.Test(req1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp1.StatusCode).To(Equal(http.StatusOK))

		req2, _ := http.NewRequest(http.MethodPost, "/sbp", bytes.NewBufferString(body))
		req2.Header.Set("Sbp-Agent-Id", "agent-a")
		resp2, err := server.app.Test(req2)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp2.StatusCode).To(Equal(http.StatusTooManyRequests))
		Expect(resp2.Header.Get("Retry-After")).NotTo(BeEmpty())
	})

	It("tracks separate agents independently", func() {
		server, _ := newTestServer(Config{RateLimitRequestsPerMinute: 1})
		body := `{"jsonrpc":"2.0","method":"sbp/sniff","id":1}`

		for _, agent := range []string{"agent-a", "agent-b"} {
			req, _ := http.NewRequest(http.MethodPost, "/sbp", bytes.NewBufferString(body))
			req.Header.Set("Sbp-Agent-Id", agent)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		}
	})
})
