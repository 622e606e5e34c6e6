package api

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	var server *Server

	BeforeEach(func() {
		server, _ = newTestServer(Config{})
	})

	It("answers OPTIONS /sbp with no content", func() {
		req, _ := http.NewRequest(http.MethodOptions, "/sbp", nil)
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
	})

	It("rejects unsupported methods on /sbp", func() {
		req, _ := http.NewRequest(http.MethodDelete, "/sbp", nil)
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
	})

	It("assigns a session id on first contact and echoes it back", func() {
		req, _ := http.NewRequest(http.MethodPost, "/sbp", nil)
		req.ContentLength = 0
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		id := resp.Header.Get("Sbp-Session-Id")
		Expect(id).NotTo(BeEmpty())

		_, ok := server.sessions.get(id)
		Expect(ok).To(BeTrue())
	})

	It("reuses a client-supplied session id", func() {
		req, _ := http.NewRequest(http.MethodPost, "/sbp", nil)
		req.Header.Set("Sbp-Session-Id", "my-session")
		req.Body = nil
		req.ContentLength = 0
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Header.Get("Sbp-Session-Id")).To(Equal("my-session"))

		_, ok := server.sessions.get("my-session")
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("health check", func() {
	It("reports ok with stats", func() {
		server, _ := newTestServer(Config{})
		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})
