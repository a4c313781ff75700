package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/llm/provider/ollama"
)

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		received map[string]any
		status   int
		reply    string
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusOK
		reply = `{"model":"llama3.2","message":{"role":"assistant","content":"Hi there"},"done":true}`

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/api/chat"))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())

			w.WriteHeader(status)
			_, _ = w.Write([]byte(reply))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends a non-streaming request and returns the reply", func() {
		client := ollama.New(server.URL+"/", "llama3.2")
		text, err := client.Complete(context.Background(), []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "Be brief."),
			llm.NewTextMessage(llm.RoleUser, "Hello"),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Hi there"))

		Expect(received).To(HaveKeyWithValue("model", "llama3.2"))
		Expect(received).To(HaveKeyWithValue("stream", false))
		Expect(received["messages"]).To(HaveLen(2))
	})

	It("returns a ModelError for non-200 responses", func() {
		status = http.StatusNotFound
		reply = `{"error":"model not found"}`

		_, err := ollama.New(server.URL, "missing").Complete(context.Background(), nil)
		var modelErr *llm.ModelError
		Expect(errors.As(err, &modelErr)).To(BeTrue())
		Expect(modelErr.Provider).To(Equal("ollama"))
		Expect(err.Error()).To(ContainSubstring("model not found"))
	})

	It("returns a ModelError for empty replies", func() {
		reply = `{"message":{"role":"assistant","content":""},"done":true}`

		_, err := ollama.New(server.URL, "").Complete(context.Background(), nil)
		Expect(errors.Is(err, llm.ErrEmptyResponse)).To(BeTrue())
	})

	It("returns a ModelError when the server is unreachable", func() {
		server.Close()
		_, err := ollama.New(server.URL, "").Complete(context.Background(), nil)
		var modelErr *llm.ModelError
		Expect(errors.As(err, &modelErr)).To(BeTrue())
	})
})
