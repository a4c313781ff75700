package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/anthropics/anthropic-sdk-go/option"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/llm/provider/anthropic"
)

const messageBody = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [{"type": "text", "text": "Hi "}, {"type": "text", "text": "there"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 10, "output_tokens": 2}
}`

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		received map[string]any
		apiKey   string
		status   int
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusOK

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			apiKey = r.Header.Get("X-Api-Key")
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status == http.StatusOK {
				_, _ = w.Write([]byte(messageBody))
				return
			}
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func() *anthropic.Client {
		return anthropic.New("key-test", server.URL, "", option.WithMaxRetries(0))
	}

	It("lifts system messages and joins text blocks", func() {
		text, err := newClient().Complete(context.Background(), []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "Be brief."),
			llm.NewTextMessage(llm.RoleUser, "Hello"),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Hi there"))
		Expect(apiKey).To(Equal("key-test"))

		Expect(received).To(HaveKeyWithValue("model", anthropic.DefaultModel))
		Expect(received).To(HaveKeyWithValue("max_tokens", BeNumerically("==", anthropic.DefaultMaxTokens)))
		Expect(received["messages"]).To(HaveLen(1))
		Expect(received["system"]).To(HaveLen(1))
	})

	It("wraps API failures in a ModelError", func() {
		status = http.StatusServiceUnavailable

		_, err := newClient().Complete(context.Background(), []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hello")})
		var modelErr *llm.ModelError
		Expect(errors.As(err, &modelErr)).To(BeTrue())
		Expect(modelErr.Provider).To(Equal("anthropic"))
	})
})
