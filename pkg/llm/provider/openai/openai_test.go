package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/openai/openai-go/option"

	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/llm/provider/openai"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1735689600,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "Hi there"}
  }]
}`

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		received map[string]any
		auth     string
		status   int
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusOK

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(strings.HasSuffix(r.URL.Path, "/chat/completions")).To(BeTrue())
			auth = r.Header.Get("Authorization")
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status == http.StatusOK {
				_, _ = w.Write([]byte(completionBody))
				return
			}
			_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func() *openai.Client {
		return openai.New("sk-test", server.URL, "gpt-4o-mini", option.WithMaxRetries(0))
	}

	It("maps roles and returns the first choice", func() {
		text, err := newClient().Complete(context.Background(), []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "Be brief."),
			llm.NewTextMessage(llm.RoleUser, "Hello"),
			llm.NewTextMessage(llm.RoleAssistant, "Hi"),
			llm.NewTextMessage(llm.RoleUser, "Again"),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Hi there"))
		Expect(auth).To(Equal("Bearer sk-test"))

		Expect(received).To(HaveKeyWithValue("model", "gpt-4o-mini"))
		messages, ok := received["messages"].([]any)
		Expect(ok).To(BeTrue())
		Expect(messages).To(HaveLen(4))

		roles := make([]string, 0, len(messages))
		for _, m := range messages {
			roles = append(roles, m.(map[string]any)["role"].(string))
		}
		Expect(roles).To(Equal([]string{"system", "user", "assistant", "user"}))
	})

	It("wraps API failures in a ModelError", func() {
		status = http.StatusUnauthorized

		_, err := newClient().Complete(context.Background(), []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hello")})
		var modelErr *llm.ModelError
		Expect(errors.As(err, &modelErr)).To(BeTrue())
		Expect(modelErr.Provider).To(Equal("openai"))
		Expect(modelErr.Model).To(Equal("gpt-4o-mini"))
	})

	It("uses the default model", func() {
		Expect(openai.DefaultModel).NotTo(BeEmpty())
	})
})
