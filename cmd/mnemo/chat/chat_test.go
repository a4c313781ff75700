package chatcmder

import (
	"bytes"
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/storage/inmemory"
)

var _ = Describe("conversation", func() {
	var (
		ctx      context.Context
		driver   *inmemory.Driver
		manager  *memory.Manager
		replies  []string
		seen     [][]llm.Message
		modelErr error
		conv     *conversation
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		replies = nil
		seen = nil
		modelErr = nil

		cfg := memory.DefaultConfig()
		cfg.TokenLimit = 10000
		cfg.ReabsorbInterval = 3
		manager = memory.NewManager(driver, cfg)
		_, err := manager.CreateSession(ctx, "")
		Expect(err).NotTo(HaveOccurred())

		model := llm.CompleterFunc(func(_ context.Context, messages []llm.Message) (string, error) {
			snapshot := make([]llm.Message, len(messages))
			copy(snapshot, messages)
			seen = append(seen, snapshot)
			if modelErr != nil {
				return "", modelErr
			}
			r := replies[0]
			replies = replies[1:]
			return r, nil
		})
		conv = newConversation(manager, model, "", logger.Nop())
	})

	It("starts from the default system prompt", func() {
		Expect(conv.messages).To(HaveLen(1))
		Expect(conv.messages[0].Role).To(Equal(llm.RoleSystem))
		Expect(conv.messages[0].GetText()).To(Equal(defaultSystemPrompt))
	})

	It("stores admitted replies under a turn title", func() {
		replies = []string{strings.Repeat("goroutines communicate over channels ", 15)}

		r, err := conv.step(ctx, "tell me about go channels")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Text).To(HavePrefix("goroutines"))
		Expect(conv.messages).To(HaveLen(3))

		history, err := manager.SessionHistory(ctx, manager.ChatID())
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(1))
		Expect(history[0].Title).To(Equal("Turn 1: tell me about go cha..."))

		session, err := manager.Session(ctx, manager.ChatID())
		Expect(err).NotTo(HaveOccurred())
		Expect(session.Title).To(Equal("Chat about tell_me_about_go_channels"))
	})

	It("turns model failures into reply text", func() {
		modelErr = &llm.ModelError{Provider: "ollama", Err: errors.New("connection refused")}

		r, err := conv.step(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Text).To(HavePrefix("Error: "))
		Expect(r.Text).To(ContainSubstring("connection refused"))
		Expect(manager.Metrics().SkippedShort).To(Equal(int64(1)))
	})

	It("folds recalled memories into the system prompt", func() {
		replies = []string{
			strings.Repeat("kubernetes pods scale across the cluster nodes ", 10),
			strings.Repeat("sourdough bread needs flour water salt starter ", 10),
			"ok",
		}
		_, err := conv.step(ctx, "explain kubernetes")
		Expect(err).NotTo(HaveOccurred())
		_, err = conv.step(ctx, "explain bread")
		Expect(err).NotTo(HaveOccurred())

		r, err := conv.step(ctx, "recall kubernetes pods")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Recalled).To(BeNumerically(">=", 1))
		Expect(conv.system().GetText()).To(ContainSubstring("Relevant prior context: kubernetes pods"))

		last := seen[len(seen)-1]
		Expect(last[len(last)-1].GetText()).To(Equal("Recall query was 'kubernetes pods', but continue conversation."))
	})

	It("reabsorbs the oldest turn on the interval", func() {
		replies = []string{
			strings.Repeat("first answer words ", 20),
			strings.Repeat("second answer words ", 20),
			"short",
		}
		_, err := conv.step(ctx, "one")
		Expect(err).NotTo(HaveOccurred())
		_, err = conv.step(ctx, "two")
		Expect(err).NotTo(HaveOccurred())

		r, err := conv.step(ctx, "three")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Reabsorbed).To(BeTrue())
		Expect(conv.system().GetText()).To(ContainSubstring("Reabsorbed prior context: first answer"))
		Expect(manager.Metrics().Reabsorbs).To(Equal(int64(1)))
	})

	It("keeps chatting when the oldest turn cannot be decoded", func() {
		_, err := driver.AppendTurn(ctx, &storage.StoredTurn{
			SessionID:  manager.ChatID(),
			Title:      "garbled",
			Payload:    "not base64 at all!",
			TokenCount: 60,
		})
		Expect(err).NotTo(HaveOccurred())

		replies = []string{"a", "b", "still here"}
		for _, input := range []string{"one", "two"} {
			_, err := conv.step(ctx, input)
			Expect(err).NotTo(HaveOccurred())
		}

		r, err := conv.step(ctx, "three")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Reabsorbed).To(BeFalse())
		Expect(r.Text).To(Equal("still here"))

		turns, err := driver.ListTurns(ctx, manager.ChatID())
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(1))
	})
})

var _ = Describe("chatCommander loop", func() {
	It("stops on /exit and prints replies", func() {
		ctx := context.Background()
		manager := memory.NewManager(inmemory.NewDriver(), memory.DefaultConfig())
		_, err := manager.CreateSession(ctx, "")
		Expect(err).NotTo(HaveOccurred())

		model := llm.CompleterFunc(func(_ context.Context, _ []llm.Message) (string, error) {
			return "pong", nil
		})
		conv := newConversation(manager, model, "be brief", logger.Nop())

		cmder := &chatCommander{logger: logger.Nop()}
		in := strings.NewReader("ping\n\n/exit\nignored\n")
		var out bytes.Buffer

		Expect(cmder.loop(ctx, conv, in, &out)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("pong"))
		Expect(conv.messages).To(HaveLen(3))
	})

	It("prints a memory summary", func() {
		var out bytes.Buffer
		printSummary(&out, memory.Summary{
			SessionID:    "s1",
			StoredTokens: 120,
			TokenLimit:   100,
			Expansion:    1.2,
			Metrics:      memory.Metrics{Stores: 2, SkippedShort: 1},
		})
		Expect(out.String()).To(ContainSubstring("120 / 100"))
		Expect(out.String()).To(ContainSubstring("1.20x"))
	})
})
