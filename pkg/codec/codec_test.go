package codec_test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/klauspost/compress/zstd"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/codec"
)

var _ = Describe("Codec", func() {
	DescribeTable("round-trips text",
		func(text string) {
			payload := codec.Encode(text)
			decoded, err := codec.Decode(payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(text))
		},
		Entry("empty string", ""),
		Entry("single character", "a"),
		Entry("short sentence", "The quick brown fox jumps over the lazy dog."),
		Entry("multi-byte runes", "héllo wörld — 日本語テキスト 🚀"),
		Entry("repetitive text", strings.Repeat("explain this in detail with an example. ", 200)),
		Entry("very repetitive text", strings.Repeat("a", 1<<20)),
		Entry("newlines and tabs", "line one\n\tline two\r\nline three"),
	)

	It("is deterministic", func() {
		text := strings.Repeat("memory is a compressed log of prior turns ", 50)
		Expect(codec.Encode(text)).To(Equal(codec.Encode(text)))
	})

	It("produces printable ASCII", func() {
		payload := codec.Encode("naïve café ☕ " + strings.Repeat("x", 300))
		for _, r := range payload {
			Expect(r).To(BeNumerically(">=", 0x20))
			Expect(r).To(BeNumerically("<", 0x7f))
		}
	})

	It("compresses repetitive text with zstd", func() {
		text := strings.Repeat("reabsorb the oldest turn ", 100)
		payload := codec.Encode(text)

		tag, err := codec.Inspect(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(tag).To(Equal(codec.TagZstd))
		Expect(len(payload)).To(BeNumerically("<", len(text)))
		Expect(codec.Ratio(text, payload)).To(BeNumerically(">", 1))
	})

	It("stores short text uncompressed", func() {
		tag, err := codec.Inspect(codec.Encode("hi"))
		Expect(err).NotTo(HaveOccurred())
		Expect(tag).To(Equal(codec.TagNone))
	})

	Describe("Decode failures", func() {
		expectDecodeError := func(payload string) {
			decoded, err := codec.Decode(payload)
			Expect(err).To(HaveOccurred())
			Expect(decoded).To(BeEmpty())

			var decodeErr *codec.DecodeError
			Expect(errors.As(err, &decodeErr)).To(BeTrue())
		}

		It("rejects invalid base64", func() {
			expectDecodeError("not base64!!")
		})

		It("rejects an empty payload", func() {
			expectDecodeError("")
		})

		It("rejects an unknown tag", func() {
			expectDecodeError(base64.StdEncoding.EncodeToString([]byte{9, 1, 'a'}))
		})

		It("rejects a length mismatch", func() {
			expectDecodeError(base64.StdEncoding.EncodeToString([]byte{0, 5, 'a', 'b'}))
		})

		It("rejects truncated compressed payloads", func() {
			payload := codec.Encode(strings.Repeat("truncate me please ", 80))
			raw, err := base64.StdEncoding.DecodeString(payload)
			Expect(err).NotTo(HaveOccurred())

			truncated := base64.StdEncoding.EncodeToString(raw[:len(raw)/2])
			expectDecodeError(truncated)
		})

		It("rejects corrupted compressed payloads", func() {
			payload := codec.Encode(strings.Repeat("flip a byte in the middle ", 80))
			raw, err := base64.StdEncoding.DecodeString(payload)
			Expect(err).NotTo(HaveOccurred())

			raw[len(raw)-3] ^= 0xff
			expectDecodeError(base64.StdEncoding.EncodeToString(raw))
		})

		It("rejects invalid UTF-8", func() {
			expectDecodeError(base64.StdEncoding.EncodeToString([]byte{0, 2, 0xff, 0xfe}))
		})

		It("rejects a zstd frame that expands past the declared length", func() {
			enc, err := zstd.NewWriter(nil)
			Expect(err).NotTo(HaveOccurred())
			defer enc.Close()
			body := enc.EncodeAll(bytes.Repeat([]byte("a"), 8<<20), nil)

			frame := []byte{byte(codec.TagZstd)}
			frame = binary.AppendUvarint(frame, 16)
			frame = append(frame, body...)
			expectDecodeError(base64.StdEncoding.EncodeToString(frame))
		})

		It("rejects a declared length above the limit", func() {
			frame := []byte{byte(codec.TagZstd)}
			frame = binary.AppendUvarint(frame, codec.MaxTextSize+1)
			frame = append(frame, 0x28, 0xb5, 0x2f, 0xfd)

			_, err := codec.Decode(base64.StdEncoding.EncodeToString(frame))
			Expect(err).To(MatchError(ContainSubstring("exceeds limit")))
		})
	})

	It("names tags", func() {
		Expect(codec.TagNone.String()).To(Equal("none"))
		Expect(codec.TagLZ4.String()).To(Equal("lz4"))
		Expect(codec.TagZstd.String()).To(Equal("zstd"))
		Expect(codec.Tag(7).String()).To(Equal("unknown(7)"))
	})
})
