package utils

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Truncate", func() {
	It("returns the string unchanged when within the limit", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("returns the string unchanged when exactly at the limit", func() {
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("truncates with ellipsis when over the limit", func() {
		result := Truncate("this is a long string", 10)
		Expect(result).To(Equal("this is a ..."))
	})

	It("never splits a multibyte character", func() {
		Expect(Truncate("héllo wörld", 7)).To(Equal("héllo w..."))
	})
})

var _ = Describe("Head", func() {
	It("returns the first n runes", func() {
		Expect(Head("日本語のテキスト", 3)).To(Equal("日本語"))
	})

	It("returns short strings unchanged", func() {
		Expect(Head("go", 30)).To(Equal("go"))
	})

	It("returns nothing for non-positive n", func() {
		Expect(Head("go", 0)).To(BeEmpty())
	})
})
