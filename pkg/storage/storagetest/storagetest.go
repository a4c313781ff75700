// Package storagetest provides a shared ginkgo conformance suite for
// storage.Driver implementations.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/storage"
)

// NewTurn builds an unsaved turn for a session.
func NewTurn(sessionID, title, payload string, tokens int) *storage.StoredTurn {
	return &storage.StoredTurn{
		SessionID:  sessionID,
		Title:      title,
		Payload:    payload,
		TokenCount: tokens,
	}
}

// DescribeDriver registers the conformance specs for a driver. newDriver
// is called before every test and must return an empty store.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" conformance", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = nil
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		payloads := func(turns []*storage.StoredTurn) []string {
			out := make([]string, 0, len(turns))
			for _, t := range turns {
				out = append(out, t.Payload)
			}
			return out
		}

		Describe("CreateSession", func() {
			It("creates a session with the default preview", func() {
				created, err := driver.CreateSession(ctx, "s1", "New Chat")
				Expect(err).NotTo(HaveOccurred())
				Expect(created).To(BeTrue())

				session, err := driver.GetSession(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())
				Expect(session.Title).To(Equal("New Chat"))
				Expect(session.Preview).To(Equal(storage.DefaultPreview))
				Expect(session.HasCustomTitle).To(BeFalse())
				Expect(session.CreatedAt).NotTo(BeZero())
			})

			It("is insert-or-ignore", func() {
				_, err := driver.CreateSession(ctx, "s1", "T1")
				Expect(err).NotTo(HaveOccurred())

				created, err := driver.CreateSession(ctx, "s1", "T2")
				Expect(err).NotTo(HaveOccurred())
				Expect(created).To(BeFalse())

				session, err := driver.GetSession(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())
				Expect(session.Title).To(Equal("T1"))

				sessions, err := driver.ListSessions(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(sessions).To(HaveLen(1))
			})

			It("does not reset stored turns", func() {
				_, err := driver.CreateSession(ctx, "s1", "T1")
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.AppendTurn(ctx, NewTurn("s1", "a", "A", 10))
				Expect(err).NotTo(HaveOccurred())

				_, err = driver.CreateSession(ctx, "s1", "T1")
				Expect(err).NotTo(HaveOccurred())

				turns, err := driver.ListTurns(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(1))
			})

			It("rejects an empty id", func() {
				_, err := driver.CreateSession(ctx, "", "T")
				Expect(err).To(MatchError(storage.ErrEmptySessionID))
			})

			It("serializes concurrent creation of one id", func() {
				var (
					wg      sync.WaitGroup
					mu      sync.Mutex
					winners int
				)
				for i := range 8 {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()
						created, err := driver.CreateSession(ctx, "race", fmt.Sprintf("T%d", i))
						Expect(err).NotTo(HaveOccurred())
						if created {
							mu.Lock()
							winners++
							mu.Unlock()
						}
					}()
				}
				wg.Wait()
				Expect(winners).To(Equal(1))
			})
		})

		Describe("UpdateSession and RenameSession", func() {
			BeforeEach(func() {
				_, err := driver.CreateSession(ctx, "s1", "New Chat")
				Expect(err).NotTo(HaveOccurred())
			})

			It("overwrites title and preview", func() {
				before, err := driver.GetSession(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())

				Expect(driver.UpdateSession(ctx, "s1", "Chat about go", "Last: hello...")).To(Succeed())

				after, err := driver.GetSession(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())
				Expect(after.Title).To(Equal("Chat about go"))
				Expect(after.Preview).To(Equal("Last: hello..."))
				Expect(after.LastUpdated).To(BeTemporally(">=", before.LastUpdated))
				Expect(after.CreatedAt).To(BeTemporally("==", before.CreatedAt))
			})

			It("marks renamed sessions as custom-titled", func() {
				Expect(driver.RenameSession(ctx, "s1", "My notes")).To(Succeed())

				session, err := driver.GetSession(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())
				Expect(session.Title).To(Equal("My notes"))
				Expect(session.HasCustomTitle).To(BeTrue())
			})

			It("returns NotFoundError when renaming an unknown session", func() {
				err := driver.RenameSession(ctx, "missing", "x")
				var notFound storage.NotFoundError
				Expect(errors.As(err, &notFound)).To(BeTrue())
				Expect(notFound.SessionID).To(Equal("missing"))
			})
		})

		Describe("GetSession", func() {
			It("returns NotFoundError for an unknown session", func() {
				_, err := driver.GetSession(ctx, "missing")
				Expect(err).To(HaveOccurred())

				var notFound storage.NotFoundError
				Expect(errors.As(err, &notFound)).To(BeTrue())
			})
		})

		Describe("ListSessions", func() {
			It("returns the most recently updated session first", func() {
				for _, id := range []string{"a", "b", "c"} {
					_, err := driver.CreateSession(ctx, id, id)
					Expect(err).NotTo(HaveOccurred())
				}
				Expect(driver.UpdateSession(ctx, "b", "b", "touched")).To(Succeed())

				sessions, err := driver.ListSessions(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(sessions).To(HaveLen(3))
				Expect(sessions[0].ID).To(Equal("b"))
			})

			It("returns an empty list for an empty store", func() {
				sessions, err := driver.ListSessions(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(sessions).To(BeEmpty())
			})
		})

		Describe("turn log", func() {
			BeforeEach(func() {
				_, err := driver.CreateSession(ctx, "s1", "one")
				Expect(err).NotTo(HaveOccurred())
			})

			It("assigns ids and strictly increasing timestamps", func() {
				first, err := driver.AppendTurn(ctx, NewTurn("s1", "a", "A", 1))
				Expect(err).NotTo(HaveOccurred())
				second, err := driver.AppendTurn(ctx, NewTurn("s1", "b", "B", 1))
				Expect(err).NotTo(HaveOccurred())

				Expect(first.ID).NotTo(BeZero())
				Expect(second.ID).NotTo(Equal(first.ID))
				Expect(second.Timestamp).To(BeTemporally(">", first.Timestamp))
			})

			It("lists turns in insertion order with all fields", func() {
				for _, p := range []string{"A", "B", "C"} {
					t := NewTurn("s1", "title "+p, p, 5)
					t.ContentHash = "hash-" + p
					_, err := driver.AppendTurn(ctx, t)
					Expect(err).NotTo(HaveOccurred())
				}

				turns, err := driver.ListTurns(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())
				Expect(payloads(turns)).To(Equal([]string{"A", "B", "C"}))
				Expect(turns[1].Title).To(Equal("title B"))
				Expect(turns[1].TokenCount).To(Equal(5))
				Expect(turns[1].ContentHash).To(Equal("hash-B"))
				Expect(turns[1].SessionID).To(Equal("s1"))
			})

			It("removes the oldest turn first, then returns nil", func() {
				for _, p := range []string{"A", "B", "C"} {
					_, err := driver.AppendTurn(ctx, NewTurn("s1", p, p, 1))
					Expect(err).NotTo(HaveOccurred())
				}

				for _, want := range []string{"A", "B", "C"} {
					removed, err := driver.RemoveOldestTurn(ctx, "s1", nil)
					Expect(err).NotTo(HaveOccurred())
					Expect(removed).NotTo(BeNil())
					Expect(removed.Payload).To(Equal(want))
				}

				removed, err := driver.RemoveOldestTurn(ctx, "s1", nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(removed).To(BeNil())
			})

			It("leaves the oldest turn in place when accept rejects it", func() {
				for _, p := range []string{"A", "B"} {
					_, err := driver.AppendTurn(ctx, NewTurn("s1", p, p, 1))
					Expect(err).NotTo(HaveOccurred())
				}

				rejected := errors.New("rejected")
				var seen string
				removed, err := driver.RemoveOldestTurn(ctx, "s1", func(t *storage.StoredTurn) error {
					seen = t.Payload
					return rejected
				})
				Expect(err).To(MatchError(rejected))
				Expect(removed).To(BeNil())
				Expect(seen).To(Equal("A"))

				turns, err := driver.ListTurns(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())
				Expect(payloads(turns)).To(Equal([]string{"A", "B"}))

				removed, err = driver.RemoveOldestTurn(ctx, "s1", func(*storage.StoredTurn) error { return nil })
				Expect(err).NotTo(HaveOccurred())
				Expect(removed.Payload).To(Equal("A"))
			})

			It("keeps ordering after interleaved removals", func() {
				_, err := driver.AppendTurn(ctx, NewTurn("s1", "a", "A", 1))
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.AppendTurn(ctx, NewTurn("s1", "b", "B", 1))
				Expect(err).NotTo(HaveOccurred())

				removed, err := driver.RemoveOldestTurn(ctx, "s1", nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(removed.Payload).To(Equal("A"))

				_, err = driver.AppendTurn(ctx, NewTurn("s1", "c", "C", 1))
				Expect(err).NotTo(HaveOccurred())

				turns, err := driver.ListTurns(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())
				Expect(payloads(turns)).To(Equal([]string{"B", "C"}))
			})

			It("sums token counts", func() {
				total, err := driver.SumTokens(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())
				Expect(total).To(BeZero())

				for _, n := range []int{40, 90, 12} {
					_, err := driver.AppendTurn(ctx, NewTurn("s1", "t", "p", n))
					Expect(err).NotTo(HaveOccurred())
				}

				total, err = driver.SumTokens(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())
				Expect(total).To(Equal(142))
			})

			It("rejects nil turns", func() {
				_, err := driver.AppendTurn(ctx, nil)
				Expect(err).To(MatchError(storage.ErrNilTurn))
			})

			It("rejects turns without a session id", func() {
				_, err := driver.AppendTurn(ctx, NewTurn("", "t", "p", 1))
				Expect(err).To(MatchError(storage.ErrEmptySessionID))
			})
		})

		Describe("session isolation", func() {
			BeforeEach(func() {
				for _, id := range []string{"x", "y"} {
					_, err := driver.CreateSession(ctx, id, id)
					Expect(err).NotTo(HaveOccurred())
				}
				_, err := driver.AppendTurn(ctx, NewTurn("x", "x1", "X1", 30))
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.AppendTurn(ctx, NewTurn("x", "x2", "X2", 20))
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.AppendTurn(ctx, NewTurn("y", "y1", "Y1", 7))
				Expect(err).NotTo(HaveOccurred())
			})

			It("scopes listing, sums, and removal by session", func() {
				turns, err := driver.ListTurns(ctx, "y")
				Expect(err).NotTo(HaveOccurred())
				Expect(payloads(turns)).To(Equal([]string{"Y1"}))

				total, err := driver.SumTokens(ctx, "y")
				Expect(err).NotTo(HaveOccurred())
				Expect(total).To(Equal(7))

				removed, err := driver.RemoveOldestTurn(ctx, "y", nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(removed.Payload).To(Equal("Y1"))

				turns, err = driver.ListTurns(ctx, "x")
				Expect(err).NotTo(HaveOccurred())
				Expect(payloads(turns)).To(Equal([]string{"X1", "X2"}))
			})

			It("appends concurrently to different sessions without interleaving", func() {
				var wg sync.WaitGroup
				for _, id := range []string{"x", "y"} {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()
						for i := range 20 {
							_, err := driver.AppendTurn(ctx, NewTurn(id, "t", fmt.Sprintf("%s-%02d", id, i), 1))
							Expect(err).NotTo(HaveOccurred())
						}
					}()
				}
				wg.Wait()

				turns, err := driver.ListTurns(ctx, "y")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(21))
				Expect(turns[0].Payload).To(Equal("Y1"))
				for i, t := range turns[1:] {
					Expect(t.Payload).To(Equal(fmt.Sprintf("y-%02d", i)))
				}
			})
		})

		Describe("DeleteSession", func() {
			It("removes the session and all of its turns", func() {
				_, err := driver.CreateSession(ctx, "s", "doomed")
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateSession(ctx, "keep", "kept")
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.AppendTurn(ctx, NewTurn("s", "t", "P", 3))
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.AppendTurn(ctx, NewTurn("keep", "t", "K", 3))
				Expect(err).NotTo(HaveOccurred())

				Expect(driver.DeleteSession(ctx, "s")).To(Succeed())

				turns, err := driver.ListTurns(ctx, "s")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(BeEmpty())

				sessions, err := driver.ListSessions(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(sessions).To(HaveLen(1))
				Expect(sessions[0].ID).To(Equal("keep"))

				turns, err = driver.ListTurns(ctx, "keep")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(1))
			})

			It("is a no-op for unknown sessions", func() {
				Expect(driver.DeleteSession(ctx, "missing")).To(Succeed())
			})

			It("clears turns stored without a session record", func() {
				_, err := driver.AppendTurn(ctx, NewTurn("orphan", "t", "O", 3))
				Expect(err).NotTo(HaveOccurred())

				turns, err := driver.ListTurns(ctx, "orphan")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(1))

				Expect(driver.DeleteSession(ctx, "orphan")).To(Succeed())

				turns, err = driver.ListTurns(ctx, "orphan")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(BeEmpty())
			})
		})
	})
}
