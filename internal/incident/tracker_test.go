package incident_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mesadesk.app/triage/internal/incident"
	"mesadesk.app/triage/internal/kv"
	"mesadesk.app/triage/internal/model"
)

const botIdentity = "soporte-bot"

var _ = Describe("Tracker", func() {
	var (
		ctx     context.Context
		store   *kv.Memory
		tracker *incident.Tracker
		clock   time.Time
	)

	message := func(id, sender, contextKey, text string) model.Message {
		return model.Message{
			ID:         id,
			Text:       text,
			Sender:     sender,
			ContextKey: contextKey,
			Timestamp:  clock,
		}
	}

	register := func(ticketID, contextKey string) {
		category := model.CategoryTechnical
		priority := model.PriorityHigh
		msg := message("m-origin", "+5215550001", contextKey, "el pos no funciona")
		res := model.ConsensusResult{Category: &category, Priority: &priority}
		Expect(tracker.Register(ctx, msg, ticketID, res)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = kv.NewMemory()
		clock = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		tracker = incident.NewTracker(store, incident.Options{
			BotIdentity: botIdentity,
			Now:         func() time.Time { return clock },
		})
	})

	Describe("quoted-reply extraction", func() {
		It("matches a quoted bot reply referencing an active ticket", func() {
			register("12345", "group-a")

			msg := message("m-2", "+5215550002", "group-a", "sigue igual")
			msg.Quoted = &model.QuotedMessage{
				ID:     "m-bot",
				Text:   "Hemos creado el Ticket #12345 para tu reporte",
				Sender: botIdentity,
			}

			ticketID, err := tracker.CheckExisting(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketID).To(Equal("12345"))
		})

		It("never matches a quote of a non-bot sender", func() {
			register("12345", "group-a")
			clock = clock.Add(3 * time.Hour)

			msg := message("m-2", "+5215550002", "group-a", "sigue igual")
			msg.Quoted = &model.QuotedMessage{
				ID:     "m-user",
				Text:   "mira el Ticket #12345",
				Sender: "+5215550003",
			}

			ticketID, err := tracker.CheckExisting(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketID).To(BeEmpty())
		})

		It("matches the bare #id form", func() {
			register("777", "group-a")

			msg := message("m-2", "+5215550002", "group-a", "?")
			msg.Quoted = &model.QuotedMessage{
				ID:     "m-bot",
				Text:   "Tu reporte quedó registrado como #777",
				Sender: botIdentity,
			}

			ticketID, err := tracker.CheckExisting(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketID).To(Equal("777"))
		})

		It("ignores quoted references to tickets with no live incident", func() {
			msg := message("m-2", "+5215550002", "group-a", "sigue igual")
			msg.Quoted = &model.QuotedMessage{
				ID:     "m-bot",
				Text:   "Hemos creado el Ticket #99999",
				Sender: botIdentity,
			}

			ticketID, err := tracker.CheckExisting(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketID).To(BeEmpty())
		})
	})

	Describe("time-windowed search", func() {
		It("finds an incident updated half an hour ago", func() {
			register("12345", "group-a")
			clock = clock.Add(30 * time.Minute)

			ticketID, err := tracker.CheckExisting(ctx, message("m-2", "+5215550002", "group-a", "yo tambien"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketID).To(Equal("12345"))
		})

		It("does not match an incident updated three hours ago", func() {
			register("12345", "group-a")
			clock = clock.Add(3 * time.Hour)

			ticketID, err := tracker.CheckExisting(ctx, message("m-2", "+5215550002", "group-a", "yo tambien"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketID).To(BeEmpty())
		})

		It("treats an incident aged exactly one window as expired", func() {
			register("12345", "group-a")
			clock = clock.Add(incident.DefaultWindow)

			ticketID, err := tracker.CheckExisting(ctx, message("m-2", "+5215550002", "group-a", "yo tambien"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketID).To(BeEmpty())
		})

		It("scopes the search to the message's context key", func() {
			register("12345", "group-a")

			ticketID, err := tracker.CheckExisting(ctx, message("m-2", "+5215550002", "group-b", "yo tambien"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketID).To(BeEmpty())
		})

		It("prefers the most recently updated incident in the context", func() {
			register("111", "group-a")
			clock = clock.Add(10 * time.Minute)
			register("222", "group-a")
			clock = clock.Add(10 * time.Minute)

			ticketID, err := tracker.CheckExisting(ctx, message("m-3", "+5215550002", "group-a", "sigue"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketID).To(Equal("222"))
		})
	})

	Describe("Claim", func() {
		It("lets only the first claimant win per context key", func() {
			won, err := tracker.Claim(ctx, "group-a", "m-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(won).To(BeTrue())

			won, err = tracker.Claim(ctx, "group-a", "m-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(won).To(BeFalse())
		})

		It("claims different context keys independently", func() {
			won, err := tracker.Claim(ctx, "group-a", "m-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(won).To(BeTrue())

			won, err = tracker.Claim(ctx, "group-b", "m-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(won).To(BeTrue())
		})
	})

	Describe("AppendToThread", func() {
		It("appends the message and slides the window forward", func() {
			register("12345", "group-a")
			clock = clock.Add(90 * time.Minute)

			Expect(tracker.AppendToThread(ctx, "12345", "m-2", "sigue sin funcionar")).To(Succeed())

			// 100 minutes after registration but only 10 after the last
			// update: still inside the window.
			clock = clock.Add(100 * time.Minute)
			ticketID, err := tracker.CheckExisting(ctx, message("m-3", "+5215550002", "group-a", "?"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketID).To(Equal("12345"))

			inc, err := tracker.ThreadSummary(ctx, "12345")
			Expect(err).NotTo(HaveOccurred())
			Expect(inc.ThreadMessageIDs).To(Equal([]string{"m-origin", "m-2"}))
			Expect(inc.Excerpt).To(Equal("sigue sin funcionar"))
		})

		It("fails for a ticket with no live incident", func() {
			Expect(tracker.AppendToThread(ctx, "404", "m-2", "")).NotTo(Succeed())
		})
	})

	Describe("ThreadSummary", func() {
		It("returns the registered incident record", func() {
			register("12345", "group-a")

			inc, err := tracker.ThreadSummary(ctx, "12345")
			Expect(err).NotTo(HaveOccurred())
			Expect(inc).NotTo(BeNil())
			Expect(inc.TicketID).To(Equal("12345"))
			Expect(inc.ContextKey).To(Equal("group-a"))
			Expect(inc.Participant).To(Equal("+5215550001"))
			Expect(inc.ThreadMessageIDs).To(Equal([]string{"m-origin"}))
		})

		It("returns nil for an unknown ticket", func() {
			inc, err := tracker.ThreadSummary(ctx, "404")
			Expect(err).NotTo(HaveOccurred())
			Expect(inc).To(BeNil())
		})
	})
})
