package integration

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/events"
	"github.com/killallgit/huddle/pkg/store"
	"github.com/killallgit/huddle/pkg/testutil/fakeserver"
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Integration Suite")
}

var _ = BeforeSuite(func() {
	SetDefaultEventuallyTimeout(5 * time.Second)
	SetDefaultEventuallyPollingInterval(10 * time.Millisecond)
})

var (
	ada  = chat.Member{ID: "ada", Name: "Ada", Type: chat.MemberTypeHuman}
	bob  = chat.Member{ID: "bob", Name: "Bob", Type: chat.MemberTypeHuman}
	bot  = chat.Member{ID: "scribe", Name: "Scribe", Type: chat.MemberTypeProgram}
	t0   = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx  = context.Background()
	text = chat.TextContent
)

func activeTexts(st *store.Store) []string {
	var texts []string
	for _, m := range st.ActiveMessages() {
		texts = append(texts, m.Content.Text)
	}
	return texts
}

var _ = Describe("Chat state sync", func() {
	var (
		srv     *fakeserver.Server
		ts      *httptest.Server
		session *runningSession
	)

	BeforeEach(func() {
		srv = fakeserver.New(
			fakeserver.WithMembers(ada, bob, bot),
			fakeserver.WithChats(
				chat.Chat{ID: "planning", Name: "planning", MemberIDs: []string{"ada", "bob"}, UpdatedAt: t0},
				chat.Chat{ID: "random", MemberIDs: []string{"ada", "bob", "scribe"}, UpdatedAt: t0.Add(time.Minute)},
			),
			fakeserver.WithMessages("planning",
				chat.Message{ID: "p1", Type: chat.MessageTypeMember, SenderID: "bob", Content: text("agenda?"), CreatedAt: t0},
				chat.Message{ID: "p2", Type: chat.MessageTypeSystem, Content: text("scribe joined"), CreatedAt: t0.Add(time.Second)},
			),
		)
		ts = srv.Start()
	})

	AfterEach(func() {
		if session != nil {
			session.stop()
			session = nil
		}
		ts.Close()
	})

	Context("on connect", func() {
		BeforeEach(func() {
			session = startSession(ts.URL, "ada", "")
		})

		It("loads the chat snapshot", func() {
			Eventually(func() int { return len(session.Store.Chats()) }).Should(Equal(2))
			Expect(session.Store.State()).To(Equal(store.NoActiveChat))

			chats := session.Store.ChatsByActivity()
			Expect(chats[0].ID).To(Equal("random"))
		})

		It("loads members through the API", func() {
			members, err := session.Chat.LoadMembers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(HaveLen(3))

			m, ok := session.Store.Member("scribe")
			Expect(ok).To(BeTrue())
			Expect(m.IsProgram()).To(BeTrue())
		})
	})

	Context("with an active chat", func() {
		BeforeEach(func() {
			session = startSession(ts.URL, "ada", "")
			Eventually(func() int { return len(session.Store.Chats()) }).Should(Equal(2))
			Expect(session.Chat.SelectChat(ctx, "planning")).To(Succeed())
		})

		It("replaces messages with the requested history", func() {
			Eventually(session.Store.State).Should(Equal(store.ActiveChatReady))
			Expect(activeTexts(session.Store)).To(Equal([]string{"agenda?", "scribe joined"}))
		})

		It("appends live messages for the active chat only", func() {
			Eventually(session.Store.State).Should(Equal(store.ActiveChatReady))

			srv.PushMessage(chat.Message{ID: "r1", Type: chat.MessageTypeMember, SenderID: "bob", ChatID: "random", Content: text("lunch?"), CreatedAt: t0.Add(time.Hour)})
			srv.PushMessage(chat.Message{ID: "p3", Type: chat.MessageTypeMember, SenderID: "bob", ChatID: "planning", Content: text("item one"), CreatedAt: t0.Add(time.Hour)})

			Eventually(func() []string { return activeTexts(session.Store) }).Should(Equal([]string{"agenda?", "scribe joined", "item one"}))

			random, ok := session.Store.Chat("random")
			Expect(ok).To(BeTrue())
			Expect(random.LatestMessage).NotTo(BeNil())
			Expect(random.LatestMessage.Content.Text).To(Equal("lunch?"))
		})

		It("reconciles an optimistic send with the server echo", func() {
			Eventually(session.Store.State).Should(Equal(store.ActiveChatReady))

			sent, err := session.Chat.SendMessage(ctx, "on it")
			Expect(err).NotTo(HaveOccurred())
			Expect(sent.Delivery).To(Equal(chat.Pending))

			Eventually(func() chat.DeliveryState {
				messages := session.Store.ActiveMessages()
				return messages[len(messages)-1].Delivery
			}).Should(Equal(chat.Delivered))

			messages := session.Store.ActiveMessages()
			Expect(messages).To(HaveLen(3))
			Expect(messages[2].ID).NotTo(Equal(sent.ID))
			Expect(messages[2].SenderID).To(Equal("ada"))
			Expect(srv.Messages("planning")).To(HaveLen(3))
		})

		It("skips malformed frames and keeps going", func() {
			Eventually(session.Store.State).Should(Equal(store.ActiveChatReady))

			srv.BroadcastRaw(`{"event":"newMessage","data":`)
			srv.BroadcastRaw(`{"event":"typing","data":{}}`)
			srv.PushMessage(chat.Message{ID: "p3", Type: chat.MessageTypeMember, SenderID: "bob", ChatID: "planning", Content: text("still here")})

			Eventually(func() []string { return activeTexts(session.Store) }).Should(ContainElement("still here"))
			Expect(session.Channel.Connected()).To(BeTrue())
		})

		It("re-baselines after the connection drops", func() {
			Eventually(session.Store.State).Should(Equal(store.ActiveChatReady))

			srv.DropConnections()
			srv.PushMessage(chat.Message{ID: "p3", Type: chat.MessageTypeMember, SenderID: "bob", ChatID: "planning", Content: text("missed while away")})

			Eventually(srv.Connects).Should(Equal(2))
			Eventually(session.Store.Connected).Should(BeTrue())
			Eventually(func() []string { return activeTexts(session.Store) }).Should(ContainElement("missed while away"))
			Expect(session.Store.ActiveChatID()).To(Equal("planning"))

			var histories int
			for _, name := range srv.Commands() {
				if name == events.CommandChatHistory {
					histories++
				}
			}
			Expect(histories).To(Equal(2))
		})
	})

	Context("creating chats", func() {
		BeforeEach(func() {
			session = startSession(ts.URL, "ada", "")
			Eventually(func() int { return len(session.Store.Chats()) }).Should(Equal(2))
		})

		It("creates, stores and opens the chat", func() {
			created, err := session.Chat.CreateChat(ctx, controllersInput([]string{"bob", "scribe"}, "design"))
			Expect(err).NotTo(HaveOccurred())
			Expect(created.MemberIDs).To(ConsistOf("bob", "scribe", "ada"))
			Expect(created.Creator).To(Equal("ada"))

			Expect(session.Store.ActiveChatID()).To(Equal(created.ID))
			Eventually(session.Store.State).Should(Equal(store.ActiveChatReady))
			Expect(session.Store.ActiveMessages()).To(BeEmpty())
		})

		It("picks up chats announced by the server", func() {
			srv.AddChat(chat.Chat{ID: "retro", Name: "retro", MemberIDs: []string{"ada", "bob"}, UpdatedAt: t0.Add(time.Hour)})

			Eventually(func() bool {
				_, ok := session.Store.Chat("retro")
				return ok
			}).Should(BeTrue())
			Expect(session.Store.ChatsByActivity()[0].ID).To(Equal("retro"))
		})
	})

	Context("when the server does not echo client ids", func() {
		BeforeEach(func() {
			ts.Close()
			srv = fakeserver.New(
				fakeserver.WithMembers(ada, bob),
				fakeserver.WithChats(chat.Chat{ID: "planning", MemberIDs: []string{"ada", "bob"}}),
				fakeserver.WithoutClientIDEcho(),
			)
			ts = srv.Start()
			session = startSession(ts.URL, "ada", "")
			Eventually(func() int { return len(session.Store.Chats()) }).Should(Equal(1))
			Expect(session.Chat.SelectChat(ctx, "planning")).To(Succeed())
			Eventually(session.Store.State).Should(Equal(store.ActiveChatReady))
		})

		It("matches the echo by sender and text", func() {
			_, err := session.Chat.SendMessage(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() []chat.DeliveryState {
				var states []chat.DeliveryState
				for _, m := range session.Store.ActiveMessages() {
					states = append(states, m.Delivery)
				}
				return states
			}).Should(Equal([]chat.DeliveryState{chat.Delivered}))
		})
	})

	Context("with two clients", func() {
		var other *runningSession

		BeforeEach(func() {
			session = startSession(ts.URL, "ada", "")
			other = startSession(ts.URL, "bob", "latest_update_wins")
			for _, s := range []*runningSession{session, other} {
				Eventually(func() int { return len(s.Store.Chats()) }).Should(Equal(2))
				Expect(s.Chat.SelectChat(ctx, "planning")).To(Succeed())
				Eventually(s.Store.State).Should(Equal(store.ActiveChatReady))
			}
		})

		AfterEach(func() {
			other.stop()
		})

		It("delivers one client's message to the other", func() {
			_, err := session.Chat.SendMessage(ctx, "ping")
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() []string { return activeTexts(other.Store) }).Should(ContainElement("ping"))
			last := other.Store.ActiveMessages()[2]
			Expect(last.SenderID).To(Equal("ada"))
			Expect(last.Delivery).To(Equal(chat.Delivered))
		})
	})
})
