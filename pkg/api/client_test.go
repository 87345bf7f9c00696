package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

type recordedRequest struct {
	Method string
	Path   string
	User   string
	Cookie string
	Body   map[string]any
}

var _ = Describe("Client", func() {
	var (
		client   *api.Client
		server   *httptest.Server
		requests []recordedRequest
		handler  http.HandlerFunc
		ctx      context.Context
	)

	record := func(r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, User: r.Header.Get(api.IdentityHeader)}
		if c, err := r.Cookie("session"); err == nil {
			rec.Cookie = c.Value
		}
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			if len(data) > 0 {
				Expect(json.Unmarshal(data, &rec.Body)).To(Succeed())
			}
		}
		requests = append(requests, rec)
	}

	BeforeEach(func() {
		requests = nil
		ctx = context.Background()
		handler = func(w http.ResponseWriter, r *http.Request) {
			record(r)
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/chat/members":
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "s-123", Path: "/"})
				w.Write([]byte(`[
					{"id": "a", "name": "Ada", "type": "PROGRAM", "systemMessage": "be brief"},
					{"id": "user", "name": "You", "type": "HUMAN", "email": "me@example.com"}
				]`))
			case "/chat/create":
				w.Write([]byte(`{"id": "c1", "name": "Planning", "memberIds": ["a", "user"],
					"creator": "user", "createdAt": "2024-05-01T09:00:00Z", "updatedAt": "2024-05-01T09:00:00Z"}`))
			case "/chat/update-member":
				w.Write([]byte(`{"id": "a", "name": "Ada Prime", "type": "PROGRAM"}`))
			case "/chat/update-chat":
				w.Write([]byte(`{"id": "c1", "name": "X", "topic": "roadmap", "memberIds": ["a", "user"]}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		client = api.NewClient(server.URL+"/", chat.NewIdentity("user"))
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("ListMembers", func() {
		It("should fetch and decode the roster", func() {
			members, err := client.ListMembers(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(members).To(HaveLen(2))
			Expect(members[0].IsProgram()).To(BeTrue())
			Expect(members[0].SystemMessage).To(Equal("be brief"))
			Expect(members[1].Email).To(Equal("me@example.com"))

			Expect(requests).To(HaveLen(1))
			Expect(requests[0].Method).To(Equal(http.MethodGet))
			Expect(requests[0].User).To(Equal("user"))
		})

		It("should send session cookies back on later calls", func() {
			_, err := client.ListMembers(ctx)
			Expect(err).ToNot(HaveOccurred())
			_, err = client.ListMembers(ctx)
			Expect(err).ToNot(HaveOccurred())

			Expect(requests[0].Cookie).To(BeEmpty())
			Expect(requests[1].Cookie).To(Equal("s-123"))
		})

		It("should return an empty slice for a null body", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`null`))
			}
			members, err := client.ListMembers(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(members).ToNot(BeNil())
			Expect(members).To(BeEmpty())
		})
	})

	Describe("CreateChat", func() {
		It("should post the member ids and optional fields", func() {
			created, err := client.CreateChat(ctx, api.CreateChatRequest{
				MemberIDs: []string{"a", "user"},
				Name:      "Planning",
				Creator:   "user",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(created.ID).To(Equal("c1"))
			Expect(created.MemberIDs).To(Equal([]string{"a", "user"}))

			Expect(requests).To(HaveLen(1))
			Expect(requests[0].Method).To(Equal(http.MethodPost))
			Expect(requests[0].Body).To(Equal(map[string]any{
				"memberIds": []any{"a", "user"},
				"name":      "Planning",
				"creator":   "user",
			}))
		})

		It("should refuse an empty member set without calling the server", func() {
			_, err := client.CreateChat(ctx, api.CreateChatRequest{})
			Expect(err).To(HaveOccurred())
			Expect(requests).To(BeEmpty())
		})
	})

	Describe("partial updates", func() {
		It("should omit unset fields and send explicit nulls", func() {
			_, err := client.UpdateMember(ctx, api.UpdateMemberRequest{
				MemberID:    "a",
				Name:        api.Set("Ada Prime"),
				Description: api.Null[string](),
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(requests[0].Path).To(Equal("/chat/update-member"))
			Expect(requests[0].Body).To(Equal(map[string]any{
				"memberId":    "a",
				"name":        "Ada Prime",
				"description": nil,
			}))
		})

		It("should send only the chat fields being changed", func() {
			updated, err := client.UpdateChat(ctx, api.UpdateChatRequest{
				ChatID: "c1",
				Name:   api.Set("X"),
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Name).To(Equal("X"))
			Expect(updated.Topic).To(Equal("roadmap"))

			Expect(requests[0].Body).To(Equal(map[string]any{"chatId": "c1", "name": "X"}))
		})
	})

	Describe("errors", func() {
		It("should surface the status description and server message", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error": "memberIds must not be empty"}`))
			}

			_, err := client.UpdateChat(ctx, api.UpdateChatRequest{ChatID: "c1", Name: api.Set("X")})

			Expect(err).To(HaveOccurred())
			Expect(api.IsStatus(err, http.StatusBadRequest)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("400 Bad Request"))
			Expect(err.Error()).To(ContainSubstring("memberIds must not be empty"))
		})

		It("should treat any non-2xx status as failure", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}

			_, err := client.ListMembers(ctx)

			var statusErr *api.StatusError
			Expect(err).To(BeAssignableToTypeOf(statusErr))
			Expect(err.Error()).To(Equal("listMembers failed: 503 Service Unavailable"))
		})

		It("should wrap transport failures", func() {
			server.Close()
			_, err := client.ListMembers(ctx)
			Expect(err).To(HaveOccurred())
			Expect(api.IsStatus(err, 0)).To(BeFalse())
			Expect(err.Error()).To(ContainSubstring("listMembers request failed"))
		})

		It("should honour context cancellation", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := client.ListMembers(cancelled)
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})

var _ = Describe("Nullable", func() {
	It("should apply set, null and unset fields", func() {
		member := chat.Member{ID: "a", Name: "Ada", Email: "ada@example.com", Description: "old"}
		req := api.UpdateMemberRequest{
			MemberID:    "a",
			Name:        api.Set("Ada Prime"),
			Description: api.Null[string](),
		}

		got := req.ApplyTo(member)

		Expect(got.Name).To(Equal("Ada Prime"))
		Expect(got.Email).To(Equal("ada@example.com"))
		Expect(got.Description).To(BeEmpty())
	})

	It("should decode null as an explicit clear and absence as unset", func() {
		var req api.UpdateChatRequest
		Expect(json.Unmarshal([]byte(`{"chatId":"c1","topic":null,"name":"n"}`), &req)).To(Succeed())

		Expect(req.Topic.IsNull()).To(BeTrue())
		Expect(req.Name.IsSet()).To(BeTrue())
		Expect(req.Context.IsZero()).To(BeTrue())
		Expect(req.IsEmpty()).To(BeFalse())
		Expect(api.UpdateChatRequest{ChatID: "c1"}.IsEmpty()).To(BeTrue())
	})
})
