package controllers_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/controllers"
)

var _ = Describe("ChatsController", func() {
	var (
		client     *MockAPIClient
		controller *controllers.ChatsController
		ctx        context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &MockAPIClient{}
		controller = controllers.NewChatsController(client, chat.NewIdentity("user"))
	})

	AfterEach(func() {
		client.AssertExpectations(GinkgoT())
	})

	Describe("Create", func() {
		It("should reject an empty selection without calling the server", func() {
			_, err := controller.Create(ctx, controllers.NewChatInput{MemberIDs: []string{"", ""}})
			Expect(controllers.IsValidation(err)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("at least one member")))
		})

		It("should de-duplicate members and record the creator", func() {
			client.On("CreateChat", ctx, api.CreateChatRequest{
				MemberIDs: []string{"a", "b", "user"},
				Name:      "standup",
				Topic:     "daily",
				Context:   "notes",
				Creator:   "user",
			}).Return(chat.Chat{ID: "c1", MemberIDs: []string{"a", "b", "user"}, Creator: "user"}, nil).Once()

			created, err := controller.Create(ctx, controllers.NewChatInput{
				MemberIDs: []string{"a", "b", "a"},
				Name:      " standup ",
				Topic:     "daily\n",
				Context:   "notes",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(created.ID).To(Equal("c1"))
		})

		It("should return the chat even when the server drops the creator", func() {
			client.On("CreateChat", ctx, mock.Anything).Return(chat.Chat{ID: "c1", MemberIDs: []string{"a"}}, nil).Once()

			created, err := controller.Create(ctx, controllers.NewChatInput{MemberIDs: []string{"a"}})

			Expect(err).ToNot(HaveOccurred())
			Expect(created.HasMember("user")).To(BeFalse())
		})
	})

	Describe("Update", func() {
		It("should require a chat id and a change", func() {
			_, err := controller.Update(ctx, api.UpdateChatRequest{Name: api.Set("x")})
			Expect(controllers.IsValidation(err)).To(BeTrue())

			_, err = controller.Update(ctx, api.UpdateChatRequest{ChatID: "c1"})
			Expect(err).To(MatchError("nothing to update"))
		})

		It("should wrap server failures", func() {
			req := api.UpdateChatRequest{ChatID: "c1", Conclusion: api.Null[string]()}
			client.On("UpdateChat", ctx, req).Return(chat.Chat{}, &api.StatusError{Operation: "updateChat", StatusCode: 404, Status: "404 Not Found"}).Once()

			_, err := controller.Update(ctx, req)

			Expect(err).To(MatchError(ContainSubstring("failed to update chat")))
			Expect(api.IsStatus(err, 404)).To(BeTrue())
		})
	})
})
