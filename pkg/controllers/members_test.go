package controllers_test

import (
	"bytes"
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/controllers"
)

var _ = Describe("MembersController", func() {
	var (
		client     *MockAPIClient
		controller *controllers.MembersController
		ctx        context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &MockAPIClient{}
		controller = controllers.NewMembersController(client)
	})

	AfterEach(func() {
		client.AssertExpectations(GinkgoT())
	})

	Describe("ListMembers", func() {
		It("should print a table of members", func() {
			client.On("ListMembers", ctx).Return([]chat.Member{
				{ID: "a", Name: "Ada", Type: chat.MemberTypeProgram, Description: "planner"},
				{ID: "user", Type: chat.MemberTypeHuman, Email: "me@example.com"},
			}, nil).Once()

			var buf bytes.Buffer
			Expect(controller.ListMembers(ctx, &buf)).To(Succeed())

			output := buf.String()
			Expect(output).To(ContainSubstring("ID"))
			Expect(output).To(ContainSubstring("Ada"))
			Expect(output).To(ContainSubstring("PROGRAM"))
			Expect(output).To(ContainSubstring("me@example.com"))
		})

		It("should say so when the roster is empty", func() {
			client.On("ListMembers", ctx).Return([]chat.Member{}, nil).Once()

			var buf bytes.Buffer
			Expect(controller.ListMembers(ctx, &buf)).To(Succeed())
			Expect(buf.String()).To(Equal("No members found\n"))
		})

		It("should wrap client errors", func() {
			client.On("ListMembers", ctx).Return(nil, errors.New("connection refused")).Once()

			var buf bytes.Buffer
			err := controller.ListMembers(ctx, &buf)
			Expect(err).To(MatchError(ContainSubstring("failed to list members")))
		})
	})

	Describe("Update", func() {
		It("should require a member id and a change", func() {
			_, err := controller.Update(ctx, api.UpdateMemberRequest{Name: api.Set("x")})
			Expect(controllers.IsValidation(err)).To(BeTrue())

			_, err = controller.Update(ctx, api.UpdateMemberRequest{MemberID: "a"})
			Expect(controllers.IsValidation(err)).To(BeTrue())
		})
	})
})
