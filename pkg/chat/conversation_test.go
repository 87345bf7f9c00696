package chat_test

import (
	"time"

	"github.com/killallgit/huddle/pkg/chat"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Chat", func() {
	var testTime time.Time

	BeforeEach(func() {
		testTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	})

	Describe("DisplayName", func() {
		It("should prefer the name, then the topic, then the id", func() {
			Expect(chat.Chat{ID: "c1", Name: "planning", Topic: "q3"}.DisplayName()).To(Equal("planning"))
			Expect(chat.Chat{ID: "c1", Topic: "q3"}.DisplayName()).To(Equal("q3"))
			Expect(chat.Chat{ID: "c1"}.DisplayName()).To(Equal("c1"))
		})
	})

	Describe("LastActivity", func() {
		It("should use updatedAt without a preview", func() {
			c := chat.Chat{ID: "c1", UpdatedAt: testTime}
			Expect(c.LastActivity()).To(Equal(testTime))
		})

		It("should use the preview when it is newer", func() {
			later := testTime.Add(time.Hour)
			c := chat.Chat{ID: "c1", UpdatedAt: testTime}.WithLatestMessage(chat.Message{ID: "m1", ChatID: "c1", CreatedAt: later})
			Expect(c.LastActivity()).To(Equal(later))
		})

		It("should ignore an older preview", func() {
			c := chat.Chat{ID: "c1", UpdatedAt: testTime}.WithLatestMessage(chat.Message{ID: "m1", ChatID: "c1", CreatedAt: testTime.Add(-time.Hour)})
			Expect(c.LastActivity()).To(Equal(testTime))
		})
	})

	Describe("Clone", func() {
		It("should not share members or the preview", func() {
			original := chat.Chat{ID: "c1", MemberIDs: []string{"a", "b"}}.WithLatestMessage(chat.Message{ID: "m1", ChatID: "c1", Content: chat.TextContent("hi")})

			clone := original.Clone()
			clone.MemberIDs[0] = "z"
			clone.LatestMessage.Content = chat.TextContent("changed")

			Expect(original.MemberIDs).To(Equal([]string{"a", "b"}))
			Expect(original.LatestMessage.Content.Text).To(Equal("hi"))
		})
	})

	Describe("HasConsistentPreview", func() {
		It("should accept a missing preview", func() {
			Expect(chat.Chat{ID: "c1"}.HasConsistentPreview()).To(BeTrue())
		})

		It("should reject a preview from another chat", func() {
			c := chat.Chat{ID: "c1"}.WithLatestMessage(chat.Message{ID: "m1", ChatID: "c2"})
			Expect(c.HasConsistentPreview()).To(BeFalse())
		})
	})

	Describe("UniqueMemberIDs", func() {
		It("should keep first occurrences in order and drop empty ids", func() {
			Expect(chat.UniqueMemberIDs([]string{"b", "a", "", "b", "c", "a"})).To(Equal([]string{"b", "a", "c"}))
		})

		It("should return an empty slice for nil", func() {
			Expect(chat.UniqueMemberIDs(nil)).To(BeEmpty())
		})
	})

	Describe("HasMember", func() {
		It("should find listed members only", func() {
			c := chat.Chat{ID: "c1", MemberIDs: []string{"a", "b"}}
			Expect(c.HasMember("a")).To(BeTrue())
			Expect(c.HasMember("z")).To(BeFalse())
		})
	})

	Describe("Validate", func() {
		It("should require an id", func() {
			Expect(chat.Chat{}.Validate()).To(HaveOccurred())
			Expect(chat.Chat{ID: "c1"}.Validate()).To(Succeed())
		})
	})
})

var _ = Describe("Member", func() {
	It("should fall back to the id for display", func() {
		Expect(chat.Member{ID: "ada"}.DisplayName()).To(Equal("ada"))
		Expect(chat.Member{ID: "ada", Name: "Ada"}.DisplayName()).To(Equal("Ada"))
	})

	It("should identify program members", func() {
		Expect(chat.Member{ID: "bot", Type: chat.MemberTypeProgram}.IsProgram()).To(BeTrue())
		Expect(chat.Member{ID: "ada", Type: chat.MemberTypeHuman}.IsProgram()).To(BeFalse())
	})
})
