package controllers

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/logger"
)

// MemberClient is the subset of the API used for roster management
type MemberClient interface {
	ListMembers(ctx context.Context) ([]chat.Member, error)
	UpdateMember(ctx context.Context, req api.UpdateMemberRequest) (chat.Member, error)
}

type MembersController struct {
	client MemberClient
	log    *logger.Logger
}

func NewMembersController(client MemberClient) *MembersController {
	return &MembersController{
		client: client,
		log:    logger.WithComponent("members_controller"),
	}
}

func (mc *MembersController) List(ctx context.Context) ([]chat.Member, error) {
	mc.log.Debug("Listing members")

	members, err := mc.client.ListMembers(ctx)
	if err != nil {
		mc.log.Error("listMembers failed", "error", err)
		return nil, err
	}

	mc.log.Debug("listMembers succeeded", "member_count", len(members))
	return members, nil
}

func (mc *MembersController) Update(ctx context.Context, req api.UpdateMemberRequest) (chat.Member, error) {
	if req.MemberID == "" {
		return chat.Member{}, &ValidationError{Message: "member id is required"}
	}
	if req.IsEmpty() {
		return chat.Member{}, &ValidationError{Message: "nothing to update"}
	}
	return mc.client.UpdateMember(ctx, req)
}

func (mc *MembersController) ListMembers(ctx context.Context, writer io.Writer) error {
	members, err := mc.client.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}

	if len(members) == 0 {
		fmt.Fprintln(writer, "No members found")
		return nil
	}

	w := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tEMAIL\tDESCRIPTION")

	for _, m := range members {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.ID,
			m.DisplayName(),
			m.Type,
			orDash(m.Email),
			orDash(m.Description))
	}

	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
