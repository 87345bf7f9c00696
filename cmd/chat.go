package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/config"
	"github.com/killallgit/huddle/pkg/controllers"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Create and update chats",
}

var chatCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a chat",
	Long:  `Create a chat with the given members. You are added as a member and recorded as its creator.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, err := loadAppConfig()
		if err != nil {
			return err
		}

		members, _ := cmd.Flags().GetStringSlice("member")
		name, _ := cmd.Flags().GetString("name")
		topic, _ := cmd.Flags().GetString("topic")
		background, _ := cmd.Flags().GetString("context")

		created, err := newChatsController(appCfg.Config).Create(cmd.Context(), controllers.NewChatInput{
			MemberIDs: members,
			Name:      name,
			Topic:     topic,
			Context:   background,
		})
		if err != nil {
			return err
		}
		printChat(cmd, "Created", created)
		return nil
	},
}

var chatUpdateCmd = &cobra.Command{
	Use:   "update <chat-id>",
	Short: "Update a chat's details",
	Long: `Update the given fields of a chat. Fields that are not passed are left
unchanged; --clear-<field> sets a field to null.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, err := loadAppConfig()
		if err != nil {
			return err
		}

		updated, err := newChatsController(appCfg.Config).Update(cmd.Context(), api.UpdateChatRequest{
			ChatID:     args[0],
			Name:       nullableFlag(cmd, "name"),
			Topic:      nullableFlag(cmd, "topic"),
			Context:    nullableFlag(cmd, "context"),
			Conclusion: nullableFlag(cmd, "conclusion"),
			Creator:    nullableFlag(cmd, "creator"),
		})
		if err != nil {
			return err
		}
		printChat(cmd, "Updated", updated)
		return nil
	},
}

func newChatsController(cfg *config.Config) *controllers.ChatsController {
	return controllers.NewChatsController(newAPIClient(cfg), chat.NewIdentity(cfg.Identity.UserID))
}

func printChat(cmd *cobra.Command, verb string, c chat.Chat) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s) with %s\n", verb, c.DisplayName(), c.ID, strings.Join(c.MemberIDs, ", "))
}

func init() {
	chatCreateCmd.Flags().StringSliceP("member", "m", nil, "member id (repeatable)")
	chatCreateCmd.Flags().String("name", "", "chat name")
	chatCreateCmd.Flags().String("topic", "", "chat topic")
	chatCreateCmd.Flags().String("context", "", "background for program members")

	addNullableFlag(chatUpdateCmd, "name", "chat name")
	addNullableFlag(chatUpdateCmd, "topic", "chat topic")
	addNullableFlag(chatUpdateCmd, "context", "background for program members")
	addNullableFlag(chatUpdateCmd, "conclusion", "outcome of the chat")
	addNullableFlag(chatUpdateCmd, "creator", "creator member id")

	chatCmd.AddCommand(chatCreateCmd, chatUpdateCmd)
	rootCmd.AddCommand(chatCmd)
}
