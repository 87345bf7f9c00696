package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/config"
	"github.com/killallgit/huddle/pkg/controllers"
)

func newAPIClient(cfg *config.Config) *api.Client {
	var opts []api.Option
	if cfg.API.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.API.Timeout))
	}
	return api.NewClient(cfg.API.URL, chat.NewIdentity(cfg.Identity.UserID), opts...)
}

var membersCmd = &cobra.Command{
	Use:     "members",
	Aliases: []string{"member"},
	Short:   "List members",
	Long:    `List every member known to the chat server`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, err := loadAppConfig()
		if err != nil {
			return err
		}
		controller := controllers.NewMembersController(newAPIClient(appCfg.Config))
		return controller.ListMembers(cmd.Context(), cmd.OutOrStdout())
	},
}

var memberUpdateCmd = &cobra.Command{
	Use:   "update <member-id>",
	Short: "Update a member's profile",
	Long: `Update the given fields of a member. Fields that are not passed are left
unchanged; --clear-<field> sets a field to null.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, err := loadAppConfig()
		if err != nil {
			return err
		}

		req := api.UpdateMemberRequest{MemberID: args[0]}
		req.Name = nullableFlag(cmd, "name")
		req.Email = nullableFlag(cmd, "email")
		req.SystemMessage = nullableFlag(cmd, "system-message")
		req.Description = nullableFlag(cmd, "description")
		if cmd.Flags().Changed("type") {
			value, _ := cmd.Flags().GetString("type")
			memberType := chat.MemberType(value)
			if memberType != chat.MemberTypeHuman && memberType != chat.MemberTypeProgram {
				return fmt.Errorf("invalid member type %q", value)
			}
			req.Type = api.Set(memberType)
		}

		controller := controllers.NewMembersController(newAPIClient(appCfg.Config))
		updated, err := controller.Update(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", updated.DisplayName(), updated.ID)
		return nil
	},
}

// nullableFlag maps --<name> to a set value and --clear-<name> to null
func nullableFlag(cmd *cobra.Command, name string) api.Nullable[string] {
	if clear, _ := cmd.Flags().GetBool("clear-" + name); clear {
		return api.Null[string]()
	}
	if cmd.Flags().Changed(name) {
		value, _ := cmd.Flags().GetString(name)
		return api.Set(value)
	}
	return api.Nullable[string]{}
}

func addNullableFlag(cmd *cobra.Command, name, usage string) {
	cmd.Flags().String(name, "", usage)
	cmd.Flags().Bool("clear-"+name, false, "set "+name+" to null")
	cmd.MarkFlagsMutuallyExclusive(name, "clear-"+name)
}

func init() {
	addNullableFlag(memberUpdateCmd, "name", "display name")
	addNullableFlag(memberUpdateCmd, "email", "email address")
	addNullableFlag(memberUpdateCmd, "system-message", "system message for program members")
	addNullableFlag(memberUpdateCmd, "description", "short description")
	memberUpdateCmd.Flags().String("type", "", "HUMAN or PROGRAM")

	membersCmd.AddCommand(memberUpdateCmd)
	rootCmd.AddCommand(membersCmd)
}
