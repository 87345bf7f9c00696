package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Terminal client for group chats",
	Long: `huddle keeps a local view of your chats in sync with a chat server.
It loads the chat list when it connects, follows new chats and messages
as they are pushed, and sends your messages optimistically.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, err := loadAppConfig()
		if err != nil {
			return err
		}
		return RunApplication(cmd.Context(), appCfg)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.huddle/settings.yaml)")

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level")
	rootCmd.PersistentFlags().String("api-url", "", "chat server base url")
	rootCmd.PersistentFlags().StringP("user", "u", "", "member id to act as")
	rootCmd.PersistentFlags().String("merge-policy", "", "first_write_wins or latest_update_wins")
	bindFlags()
}

func bindFlags() {
	flags := rootCmd.PersistentFlags()
	viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	viper.BindPFlag("api.url", flags.Lookup("api-url"))
	viper.BindPFlag("identity.user_id", flags.Lookup("user"))
	viper.BindPFlag("store.merge_policy", flags.Lookup("merge-policy"))
}
