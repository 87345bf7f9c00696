package cmd

import (
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print chat events without the interface",
	Long: `Connect to the chat server and print the chat list, new chats and
messages as they arrive. With --chat the chat's history is printed too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, err := loadAppConfig()
		if err != nil {
			return err
		}
		appCfg.Watch = true
		appCfg.ChatID, _ = cmd.Flags().GetString("chat")
		appCfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
		appCfg.Out = cmd.OutOrStdout()
		return RunApplication(cmd.Context(), appCfg)
	},
}

func init() {
	watchCmd.Flags().String("chat", "", "chat id to follow")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(watchCmd)
}
