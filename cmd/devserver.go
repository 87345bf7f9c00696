package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/logger"
	"github.com/killallgit/huddle/pkg/testutil/fakeserver"
)

var devServerCmd = &cobra.Command{
	Use:    "dev-server",
	Short:  "Run an in-memory chat server for local development",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		log := logger.WithComponent("dev_server")

		srv := fakeserver.New(fakeserver.WithMembers(
			chat.Member{ID: "user", Name: "You", Type: chat.MemberTypeHuman},
			chat.Member{ID: "ada", Name: "Ada", Type: chat.MemberTypeHuman},
			chat.Member{ID: "scribe", Name: "Scribe", Type: chat.MemberTypeProgram, Description: "takes notes"},
		))
		server := &http.Server{
			Addr:              addr,
			Handler:           srv,
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", addr)
		log.Info("Dev server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	devServerCmd.Flags().String("addr", "127.0.0.1:8000", "listen address")
	rootCmd.AddCommand(devServerCmd)
}
