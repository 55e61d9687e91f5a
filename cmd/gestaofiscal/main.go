// Command gestaofiscal is the development and operations CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "gestaofiscal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var composeFile string

	cmd := &cobra.Command{
		Use:   "gestaofiscal",
		Short: "Gestão Fiscal development CLI",
		Long: `gestaofiscal runs database migrations, seeds sample documents, inspects and approves
documents from the terminal, and wraps the docker compose stack used in development.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yml", "Compose file to use for stack commands")

	cmd.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newPendingCmd(),
		newApproveCmd(),
		newConfigCmd(),
		newUpCmd(&composeFile),
		newDownCmd(&composeFile),
		newLogsCmd(&composeFile),
		newTestCmd(),
		newRunCmd(),
	)
	return cmd
}
