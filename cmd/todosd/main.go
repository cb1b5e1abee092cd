package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type flags struct {
	configPath string
	envFile    string
	store      string
	addr       string
}

// main 是 todos 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Fatalf("todosd 运行失败: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "todosd",
		Short:         "Serve the todos REST and GraphQL API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd.Context(), f)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", os.Getenv("TODOS_CONFIG"), "path to a YAML or JSON config file")
	cmd.Flags().StringVar(&f.envFile, "env-file", "", "path to a .env file loaded before TODOS_* variables")
	cmd.Flags().StringVar(&f.store, "store", "", "override store.driver (memory, sqlite, mysql, postgres, redis)")
	cmd.Flags().StringVar(&f.addr, "addr", "", "override server.address")
	return cmd
}
