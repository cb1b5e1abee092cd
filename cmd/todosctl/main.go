package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"todos-api/sdk/go/todos"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)
	root := &cobra.Command{
		Use:           "todosctl",
		Short:         "Command line client for the todos API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultServer := os.Getenv("TODOS_SERVER")
	if defaultServer == "" {
		defaultServer = "http://127.0.0.1:8080"
	}
	root.PersistentFlags().StringVar(&server, "server", defaultServer, "base URL of the todos API")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	client := func() *todos.Client {
		return todos.NewClient(server, nil)
	}

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			items, err := client().ListTodos(ctx)
			if err != nil {
				return err
			}
			for i, item := range items {
				line := fmt.Sprintf("%d. %s [%s]", i+1, item.Name, item.Status)
				if item.User != nil {
					line += " @" + item.User.Name
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "add NAME...",
		Short: "Add a todo; multiple words are joined with spaces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			added, err := client().AddTodo(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "added %q [%s]\n", added.Name, added.Status)
			return nil
		},
	})
	return root
}
