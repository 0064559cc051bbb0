package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/woodruffw/kbs2/internal/agent"
	"github.com/woodruffw/kbs2/internal/config"
)

// Exit codes for "agent query", per spec.md §6.
const (
	exitQueryCached    = 0
	exitQueryNotCached = 1
	exitQueryNotApplic = 2
	exitQueryUnreach   = 3
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agent",
		Short:   "Interact with the key-holding agent",
		GroupID: "agent",
	}

	cmd.AddCommand(agentRunCmd(), agentQueryCmd(), agentFlushCmd(), agentQuitCmd())
	return cmd
}

func agentRunCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			if socketPath == "" {
				sp, err := agent.SocketPath()
				if err != nil {
					return err
				}
				socketPath = sp
			}

			srv := agent.NewServer(socketPath)
			fmt.Fprintf(os.Stderr, "kbs2 agent listening on %s\n", socketPath)
			return srv.Serve()
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "socket path (default: the per-user kbs2 agent socket)")
	return cmd
}

func agentQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <public-key>",
		Short: "Query whether a key is cached by the agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if !cfg.Wrapped {
				os.Exit(exitQueryNotApplic)
			}

			socketPath, err := agent.SocketPath()
			if err != nil {
				return err
			}

			client := agent.NewClient(socketPath)
			cached, err := client.QueryKey(args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitQueryUnreach)
			}
			if cached {
				os.Exit(exitQueryCached)
			}
			os.Exit(exitQueryNotCached)
			return nil
		},
	}
}

func agentFlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Clear the agent's key cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			socketPath, err := agent.SocketPath()
			if err != nil {
				return err
			}
			return agent.NewClient(socketPath).FlushKeys()
		},
	}
}

func agentQuitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "Ask the agent to exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			socketPath, err := agent.SocketPath()
			if err != nil {
				return err
			}
			return agent.NewClient(socketPath).Quit()
		},
	}
}
