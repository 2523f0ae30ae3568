package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/teeny-mcp/pkg/chat"
	"github.com/rcliao/teeny-mcp/pkg/config"
	"github.com/rcliao/teeny-mcp/pkg/logutil"
	"github.com/rcliao/teeny-mcp/pkg/loop"
	"github.com/rcliao/teeny-mcp/pkg/mcpclient"
	"github.com/rcliao/teeny-mcp/pkg/provider"
	"github.com/rcliao/teeny-mcp/pkg/session"
	"github.com/rcliao/teeny-mcp/pkg/toolreg"
)

type chatOptions struct {
	server        string
	maxIterations int
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-iterations") {
				cfg.MaxIterations = opts.maxIterations
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			var server []mcpclient.Option
			if opts.server == "" {
				name, args, err := defaultServerCommand(root.envFile)
				if err != nil {
					return err
				}
				server = append(server, mcpclient.WithCommand(name, args...))
			}
			return runChat(cmd.Context(), cfg, opts.server, server, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "", "tool server script (.py/.js) or command line; defaults to this binary's serve command")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 20, "model calls allowed per turn, 0 for no limit")
	return cmd
}

// defaultServerCommand runs the current executable's serve command.
func defaultServerCommand(envFile string) (string, []string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", nil, fmt.Errorf("locate executable: %w", err)
	}
	return exe, []string{"serve", "--env-file", envFile}, nil
}

func runChat(ctx context.Context, cfg config.Config, serverSpec string, clientOpts []mcpclient.Option, in io.Reader, out io.Writer) error {
	level, err := logutil.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logutil.New(os.Stderr, logutil.Options{Level: level, AddSource: cfg.Debug})

	svc, err := provider.ParseService(cfg.Service)
	if err != nil {
		return err
	}
	pcfg := provider.Config{
		Service:   svc,
		APIKey:    cfg.APIKey(),
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Logger:    log,
	}
	if svc == provider.ServiceOpenAI {
		pcfg.BaseURL = cfg.OpenAIBaseURL
	}
	llm, err := provider.New(ctx, pcfg)
	if err != nil {
		return err
	}

	clientOpts = append(clientOpts, mcpclient.WithLogger(log))
	if cfg.Debug {
		clientOpts = append(clientOpts, mcpclient.WithServerStderr(os.Stderr))
	}
	client := mcpclient.New(serverSpec, clientOpts...)
	defer func() {
		if err := client.Close(); err != nil {
			log.Debug("close mcp session", "err", err)
		}
	}()
	if err := client.Connect(ctx); err != nil {
		return err
	}

	registry := toolreg.NewRegistry(client, log)
	if err := registry.Load(ctx); err != nil {
		return err
	}

	agent := loop.New(llm, registry, client, session.NewConversation(), loop.Config{
		MaxIterations: cfg.MaxIterations,
		Transcript:    out,
	}, log)
	return chat.NewREPL(in, out, agent).Run(ctx)
}
