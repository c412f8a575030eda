package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ottodev/otto-tui/internal/config"
	"github.com/ottodev/otto-tui/internal/engine"
	"github.com/ottodev/otto-tui/internal/logging"
	"github.com/ottodev/otto-tui/internal/session"
	"github.com/ottodev/otto-tui/internal/tui"
)

var version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		chat     bool
		logLevel string
	)

	cmd := &cobra.Command{
		Use:     "otto-tui [prompt]",
		Short:   "Terminal session for the otto assistant engine",
		Long:    "otto-tui drives the otto assistant engine from the terminal.\nBy default it runs the given prompt once and exits; --chat opens an\ninteractive session instead.",
		Version: version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			log, err := logging.New(config.LogDir(), cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			defer log.Sync()

			if chat {
				return runChat(cfg, log)
			}
			if len(args) == 0 {
				return fmt.Errorf("a prompt is required unless --chat is set")
			}
			return runOnce(cfg, log, strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVar(&chat, "chat", false, "open an interactive chat session")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")
	return cmd
}

// buildSession wires the engine subprocess, the file context and the ambient
// capture shim into a fresh session. ambientBase is where uncaptured engine
// output lands between tasks.
func buildSession(cfg *config.Config, log *zap.Logger, ambientBase io.Writer) *session.Session {
	ambient := session.NewAmbientWriter(ambientBase)
	eng := engine.NewCommandEngine(cfg.Engine, ambient, log)
	sess := session.New(eng, engine.NewMemoryFileContext(), ambient, log)

	for _, p := range cfg.Context {
		if _, err := sess.Registry().Add(p); err != nil {
			log.Warn("preload context", zap.String("path", p), zap.Error(err))
		}
	}
	return sess
}

func runChat(cfg *config.Config, log *zap.Logger) error {
	sess := buildSession(cfg, log, io.Discard)
	defer sess.Close()

	p := tea.NewProgram(tui.NewModel(sess, cfg, log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// runOnce drives a single prompt through the same session machinery the TUI
// uses and streams the result to stdout.
func runOnce(cfg *config.Config, log *zap.Logger, prompt string) error {
	sess := buildSession(cfg, log, os.Stderr)
	defer sess.Close()

	if _, err := sess.Submit(prompt); err != nil {
		return err
	}

	for {
		<-sess.Bus().Wake()
		for _, u := range sess.Drain() {
			switch msg := u.Msg.(type) {
			case session.ContentChunk:
				fmt.Print(msg.Text)
			case session.DiffReady:
				rec, err := sess.Ledger().Record(msg.DiffText, msg.CommitMessage, msg.RevertToken)
				if err != nil {
					return err
				}
				fmt.Printf("\n%s\n%s\nrevert token: %s\n", rec.CommitMessage, msg.DiffText, rec.RevertToken)
			case session.Failed:
				return msg.Err
			case session.Completed:
				fmt.Println()
				return nil
			}
		}
	}
}
