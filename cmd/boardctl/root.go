package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"prism-board/board"
	"prism-board/storage"
)

var rootCmd = &cobra.Command{
	Use:   "boardctl",
	Short: "Inspect and reorder your task board from the terminal",
	Long: `boardctl talks to the task API with your bearer token and runs the same
board reconciliation as the web board: moves are applied locally, persisted
as a minimal set of task updates, and rolled back if persistence fails.`,
	SilenceUsage: true,
}

var (
	apiURL     string
	apiToken   string
	jsonOutput bool
	timeout    time.Duration
	verbose    bool
)

var errMoveFailed = errors.New("failed to update task position")

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", os.Getenv("BOARD_API_URL"), "task API base URL (env BOARD_API_URL)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("BOARD_TOKEN"), "bearer token (env BOARD_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log sync details to stderr")
}

// session is one command's board controller and the notices it raised.
type session struct {
	ctrl *board.Controller

	mu      sync.Mutex
	notices []board.Notice
}

func (s *session) failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notices {
		if n.Kind == board.NoticeError {
			return true
		}
	}
	return false
}

func openBoard(cmd *cobra.Command) (*session, context.Context, context.CancelFunc, error) {
	if apiURL == "" {
		return nil, nil, nil, errors.New("missing --api or BOARD_API_URL")
	}
	logger := log.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(log.WarnLevel)
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	s := &session{}
	client := storage.New(apiURL, storage.StaticToken(apiToken), timeout)
	s.ctrl = board.NewController(client, board.Options{
		Logger: logger,
		Notify: func(n board.Notice) {
			s.mu.Lock()
			s.notices = append(s.notices, n)
			s.mu.Unlock()
		},
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	if err := s.ctrl.Load(ctx); err != nil {
		cancel()
		_ = s.ctrl.Close()
		return nil, nil, nil, err
	}
	return s, ctx, func() {
		cancel()
		_ = s.ctrl.Close()
	}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
