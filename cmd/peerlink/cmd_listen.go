package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/utc-chat/peerlink/internal/call"
	"github.com/utc-chat/peerlink/internal/session"
)

// listenCmd waits for inbound calls and answers them automatically.
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Wait for inbound calls and answer them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess := session.New(cfg, globalLogger, session.WithAutoAnswer())

		runErr := make(chan error, 1)
		go func() { runErr <- sess.Run(ctx) }()

		if err := sess.WaitReady(ctx); err != nil {
			return <-runErr
		}

		fmt.Printf("listening as %s\n", cfg.Device.Name)

		for {
			select {
			case <-ctx.Done():
				sess.Hangup(context.Background())
				return nil
			case err := <-runErr:
				if ctx.Err() != nil {
					return nil
				}
				return err
			case u := <-sess.Updates():
				fmt.Printf("call %s: %s\n", u.CallID, u.State)
				if u.State == call.StateEnded {
					fmt.Printf("ended by %s (%s)\n", u.HangupParty, u.HangupReason)
				}
			}
		}
	},
}
