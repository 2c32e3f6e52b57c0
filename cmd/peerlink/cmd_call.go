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

// callCmd dials a peer and stays in the call until it ends or the user
// interrupts.
var callCmd = &cobra.Command{
	Use:   "call <peer>",
	Short: "Place a call to a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		peerID := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess := session.New(cfg, globalLogger)

		runErr := make(chan error, 1)
		go func() { runErr <- sess.Run(ctx) }()

		if err := sess.WaitReady(ctx); err != nil {
			return <-runErr
		}

		pc, err := sess.Dial(ctx, peerID)
		if err != nil {
			return err
		}
		fmt.Printf("calling %s (call %s)\n", peerID, pc.CallID())

		for {
			select {
			case <-ctx.Done():
				sess.Hangup(context.Background())
				return nil
			case err := <-runErr:
				return err
			case u := <-sess.Updates():
				fmt.Printf("call %s: %s\n", u.CallID, u.State)
				if u.State == call.StateEnded {
					fmt.Printf("ended by %s (%s)\n", u.HangupParty, u.HangupReason)
					return nil
				}
			}
		}
	},
}
