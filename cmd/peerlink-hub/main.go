// Command peerlink-hub runs the rendezvous signalling server that relays
// call messages between peerlink clients.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/utc-chat/peerlink/internal/signaling"
)

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	hub := signaling.NewHub(logger)
	defer hub.Close()

	logger.Info("hub listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, hub); err != nil {
		fmt.Fprintf(os.Stderr, "hub: %v\n", err)
		os.Exit(1)
	}
}
