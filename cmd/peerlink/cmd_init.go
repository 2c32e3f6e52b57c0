package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/utc-chat/peerlink/internal/config"
)

var (
	initName   string
	initServer string
	initToken  string
)

// initCmd writes a fresh config with a generated party id.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the peerlink config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}

		cfg := config.DefaultConfig()
		cfg.Device.Name = initName
		cfg.Device.PartyID = uuid.NewString()
		cfg.Network.ServerURL = initServer
		cfg.Network.AccessToken = initToken

		if err := config.SaveConfig(path, cfg); err != nil {
			return err
		}

		fmt.Printf("wrote %s (party id %s)\n", path, cfg.Device.PartyID)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "this device's peer id on the hub")
	initCmd.Flags().StringVar(&initServer, "server", "", "WebSocket URL of the signalling hub")
	initCmd.Flags().StringVar(&initToken, "token", "", "bearer token for the hub (optional)")
	_ = initCmd.MarkFlagRequired("name")
	_ = initCmd.MarkFlagRequired("server")
}
