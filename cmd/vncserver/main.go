// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Command vncserver runs the display server with a demo renderer, an admin
// HTTP endpoint and optional S3 snapshot archiving.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vncserver",
		Short: "Serve a device framebuffer to VNC viewers",
		Long: `vncserver exposes a framebuffer over a minimal RFB 3.3 subset so a stock
VNC viewer can watch and touch the device display.

A demo renderer draws into the framebuffer. Browser viewers can connect
through the admin endpoint's /ws/display WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
