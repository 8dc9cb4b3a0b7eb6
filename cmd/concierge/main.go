// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "concierge",
		Short: "The Innkeeper guest-query resolution service",
		Long: `Concierge resolves guest messages through a layered pipeline:
cache, canned answers, knowledge-base search, and generative backends,
escalating to a human when automation should stop.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the resolution HTTP service",
		RunE:  runServe,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the concierge version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("concierge", version)
		},
	}
)

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "concierge.yaml", "path to the config file")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
