// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL    string
	showContext  bool
	chunkSize    int
	chunkOverlap int
	ingestSource string
	tripletsPath string
	workerCount  int

	rootCmd = &cobra.Command{
		Use:   "eduguard",
		Short: "A CLI to run and manage the EduGuard tutoring service",
		Long: `EduGuard answers student questions through a retrieval-grounded
advisor pipeline with built-in emotional risk assessment and escalation.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the tutoring HTTP service",
		Run:   runServe, // Defined in cmd_serve.go
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Send one question to a running EduGuard service",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAsk, // Defined in cmd_ask.go
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest [file or directory path...]",
		Short: "Chunk and load study materials into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		Run:   runIngest, // Defined in cmd_ingest.go
	}
)

func init() {
	askCmd.Flags().StringVar(&serverURL, "server", "http://localhost:12400", "Base URL of the EduGuard service")
	askCmd.Flags().BoolVar(&showContext, "show-context", false, "Print the retrieved grounding context")

	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "Source label to record on the chunks (defaults to the file name)")
	ingestCmd.Flags().StringVar(&tripletsPath, "triplets", "", "CSV file of head,relation,tail rows to load into the knowledge graph")
	ingestCmd.Flags().IntVar(&chunkSize, "chunk-size", 1200, "Chunk size in characters")
	ingestCmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 200, "Chunk overlap in characters")
	ingestCmd.Flags().IntVar(&workerCount, "workers", 4, "Concurrent files processed during ingestion")

	rootCmd.AddCommand(serveCmd, askCmd, ingestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
