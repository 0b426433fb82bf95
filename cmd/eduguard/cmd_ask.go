// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/EduGuardAI/EduGuard/services/orchestrator/datatypes"
	"github.com/spf13/cobra"
)

var askHTTPClient = &http.Client{Timeout: time.Minute * 5}

func runAsk(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")

	reqBody, err := json.Marshal(datatypes.TutorRequest{Message: question})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not encode the question: %v\n", err)
		os.Exit(1)
	}

	resp, err := askHTTPClient.Post(serverURL+"/v1/tutor", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not reach the EduGuard service at %s: %v\n", serverURL, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not read the response: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Error: service returned status %d: %s\n",
			resp.StatusCode, strings.TrimSpace(string(body)))
		os.Exit(1)
	}

	var answer datatypes.TutorResponse
	if err := json.Unmarshal(body, &answer); err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not parse the response: %v\n", err)
		os.Exit(1)
	}

	if showContext {
		fmt.Println("=== Retrieved Context ===")
		fmt.Println(answer.RagContext)
		fmt.Println()
	}

	fmt.Println(answer.Response)
	fmt.Println()
	fmt.Printf("[risk] score=%.3f level=%s escalation=%s\n",
		answer.RiskScore, answer.RiskLevel, answer.Escalation)
	if answer.Crisis {
		fmt.Println("[safety] crisis guidance was issued for this exchange")
	}
	if answer.Degraded {
		fmt.Println("[note] parts of the pipeline degraded; the answer may be incomplete")
	}
}
