// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package affect tags student messages with emotion scores via an
// external classifier service. Emotion inference never runs
// in-process; without a configured service the pipeline carries empty
// tags and keeps going.
package affect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Scores maps emotion labels (sadness, fear, joy, ...) to
// probabilities in [0,1], as returned by the classifier.
type Scores map[string]float64

// Distressed reports whether the tagged message shows acute negative
// affect: sadness or fear above 0.4.
func (s Scores) Distressed() bool {
	return s["sadness"] > 0.4 || s["fear"] > 0.4
}

// Detector classifies one message. Implementations must be safe for
// concurrent use.
type Detector interface {
	Detect(ctx context.Context, text string) (Scores, error)
}

// NoopDetector is used when no emotion service is configured. It
// returns empty scores so downstream consumers see "no signal" rather
// than an error.
type NoopDetector struct{}

func (NoopDetector) Detect(ctx context.Context, text string) (Scores, error) {
	return Scores{}, nil
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// HTTPDetector calls an external emotion classification service.
type HTTPDetector struct {
	httpClient *http.Client
	url        string
}

// NewDetectorFromEnv reads EMOTION_SERVICE_URL. When unset it returns
// a NoopDetector and logs the fallback; affect tagging is optional.
func NewDetectorFromEnv(timeout time.Duration) Detector {
	url := strings.TrimSpace(os.Getenv("EMOTION_SERVICE_URL"))
	if url == "" {
		slog.Warn("EMOTION_SERVICE_URL not set, affect tagging disabled")
		return NoopDetector{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	slog.Info("Initializing emotion detector", "url", url)
	return &HTTPDetector{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

// Detect implements Detector.
func (d *HTTPDetector) Detect(ctx context.Context, text string) (Scores, error) {
	reqBody, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call the emotion service: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("emotion service returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var parsed classifyResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse emotion response: %w", err)
	}
	return parsed.Scores, nil
}
