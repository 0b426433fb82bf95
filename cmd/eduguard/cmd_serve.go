// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/EduGuardAI/EduGuard/pkg/logging"
	"github.com/EduGuardAI/EduGuard/services/affect"
	"github.com/EduGuardAI/EduGuard/services/agents"
	"github.com/EduGuardAI/EduGuard/services/analytics"
	"github.com/EduGuardAI/EduGuard/services/llm"
	"github.com/EduGuardAI/EduGuard/services/memory"
	"github.com/EduGuardAI/EduGuard/services/orchestrator"
	"github.com/EduGuardAI/EduGuard/services/orchestrator/observability"
	"github.com/EduGuardAI/EduGuard/services/orchestrator/routes"
	"github.com/EduGuardAI/EduGuard/services/safety"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "eduguard-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("eduguard-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newLLMClient picks the model backend from LLM_BACKEND_TYPE.
func newLLMClient(timeout time.Duration) (llm.Client, error) {
	switch os.Getenv("LLM_BACKEND_TYPE") {
	case "openai":
		slog.Info("Using OpenAI LLM backend")
		return llm.NewOpenAIClient(timeout)
	case "ollama":
		slog.Info("Using Ollama LLM backend")
		return llm.NewOllamaClient(timeout)
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to ollama")
		return llm.NewOllamaClient(timeout)
	}
}

// newKnowledgeGraph prefers Neo4j when configured and falls back to
// the in-process triplet graph.
func newKnowledgeGraph(ctx context.Context) (memory.KnowledgeGraph, func(context.Context) error, error) {
	neoGraph, err := memory.NewNeo4jGraphFromEnv(ctx)
	if err != nil {
		return nil, nil, err
	}
	if neoGraph != nil {
		slog.Info("Using Neo4j knowledge graph backend")
		return neoGraph, neoGraph.Close, nil
	}
	slog.Warn("NEO4J_URI not set, using the in-memory knowledge graph")
	return memory.NewTripletGraph(), func(context.Context) error { return nil }, nil
}

func riskThresholdFromEnv() float64 {
	raw := os.Getenv("RISK_THRESHOLD")
	if raw == "" {
		return safety.DefaultRiskThreshold
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("RISK_THRESHOLD is not a number, using default",
			"value", raw, "default", safety.DefaultRiskThreshold)
		return safety.DefaultRiskThreshold
	}
	return threshold
}

// envInt reads a non-negative integer option, warning and falling back
// on bad input.
func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		slog.Warn("Environment option is not a non-negative integer, using default",
			"name", name, "value", raw, "default", def)
		return def
	}
	return v
}

// envDuration reads a Go duration option (e.g. "90s", "2m"), warning
// and falling back on bad input.
func envDuration(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("Environment option is not a positive duration, using default",
			"name", name, "value", raw, "default", def)
		return def
	}
	return d
}

func runServe(cmd *cobra.Command, args []string) {
	port := os.Getenv("EDUGUARD_PORT")
	if port == "" {
		port = "12400"
	}

	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("EDUGUARD_LOG_DIR"),
		Service: "tutor",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	ctx := context.Background()

	// Zero keeps each client's documented default timeout.
	callTimeout := envDuration("EDUGUARD_CALL_TIMEOUT", 0)

	llmClient, err := newLLMClient(callTimeout)
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the LLM client: %v", err)
	}

	weaviateClient, err := memory.NewWeaviateClient()
	if err != nil {
		log.Fatalf("FATAL: Could not create the Weaviate client: %v", err)
	}
	embedder, err := memory.NewEmbeddingClient(callTimeout)
	if err != nil {
		log.Fatalf("FATAL: Could not create the embedding client: %v", err)
	}
	vectorStore := memory.NewVectorStore(weaviateClient, embedder)
	if err := vectorStore.Ready(ctx); err != nil {
		log.Fatalf("FATAL: Knowledge base is unavailable: %v", err)
	}
	if err := vectorStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("FATAL: Could not ensure the Weaviate schema: %v", err)
	}

	kg, closeKG, err := newKnowledgeGraph(ctx)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to the knowledge graph: %v", err)
	}
	defer closeKG(context.Background())

	hybrid := memory.NewHybridMemory(vectorStore, kg)

	builder := memory.NewContextBuilder(hybrid, hybrid)
	builder.K = envInt("EDUGUARD_RAG_K", memory.DefaultK)
	builder.Depth = envInt("EDUGUARD_RAG_DEPTH", memory.DefaultDepth)
	builder.BudgetChars = envInt("EDUGUARD_CONTEXT_BUDGET", memory.DefaultBudgetChars)

	policy, err := safety.NewCrisisPolicy()
	if err != nil {
		log.Fatalf("FATAL: Could not load the crisis policy: %v", err)
	}

	metrics := observability.InitMetrics()

	orch, err := orchestrator.New(orchestrator.PipelineDeps{
		LLM:        llmClient,
		Memory:     builder,
		Detector:   affect.NewDetectorFromEnv(callTimeout),
		Extractor:  analytics.NewExtractor(llmClient, envInt("EDUGUARD_EXTRACT_RETRIES", analytics.DefaultMaxRetries)),
		Parliament: agents.NewParliament(policy),
	}, safety.NewEscalationFromEnv(callTimeout), metrics, orchestrator.Config{
		RiskThreshold: riskThresholdFromEnv(),
		NodeTimeout:   envDuration("EDUGUARD_NODE_TIMEOUT", time.Minute*5),
	})
	if err != nil {
		log.Fatalf("FATAL: Could not build the tutoring pipeline: %v", err)
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("eduguard-service"))
	routes.SetupRoutes(router, orch)

	slog.Info("EduGuard service listening", "port", port,
		"risk_threshold", orch.Threshold())
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
