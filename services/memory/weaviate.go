// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memory

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var weaviateTracer = otel.Tracer("eduguard.memory.weaviate")

// NoteClassName is the Weaviate class holding knowledge-base chunks.
const NoteClassName = "Note"

// Embedder turns text into a vector. Satisfied by *EmbeddingClient.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunk is one ingested knowledge-base record.
type Chunk struct {
	Text    string
	Source  string
	ChunkID int
}

// VectorStore is the semantic retrieval backend over Weaviate. Vectors
// come from the external embedding service; the class is declared with
// vectorizer "none".
type VectorStore struct {
	client   *weaviate.Client
	embedder Embedder
}

// NewWeaviateClient builds a client from WEAVIATE_SERVICE_URL.
func NewWeaviateClient() (*weaviate.Client, error) {
	rawURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if rawURL == "" {
		return nil, fmt.Errorf("WEAVIATE_SERVICE_URL environment variable not set")
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("WEAVIATE_SERVICE_URL is invalid: %q", rawURL)
	}
	return weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
}

// NewVectorStore wraps an initialized client and embedder.
func NewVectorStore(client *weaviate.Client, embedder Embedder) *VectorStore {
	return &VectorStore{client: client, embedder: embedder}
}

// noteSchema declares the Note class.
func noteSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       NoteClassName,
		Description: "A knowledge-base chunk used to ground tutoring answers.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The chunk text.",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "The originating knowledge-base file.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "chunk_id",
				DataType:        []string{"int"},
				Description:     "Position of the chunk within its source.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureSchema creates the Note class if it does not exist.
func (v *VectorStore) EnsureSchema(ctx context.Context) error {
	_, err := v.client.Schema().ClassGetter().WithClassName(NoteClassName).Do(ctx)
	if err == nil {
		slog.Info("Schema already exists", "class", NoteClassName)
		return nil
	}
	slog.Info("Schema not found, creating it...", "class", NoteClassName)
	if err := v.client.Schema().ClassCreator().WithClass(noteSchema()).Do(ctx); err != nil {
		return fmt.Errorf("failed to create schema for class %s: %w", NoteClassName, err)
	}
	return nil
}

// Ready reports whether the backing Weaviate instance answers its
// readiness probe. Service start treats a failure here as fatal: a
// tutoring run without a knowledge base cannot ground its answers.
func (v *VectorStore) Ready(ctx context.Context) error {
	isReady, err := v.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate readiness check failed: %w", err)
	}
	if !isReady {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}

// Search embeds the query and returns the content of the k nearest
// Note chunks, best first.
func (v *VectorStore) Search(ctx context.Context, query string, k int) ([]string, error) {
	ctx, span := weaviateTracer.Start(ctx, "VectorStore.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("search.k", k))

	vector, err := v.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	nearVector := v.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := v.client.GraphQL().Get().
		WithClassName(NoteClassName).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "weaviate query failed")
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search error: %s", result.Errors[0].Message)
	}

	hits := parseNoteContents(result.Data)
	span.SetAttributes(attribute.Int("search.hits", len(hits)))
	return hits, nil
}

// parseNoteContents walks the GraphQL Get payload and pulls out the
// content of each Note, preserving result order.
func parseNoteContents(data map[string]models.JSONObject) []string {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	notes, ok := get[NoteClassName].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(notes))
	for _, raw := range notes {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if content, ok := obj["content"].(string); ok && content != "" {
			out = append(out, content)
		}
	}
	return out
}

// AddBatch embeds and inserts chunks in one batch request. Object IDs
// are derived from the chunk text so re-ingesting the same file is
// idempotent.
func (v *VectorStore) AddBatch(ctx context.Context, chunks []Chunk) (int, error) {
	ctx, span := weaviateTracer.Start(ctx, "VectorStore.AddBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(chunks)))

	if len(chunks) == 0 {
		return 0, nil
	}

	objects := make([]*models.Object, len(chunks))
	for i, chunk := range chunks {
		vector, err := v.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			span.RecordError(err)
			return 0, fmt.Errorf("failed to embed chunk %d of %s: %w", chunk.ChunkID, chunk.Source, err)
		}
		hash := sha256.Sum256([]byte(chunk.Text))
		docUUID, _ := uuid.FromBytes(hash[:16])

		objects[i] = &models.Object{
			Class:  NoteClassName,
			ID:     strfmt.UUID(docUUID.String()),
			Vector: vector,
			Properties: map[string]interface{}{
				"content":  chunk.Text,
				"source":   chunk.Source,
				"chunk_id": chunk.ChunkID,
			},
		}
	}

	resp, err := v.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch import failed")
		return 0, fmt.Errorf("failed to save objects to Weaviate: %w", err)
	}

	created := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			created++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in Weaviate batch item", "error", errItem.Message)
			}
		}
	}
	return created, nil
}
