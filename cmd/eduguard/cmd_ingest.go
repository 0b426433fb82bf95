// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/EduGuardAI/EduGuard/pkg/logging"
	"github.com/EduGuardAI/EduGuard/services/memory"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"
)

// jsonlRecord is one pre-chunked knowledge-base line:
// {"text": "...", "meta": {"source": "...", "chunk_id": 3}}
type jsonlRecord struct {
	Text string `json:"text"`
	Meta struct {
		Source  string `json:"source"`
		ChunkID int    `json:"chunk_id"`
	} `json:"meta"`
}

func runIngest(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger := logging.New(logging.Config{Level: logging.LevelInfo, Service: "ingest"})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	weaviateClient, err := memory.NewWeaviateClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	embedder, err := memory.NewEmbeddingClient(time.Second * 30)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	store := memory.NewVectorStore(weaviateClient, embedder)
	if err := store.Ready(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: knowledge base is unavailable: %v\n", err)
		os.Exit(1)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	files, err := collectFiles(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no ingestable files found (.txt, .md, .jsonl)")
		os.Exit(1)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)
	for _, file := range files {
		g.Go(func() error {
			chunks, err := chunkFile(file, splitter)
			if err != nil {
				return fmt.Errorf("failed to chunk %s: %w", file, err)
			}
			created, err := store.AddBatch(gctx, chunks)
			if err != nil {
				return fmt.Errorf("failed to ingest %s: %w", file, err)
			}
			slog.Info("Ingested file", "file", file, "chunks", len(chunks), "created", created)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if tripletsPath != "" {
		if err := loadTriplets(ctx, tripletsPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Done. Ingested %d file(s).\n", len(files))
}

// collectFiles expands the argument list, walking directories for
// supported extensions.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".txt", ".md", ".jsonl":
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// chunkFile turns one file into knowledge-base chunks. JSONL files are
// already chunked and pass through; everything else is split.
func chunkFile(path string, splitter textsplitter.TextSplitter) ([]memory.Chunk, error) {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return readJSONLChunks(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pieces, err := splitter.SplitText(string(raw))
	if err != nil {
		return nil, err
	}

	source := ingestSource
	if source == "" {
		source = filepath.Base(path)
	}
	chunks := make([]memory.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, memory.Chunk{Text: piece, Source: source, ChunkID: i})
	}
	return chunks, nil
}

func readJSONLChunks(path string) ([]memory.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []memory.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(rec.Text) == "" {
			continue
		}
		source := rec.Meta.Source
		if source == "" {
			source = filepath.Base(path)
		}
		chunks = append(chunks, memory.Chunk{
			Text:    rec.Text,
			Source:  source,
			ChunkID: rec.Meta.ChunkID,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// loadTriplets reads head,relation,tail rows into the Neo4j graph.
func loadTriplets(ctx context.Context, path string) error {
	graph, err := memory.NewNeo4jGraphFromEnv(ctx)
	if err != nil {
		return err
	}
	if graph == nil {
		return fmt.Errorf("loading triplets requires NEO4J_URI to be set")
	}
	defer graph.Close(ctx)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 3
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	loaded := 0
	for _, row := range rows {
		head := strings.TrimSpace(row[0])
		relation := strings.TrimSpace(row[1])
		tail := strings.TrimSpace(row[2])
		if head == "" || relation == "" || tail == "" {
			continue
		}
		if err := graph.AddTriplet(ctx, head, relation, tail); err != nil {
			return fmt.Errorf("failed to add triplet %s -[%s]-> %s: %w", head, relation, tail, err)
		}
		loaded++
	}
	slog.Info("Loaded knowledge-graph triplets", "file", path, "count", loaded)
	return nil
}
