// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/textsplitter"
)

func TestCollectFiles_WalksDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# biology"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chunks.jsonl"), []byte(`{"text":"x"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.pdf"), []byte("binary"), 0o644))

	files, err := collectFiles([]string{dir})
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.NotContains(t, f, "ignore.pdf")
	}
}

func TestCollectFiles_MissingPath(t *testing.T) {
	_, err := collectFiles([]string{"/no/such/path"})
	assert.Error(t, err)
}

func TestChunkFile_SplitsPlainText(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("Photosynthesis converts light into chemical energy. ", 40)
	path := filepath.Join(dir, "bio.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(400),
		textsplitter.WithChunkOverlap(50),
	)
	chunks, err := chunkFile(path, splitter)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.Equal(t, "bio.txt", chunk.Source)
		assert.Equal(t, i, chunk.ChunkID)
		assert.NotEmpty(t, chunk.Text)
	}
	assert.Greater(t, len(chunks), 1, "long input splits into multiple chunks")
}

func TestChunkFile_PassesThroughJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.jsonl")
	lines := `{"text": "Osmosis moves water across membranes.", "meta": {"source": "bio-notes", "chunk_id": 7}}

{"text": "Diffusion spreads particles.", "meta": {}}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	chunks, err := chunkFile(path, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Osmosis moves water across membranes.", chunks[0].Text)
	assert.Equal(t, "bio-notes", chunks[0].Source)
	assert.Equal(t, 7, chunks[0].ChunkID)

	assert.Equal(t, "chunks.jsonl", chunks[1].Source, "missing meta falls back to the file name")
	assert.Equal(t, 0, chunks[1].ChunkID)
}

func TestChunkFile_RejectsMalformedJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o644))

	_, err := chunkFile(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}
