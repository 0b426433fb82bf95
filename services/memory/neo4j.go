// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jGraph is the persistent knowledge-graph backend. It stores the
// same head/relation/tail triplets as TripletGraph and is selected by
// setting NEO4J_URI; without it the in-memory graph is used.
type Neo4jGraph struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jGraphFromEnv builds a graph from NEO4J_URI, NEO4J_USER,
// NEO4J_PASSWORD and NEO4J_DATABASE. Returns (nil, nil) when
// NEO4J_URI is unset so callers can fall back to TripletGraph.
func NewNeo4jGraphFromEnv(ctx context.Context) (*Neo4jGraph, error) {
	uri := strings.TrimSpace(os.Getenv("NEO4J_URI"))
	if uri == "" {
		return nil, nil
	}
	user := strings.TrimSpace(os.Getenv("NEO4J_USER"))
	if user == "" {
		user = "neo4j"
	}
	password := strings.TrimSpace(os.Getenv("NEO4J_PASSWORD"))
	database := strings.TrimSpace(os.Getenv("NEO4J_DATABASE"))

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to init neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity check failed: %w", err)
	}

	return &Neo4jGraph{driver: driver, database: database}, nil
}

// Close releases the underlying driver.
func (g *Neo4jGraph) Close(ctx context.Context) error {
	if g == nil || g.driver == nil {
		return nil
	}
	return g.driver.Close(ctx)
}

// AddTriplet upserts head -[relation]-> tail.
func (g *Neo4jGraph) AddTriplet(ctx context.Context, head, relation, tail string) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (h:Concept {name: $head})
MERGE (t:Concept {name: $tail})
MERGE (h)-[r:RELATES {relation: $relation}]->(t)
`, map[string]any{"head": head, "relation": relation, "tail": tail})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert triplet: %w", err)
	}
	return nil
}

// Query returns one snippet per relationship reachable from concept
// within depth hops, formatted like TripletGraph output.
func (g *Neo4jGraph) Query(ctx context.Context, concept string, depth int) ([]string, error) {
	if depth <= 0 {
		return nil, nil
	}
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: g.database,
	})
	defer session.Close(ctx)

	// Cypher cannot parameterize variable-length bounds.
	query := fmt.Sprintf(`
MATCH path = (a:Concept {name: $concept})-[:RELATES*1..%d]->(:Concept)
UNWIND relationships(path) AS rel
WITH DISTINCT startNode(rel) AS h, rel, endNode(rel) AS t
RETURN h.name AS head, rel.relation AS relation, t.name AS tail
ORDER BY head, tail, relation
`, depth)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"concept": concept})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		snippets := make([]string, 0, len(records))
		for _, record := range records {
			head, _, _ := neo4j.GetRecordValue[string](record, "head")
			relation, _, _ := neo4j.GetRecordValue[string](record, "relation")
			tail, _, _ := neo4j.GetRecordValue[string](record, "tail")
			snippets = append(snippets, fmt.Sprintf("%s -[%s]-> %s", head, relation, tail))
		}
		return snippets, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j graph query failed: %w", err)
	}
	return out.([]string), nil
}

// Nodes lists every concept name, sorted, as the seed-selection
// inventory.
func (g *Neo4jGraph) Nodes(ctx context.Context) ([]string, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: g.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (c:Concept) RETURN c.name AS name ORDER BY name`, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(records))
		for _, record := range records {
			if name, _, err := neo4j.GetRecordValue[string](record, "name"); err == nil && name != "" {
				names = append(names, name)
			}
		}
		return names, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j node listing failed: %w", err)
	}
	return out.([]string), nil
}
