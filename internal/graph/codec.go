package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Encode writes the graph as indented JSON. The export round-trips: Decode of
// the output yields an equivalent graph, missing flags and metadata included.
func Encode(w io.Writer, g *Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("graph: encode: %w", err)
	}
	return nil
}

// Decode reads a serialized graph and rebuilds its adjacency indexes.
func Decode(r io.Reader) (*Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("graph: decode: %w", err)
	}
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	g.Reindex()
	return &g, nil
}

// Save writes the graph to a file, replacing any previous content.
func Save(path string, g *Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("graph: save %s: %w", path, err)
	}
	if err := Encode(f, g); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("graph: save %s: %w", path, err)
	}
	return nil
}

// Load reads a graph previously written by Save.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("graph: load %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}
