package graph

import "context"

// Sink defines the minimal operations required for exporting an assembled
// graph to an external backend. The build pipeline streams nodes and edges
// through a Sink after assembly; the in-process engine never depends on one.
type Sink interface {
	// Available reports whether the backend is reachable and ready to accept
	// writes.
	Available() bool
	// EnsureSchema guarantees that the backend holds the node and edge
	// structures the export needs.
	EnsureSchema(ctx context.Context) error
	// UpsertNode writes one node, replacing any previous version with the
	// same identifier.
	UpsertNode(ctx context.Context, node *Node) error
	// UpsertEdge writes one edge keyed by (type, from, to).
	UpsertEdge(ctx context.Context, edge *Edge) error
	// Close releases resources associated with the sink.
	Close() error
}

type noopSink struct{}

// NoopSink returns a Sink that accepts and discards every write. It stands in
// when no external backend is configured.
func NoopSink() Sink { return noopSink{} }

func (noopSink) Available() bool                         { return false }
func (noopSink) EnsureSchema(context.Context) error      { return nil }
func (noopSink) UpsertNode(context.Context, *Node) error { return nil }
func (noopSink) UpsertEdge(context.Context, *Edge) error { return nil }
func (noopSink) Close() error                            { return nil }

// Export streams every node and edge of a graph into a sink. Unavailable
// sinks are skipped without error so a build never fails on export.
func Export(ctx context.Context, g *Graph, sink Sink) error {
	if sink == nil || !sink.Available() {
		return nil
	}
	if err := sink.EnsureSchema(ctx); err != nil {
		return err
	}
	for _, n := range g.Nodes {
		if err := sink.UpsertNode(ctx, n); err != nil {
			return err
		}
	}
	for _, e := range g.Edges {
		if err := sink.UpsertEdge(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
