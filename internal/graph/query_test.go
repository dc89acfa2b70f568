package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/legacyscape/depgraph/internal/extract"
)

// buildScenario assembles the standing test estate: three scheduler jobs in
// two folders chained through conditions, TRALCLEA executing TRALLOAD, which
// calls TRALAUDT (mutually recursive) plus an unresolvable program, pulls one
// include and touches one table.
func buildScenario(t *testing.T) *Graph {
	t.Helper()
	b := NewBuilder()
	export := schedulerFixture()
	b.AddScheduler(export)

	programs := []*extract.ProgramRecord{
		{
			Name: "TRALCLEA", SourcePath: "/src/tralclea.pl1",
			Calls:    []string{"TRALLOAD"},
			Includes: []string{"TRALCOPY"},
		},
		{
			Name: "TRALLOAD", SourcePath: "/src/tralload.pl1",
			Calls:  []string{"TRALAUDT", "TRALGONE"},
			Tables: map[string][]string{"TDSTAGE": {"SELECT"}},
		},
		{
			Name: "TRALAUDT", SourcePath: "/src/tralaudt.pl1",
			Calls: []string{"TRALLOAD"},
		},
	}
	b.AddPrograms(programs)

	linker := NewLinker(b, programs, nil, nil)
	linker.LinkJobs(export.Jobs)
	linker.ResolvePrograms(map[string]string{"TRALCOPY": "/copy/tralcopy.inc"})
	return b.Finish()
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(buildScenario(t))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestDependenciesOf(t *testing.T) {
	engine := newEngine(t)
	deps, err := engine.DependenciesOf("TRALCHKB")
	if err != nil {
		t.Fatalf("dependencies: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("expected one dependency, got %v", deps)
	}
	d := deps[0]
	if d.Job != "TRALCLEA" || d.Condition != "TRALCLEA-OK" {
		t.Fatalf("unexpected dependency: %+v", d)
	}
	if d.Sign != "+" || d.AndOr != "A" || d.Odate != "ODAT" {
		t.Fatalf("condition attributes not carried: %+v", d)
	}
}

func TestDependentsOf(t *testing.T) {
	engine := newEngine(t)
	deps, err := engine.DependentsOf("TRALCHKB")
	if err != nil {
		t.Fatalf("dependents: %v", err)
	}
	if len(deps) != 1 || deps[0].Job != "TRALNGT1" || deps[0].Condition != "TRALCHKB-OK" {
		t.Fatalf("unexpected dependents: %v", deps)
	}
	if deps[0].Folder != "TRAL-NIGHT" {
		t.Fatalf("dependent folder missing: %+v", deps[0])
	}
}

func TestQueryUnknownJob(t *testing.T) {
	engine := newEngine(t)
	if _, err := engine.DependenciesOf("NOSUCH"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := engine.Chain(context.Background(), "NOSUCH", 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCrossFolder(t *testing.T) {
	engine := newEngine(t)
	cross, err := engine.CrossFolder("TRALNGT1")
	if err != nil {
		t.Fatalf("cross folder: %v", err)
	}
	if len(cross) != 1 || cross[0].Job != "TRALCHKB" || cross[0].Folder != "TRAL-DAILY" {
		t.Fatalf("unexpected cross-folder deps: %v", cross)
	}
	// Same-folder dependencies are not seams.
	cross, err = engine.CrossFolder("TRALCHKB")
	if err != nil {
		t.Fatalf("cross folder: %v", err)
	}
	if len(cross) != 0 {
		t.Fatalf("expected no cross-folder deps, got %v", cross)
	}
}

func TestOrphans(t *testing.T) {
	b := NewBuilder()
	b.AddScheduler(&extract.SchedulerExport{Jobs: []extract.JobRecord{
		{
			Name: "JOBPROD", Folder: "F1",
			OutConds: []extract.ConditionRef{{Name: "NEVER-CONSUMED", Role: extract.RoleOut, Sign: "+"}},
		},
		{
			Name: "JOBWAIT", Folder: "F1",
			InConds: []extract.ConditionRef{{Name: "NEVER-PRODUCED", Role: extract.RoleIn, AndOr: "A"}},
		},
	}})
	engine, err := NewEngine(b.Finish())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	// The kind names the side that is empty.
	unconsumed := engine.Orphans("consumer")
	if len(unconsumed) != 1 || unconsumed[0].Name != "NEVER-CONSUMED" {
		t.Fatalf("consumer orphans = %v", unconsumed)
	}
	unproduced := engine.Orphans("producer")
	if len(unproduced) != 1 || unproduced[0].Name != "NEVER-PRODUCED" {
		t.Fatalf("producer orphans = %v", unproduced)
	}
	if both := engine.Orphans(""); len(both) != 2 {
		t.Fatalf("expected both orphan kinds, got %v", both)
	}
}

func TestHierarchy(t *testing.T) {
	engine := newEngine(t)
	tree, err := engine.Hierarchy(NodeFolder, "TRAL-DAILY", 0)
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	if tree.Type != NodeFolder || len(tree.Children) != 1 {
		t.Fatalf("unexpected root: %+v", tree)
	}
	app := tree.Children[0]
	if app.Name != "TRAL" || app.Type != NodeApplication {
		t.Fatalf("unexpected application level: %+v", app)
	}
	// TRALCHKB hangs off the application directly, TRALCLEA below its
	// sub-application.
	if len(app.Children) != 2 {
		t.Fatalf("application children = %+v", app.Children)
	}

	shallow, err := engine.Hierarchy(NodeFolder, "TRAL-DAILY", 1)
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	if len(shallow.Children) != 0 {
		t.Fatalf("depth bound ignored: %+v", shallow)
	}

	sub, err := engine.Hierarchy(NodeApplication, "TRAL", 0)
	if err != nil {
		t.Fatalf("application-scoped hierarchy: %v", err)
	}
	if sub.Type != NodeApplication || len(sub.Children) != 2 {
		t.Fatalf("unexpected application scope tree: %+v", sub)
	}

	if _, err := engine.Hierarchy(NodeJob, "TRALCLEA", 0); err == nil {
		t.Fatal("job is not a hierarchy scope")
	}
}

func TestSearch(t *testing.T) {
	engine := newEngine(t)
	results := engine.Search("tralc", "", 0)
	if len(results) == 0 {
		t.Fatal("expected case-insensitive matches")
	}
	for _, r := range results {
		if r.Name == "TRALLOAD" {
			t.Fatalf("non-matching node returned: %+v", r)
		}
	}
	jobs := engine.Search("TRAL", NodeJob, 0)
	for _, r := range jobs {
		if r.Type != NodeJob {
			t.Fatalf("type filter ignored: %+v", r)
		}
		if r.Folder == "" {
			t.Fatalf("job hit without folder context: %+v", r)
		}
	}
	if limited := engine.Search("TRAL", "", 2); len(limited) != 2 {
		t.Fatalf("limit ignored: %v", limited)
	}
}

func TestChainTerminatesOnCycle(t *testing.T) {
	engine := newEngine(t)
	// TRALLOAD and TRALAUDT call each other; the expansion must terminate and
	// report each node once.
	result, err := engine.Chain(context.Background(), "TRALCLEA", 10)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	seen := make(map[string]int)
	for _, n := range result.Nodes {
		seen[n.ID]++
		if seen[n.ID] > 1 {
			t.Fatalf("node %s reported twice", n.ID)
		}
	}
	for _, id := range []string{
		NodeID(NodeProgram, "TRALCLEA"),
		NodeID(NodeProgram, "TRALLOAD"),
		NodeID(NodeProgram, "TRALAUDT"),
		NodeID(NodeInclude, "TRALCOPY"),
		NodeID(NodeTable, "TDSTAGE"),
		NodeID(NodeProgram, "TRALGONE"),
	} {
		if seen[id] != 1 {
			t.Fatalf("chain missed %s: %v", id, seen)
		}
	}
	if result.Stats.Programs != 4 || result.Stats.Tables != 1 || result.Stats.Includes != 1 {
		t.Fatalf("unexpected stats: %+v", result.Stats)
	}
	if result.Stats.Missing != 1 {
		t.Fatalf("missing program not counted: %+v", result.Stats)
	}
}

func TestChainDepthBound(t *testing.T) {
	engine := newEngine(t)
	result, err := engine.Chain(context.Background(), "TRALCLEA", 1)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	for _, n := range result.Nodes {
		if n.Depth > 1 {
			t.Fatalf("depth bound exceeded: %+v", n)
		}
	}
	if !result.Stats.Truncated {
		t.Fatal("bounded expansion must be marked truncated")
	}
}

func TestChainVisitCeiling(t *testing.T) {
	// One program fanning out to more call targets than a single expansion may
	// visit. The walk must stop at the ceiling, mark the result truncated and
	// keep the partial subgraph closed: no edge may reference a node that was
	// cut off.
	g := &Graph{Nodes: make(map[string]*Node)}
	add := func(nt NodeType, name string) *Node {
		n := &Node{ID: NodeID(nt, name), Type: nt, Name: name}
		g.Nodes[n.ID] = n
		return n
	}
	job := add(NodeJob, "BIGJOB")
	root := add(NodeProgram, "BIGROOT")
	g.Edges = append(g.Edges, &Edge{Type: EdgeExecutes, From: job.ID, To: root.ID})
	for i := 0; i < maxChainVisits+50; i++ {
		leaf := add(NodeProgram, fmt.Sprintf("LEAF%05d", i))
		g.Edges = append(g.Edges, &Edge{Type: EdgeCalls, From: root.ID, To: leaf.ID})
	}
	g.Reindex()

	engine, err := NewEngine(g)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	result, err := engine.Chain(context.Background(), "BIGJOB", 10)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if !result.Stats.Truncated {
		t.Fatal("ceiling hit but result not marked truncated")
	}
	if result.Stats.Visited != maxChainVisits || len(result.Nodes) != maxChainVisits {
		t.Fatalf("visit ceiling not honoured: visited=%d nodes=%d", result.Stats.Visited, len(result.Nodes))
	}
	ids := make(map[string]struct{}, len(result.Nodes))
	for _, n := range result.Nodes {
		ids[n.ID] = struct{}{}
	}
	for _, e := range result.Edges {
		if _, ok := ids[e.From]; !ok {
			t.Fatalf("edge from node outside the result: %+v", e)
		}
		if _, ok := ids[e.To]; !ok {
			t.Fatalf("edge to node outside the result: %+v", e)
		}
	}
}

func TestChainMemoized(t *testing.T) {
	engine := newEngine(t)
	first, err := engine.Chain(context.Background(), "TRALCLEA", 10)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	second, err := engine.Chain(context.Background(), "TRALCLEA", 10)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if first != second {
		t.Fatal("expected memoized result on repeat query")
	}
}

func TestChainCancelled(t *testing.T) {
	engine := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.Chain(ctx, "TRALCLEA", 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
