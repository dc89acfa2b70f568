package graph

import (
	"reflect"
	"testing"

	"github.com/legacyscape/depgraph/internal/extract"
)

func schedulerFixture() *extract.SchedulerExport {
	return &extract.SchedulerExport{
		Folders: []extract.FolderRecord{
			{Name: "TRAL-DAILY", Datacenter: "CTMP"},
			{Name: "TRAL-NIGHT"},
		},
		Jobs: []extract.JobRecord{
			{
				Name: "TRALCLEA", Folder: "TRAL-DAILY", Application: "TRAL",
				SubApplication: "TRAL-CLEAN", MemName: "TRALCLEA",
				Description: "TRALCLEA = cleanup", DescProgram: "TRALCLEA",
				OutConds: []extract.ConditionRef{{Name: "TRALCLEA-OK", Role: extract.RoleOut, Sign: "+", Odate: "STAT"}},
			},
			{
				Name: "TRALCHKB", Folder: "TRAL-DAILY", Application: "TRAL",
				Description: "TRALCHKB = batch check", DescProgram: "TRALCHKB",
				InConds:  []extract.ConditionRef{{Name: "TRALCLEA-OK", Role: extract.RoleIn, AndOr: "A", Odate: "ODAT"}},
				OutConds: []extract.ConditionRef{{Name: "TRALCHKB-OK", Role: extract.RoleOut, Sign: "+", Odate: "STAT"}},
			},
			{
				Name: "TRALNGT1", Folder: "TRAL-NIGHT",
				InConds: []extract.ConditionRef{{Name: "TRALCHKB-OK", Role: extract.RoleIn, AndOr: "A", Odate: "ODAT"}},
			},
		},
	}
}

func TestBuilderHierarchy(t *testing.T) {
	b := NewBuilder()
	b.AddScheduler(schedulerFixture())
	g := b.Finish()

	folder := g.Node(NodeID(NodeFolder, "TRAL-DAILY"))
	if folder == nil || folder.Datacenter != "CTMP" {
		t.Fatalf("folder node missing or incomplete: %+v", folder)
	}

	// Folder contains application, application contains sub-application,
	// sub-application contains the job.
	assertEdge(t, g, EdgeContains, NodeID(NodeFolder, "TRAL-DAILY"), NodeID(NodeApplication, "TRAL"))
	assertEdge(t, g, EdgeContains, NodeID(NodeApplication, "TRAL"), NodeID(NodeSubApplication, "TRAL-CLEAN"))
	assertEdge(t, g, EdgeContains, NodeID(NodeSubApplication, "TRAL-CLEAN"), NodeID(NodeJob, "TRALCLEA"))
	// A job without application or sub-application hangs off its folder.
	assertEdge(t, g, EdgeContains, NodeID(NodeFolder, "TRAL-NIGHT"), NodeID(NodeJob, "TRALNGT1"))
	// A job with an application but no sub-application hangs off the application.
	assertEdge(t, g, EdgeContains, NodeID(NodeApplication, "TRAL"), NodeID(NodeJob, "TRALCHKB"))
}

func TestBuilderConditionAggregation(t *testing.T) {
	b := NewBuilder()
	b.AddScheduler(schedulerFixture())
	g := b.Finish()

	cond := g.Node(NodeID(NodeCondition, "TRALCLEA-OK"))
	if cond == nil {
		t.Fatal("condition node not created")
	}
	if !reflect.DeepEqual(cond.Producers, []string{"TRALCLEA"}) {
		t.Fatalf("producers = %v", cond.Producers)
	}
	if !reflect.DeepEqual(cond.Consumers, []string{"TRALCHKB"}) {
		t.Fatalf("consumers = %v", cond.Consumers)
	}

	produce := findEdge(g, EdgeProduces, NodeID(NodeJob, "TRALCLEA"), cond.ID)
	if produce == nil || produce.Attrs["sign"] != "+" || produce.Attrs["odate"] != "STAT" {
		t.Fatalf("produces edge attrs wrong: %+v", produce)
	}
	require := findEdge(g, EdgeRequires, NodeID(NodeJob, "TRALCHKB"), cond.ID)
	if require == nil || require.Attrs["and_or"] != "A" || require.Attrs["odate"] != "ODAT" {
		t.Fatalf("requires edge attrs wrong: %+v", require)
	}
}

func TestBuilderMergeIsAppendOnly(t *testing.T) {
	b := NewBuilder()
	export := schedulerFixture()
	b.AddScheduler(export)
	// A second export mentions TRALCLEA with a different folder, a rewritten
	// condition and an extra outbound condition: the scalar and the edge
	// attributes must survive, the new condition must merge.
	b.AddScheduler(&extract.SchedulerExport{Jobs: []extract.JobRecord{{
		Name: "TRALCLEA", Folder: "OTHER-FOLDER",
		OutConds: []extract.ConditionRef{
			{Name: "TRALCLEA-OK", Role: extract.RoleOut, Sign: "-", Odate: "PREV"},
			{Name: "TRALCLEA-ARCH", Role: extract.RoleOut, Sign: "+"},
		},
	}}})
	g := b.Finish()

	job := g.Node(NodeID(NodeJob, "TRALCLEA"))
	if job.Folder != "TRAL-DAILY" {
		t.Fatalf("scalar overwritten: folder = %q", job.Folder)
	}
	if parents := containsParents(g, job.ID); !reflect.DeepEqual(parents, []string{NodeID(NodeSubApplication, "TRAL-CLEAN")}) {
		t.Fatalf("job re-parented by second export: %v", parents)
	}
	cond := g.Node(NodeID(NodeCondition, "TRALCLEA-OK"))
	if !reflect.DeepEqual(cond.Producers, []string{"TRALCLEA"}) {
		t.Fatalf("duplicate producer not deduplicated: %v", cond.Producers)
	}
	produce := findEdge(g, EdgeProduces, job.ID, cond.ID)
	if produce == nil || produce.Attrs["sign"] != "+" || produce.Attrs["odate"] != "STAT" {
		t.Fatalf("duplicate condition rewrote edge attrs: %+v", produce.Attrs)
	}
	if g.Node(NodeID(NodeCondition, "TRALCLEA-ARCH")) == nil {
		t.Fatal("new condition from second export not merged")
	}
}

func TestBuilderJobKeepsFirstParent(t *testing.T) {
	b := NewBuilder()
	// The same job arrives from two exports that disagree on its folder.
	b.AddScheduler(&extract.SchedulerExport{Jobs: []extract.JobRecord{{
		Name: "DUPJOB", Folder: "F1",
	}}})
	b.AddScheduler(&extract.SchedulerExport{Jobs: []extract.JobRecord{{
		Name: "DUPJOB", Folder: "F2",
	}}})
	g := b.Finish()

	parents := containsParents(g, NodeID(NodeJob, "DUPJOB"))
	if !reflect.DeepEqual(parents, []string{NodeID(NodeFolder, "F1")}) {
		t.Fatalf("job has %d CONTAINS parents, want exactly FOLDER::F1: %v", len(parents), parents)
	}
	if !hasIssue(g, "conflicting-grouping") {
		t.Fatalf("conflicting grouping not reported: %v", g.Meta.Issues)
	}
}

func TestBuilderLateGroupingPlacesJob(t *testing.T) {
	b := NewBuilder()
	// First sighting carries no grouping at all; the first record that does
	// still places the job exactly once.
	b.AddScheduler(&extract.SchedulerExport{Jobs: []extract.JobRecord{{Name: "LATEJOB"}}})
	b.AddScheduler(&extract.SchedulerExport{Jobs: []extract.JobRecord{{
		Name: "LATEJOB", Folder: "F1", Application: "APP1",
	}}})
	g := b.Finish()

	parents := containsParents(g, NodeID(NodeJob, "LATEJOB"))
	if !reflect.DeepEqual(parents, []string{NodeID(NodeApplication, "APP1")}) {
		t.Fatalf("late grouping not wired: %v", parents)
	}
}

func TestBuilderProgramsAndTables(t *testing.T) {
	b := NewBuilder()
	b.AddPrograms([]*extract.ProgramRecord{{
		Name: "TRALLOAD", SourcePath: "/src/tralload.pl1",
		Calls:  []string{"TRALAUDT"},
		Tables: map[string][]string{"TDSTAGE": {"SELECT", "UPDATE"}},
	}})
	g := b.Finish()

	prog := g.Node(NodeID(NodeProgram, "TRALLOAD"))
	if prog == nil || prog.SourcePath != "/src/tralload.pl1" {
		t.Fatalf("program node wrong: %+v", prog)
	}
	if g.Node(NodeID(NodeTable, "TDSTAGE")) == nil {
		t.Fatal("table node not created")
	}
	if g.Meta.NodeTypes["pl1_program"] != 1 || g.Meta.NodeTypes["db_table"] != 1 {
		t.Fatalf("metadata counts wrong: %v", g.Meta.NodeTypes)
	}
}

func TestBuilderJCLRecords(t *testing.T) {
	b := NewBuilder()
	b.AddJCL([]*extract.JCLRecord{{
		Name: "TRALCLEA", SourcePath: "/jcl/tralclea.jcl",
		Programs: []string{"TRALCLEA"},
		Procs:    []string{"TRALPROC"},
		Datasets: []string{"STAGEIN"},
		Steps:    []string{"STEP010"},
	}})
	g := b.Finish()

	n := g.Node(NodeID(NodeJCL, "TRALCLEA"))
	if n == nil || n.SourcePath != "/jcl/tralclea.jcl" {
		t.Fatalf("jcl node wrong: %+v", n)
	}
	if !reflect.DeepEqual(n.Calls, []string{"TRALCLEA"}) ||
		!reflect.DeepEqual(n.Procs, []string{"TRALPROC"}) ||
		!reflect.DeepEqual(n.Datasets, []string{"STAGEIN"}) ||
		!reflect.DeepEqual(n.Steps, []string{"STEP010"}) {
		t.Fatalf("jcl record not fully merged: %+v", n)
	}
}

func containsParents(g *Graph, id string) []string {
	var out []string
	for _, e := range g.EdgesTo(id) {
		if e.Type == EdgeContains {
			out = append(out, e.From)
		}
	}
	return out
}

func assertEdge(t *testing.T, g *Graph, et EdgeType, from, to string) {
	t.Helper()
	if findEdge(g, et, from, to) == nil {
		t.Fatalf("edge %s %s -> %s not found", et, from, to)
	}
}

func findEdge(g *Graph, et EdgeType, from, to string) *Edge {
	for _, e := range g.EdgesFrom(from) {
		if e.Type == et && e.To == to {
			return e
		}
	}
	return nil
}
