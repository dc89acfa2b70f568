package graph

import (
	"fmt"
	"sort"

	"github.com/legacyscape/depgraph/internal/common"
	"github.com/legacyscape/depgraph/internal/extract"
)

// Builder is the single writer of the dependency graph. Nodes are
// deduplicated by identifier; merging may only append to multi-valued
// properties, never overwrite a scalar once set. All inputs are merged during
// one build pass and the graph is immutable after Finish.
type Builder struct {
	g         *Graph
	issues    []Issue
	seenEdges map[string]*Edge
	// containsParent tracks the single CONTAINS parent assigned to each job.
	containsParent map[string]string
}

func NewBuilder() *Builder {
	return &Builder{
		g:              &Graph{Nodes: make(map[string]*Node)},
		seenEdges:      make(map[string]*Edge),
		containsParent: make(map[string]string),
	}
}

// AddIssue records a non-fatal build problem for the final report.
func (b *Builder) AddIssue(kind, subject, detail string) {
	b.issues = append(b.issues, Issue{Kind: kind, Subject: subject, Detail: detail})
}

// ensure returns the node with the given type and name, creating it when
// absent.
func (b *Builder) ensure(t NodeType, name string) *Node {
	id := NodeID(t, name)
	if n, ok := b.g.Nodes[id]; ok {
		return n
	}
	n := &Node{ID: id, Type: t, Name: name}
	b.g.Nodes[id] = n
	return n
}

// edge appends a directed edge unless an identical (type, from, to) edge
// already exists, in which case the existing edge is returned so callers can
// extend its multi-valued properties.
func (b *Builder) edge(t EdgeType, from, to string) *Edge {
	e := &Edge{Type: t, From: from, To: to}
	if existing, ok := b.seenEdges[e.Key()]; ok {
		return existing
	}
	b.seenEdges[e.Key()] = e
	b.g.Edges = append(b.g.Edges, e)
	return e
}

// AddScheduler merges one scheduler export: hierarchy nodes with their
// CONTAINS tree (Folder → Application → SubApplication → Job), job nodes,
// condition nodes with aggregated producer/consumer sets, and the
// PRODUCES/REQUIRES edges carrying sign, join marker and odate.
func (b *Builder) AddScheduler(export *extract.SchedulerExport) {
	if export == nil {
		return
	}
	for _, f := range export.Folders {
		n := b.ensure(NodeFolder, f.Name)
		setScalar(&n.Datacenter, f.Datacenter)
		setScalar(&n.Platform, f.Platform)
	}
	for i := range export.Jobs {
		b.addJob(&export.Jobs[i])
	}
}

func (b *Builder) addJob(job *extract.JobRecord) {
	if job.Name == "" {
		b.AddIssue("malformed-record", job.Folder, "job definition without JOBNAME")
		return
	}
	n := b.ensure(NodeJob, job.Name)
	if conflict := groupingConflict(n, job); conflict != "" {
		b.AddIssue("conflicting-grouping", job.Name, conflict)
	}
	setScalar(&n.Folder, job.Folder)
	setScalar(&n.Application, job.Application)
	setScalar(&n.SubApplication, job.SubApplication)
	setScalar(&n.MemName, job.MemName)
	setScalar(&n.MemLib, job.MemLib)
	setScalar(&n.TaskType, job.TaskType)
	setScalar(&n.Description, job.Description)

	b.addHierarchy(n)

	for _, c := range job.InConds {
		cond := b.ensure(NodeCondition, c.Name)
		cond.Consumers = appendUnique(cond.Consumers, job.Name)
		e := b.edge(EdgeRequires, n.ID, cond.ID)
		e.Attrs = condAttrs(e.Attrs, "and_or", c.AndOr, c.Odate)
	}
	for _, c := range job.OutConds {
		cond := b.ensure(NodeCondition, c.Name)
		cond.Producers = appendUnique(cond.Producers, job.Name)
		e := b.edge(EdgeProduces, n.ID, cond.ID)
		e.Attrs = condAttrs(e.Attrs, "sign", c.Sign, c.Odate)
	}
}

// addHierarchy wires the CONTAINS tree for one job from its established
// grouping scalars. Every job hangs off exactly one parent: its
// sub-application when present, else its application, else its folder. A job
// is placed at most once; the first record that carries a grouping wins, and
// records that disagree are reported as conflicting-grouping issues by addJob
// instead of re-parenting the job.
func (b *Builder) addHierarchy(n *Node) {
	if _, placed := b.containsParent[n.ID]; placed {
		return
	}
	parent := ""
	if n.Folder != "" {
		parent = b.ensure(NodeFolder, n.Folder).ID
	}
	if n.Application != "" {
		app := b.ensure(NodeApplication, n.Application)
		if parent != "" {
			b.edge(EdgeContains, parent, app.ID)
		}
		parent = app.ID
	}
	if n.SubApplication != "" {
		sub := b.ensure(NodeSubApplication, n.SubApplication)
		if parent != "" {
			b.edge(EdgeContains, parent, sub.ID)
		}
		parent = sub.ID
	}
	if parent != "" {
		b.edge(EdgeContains, parent, n.ID)
		b.containsParent[n.ID] = parent
	}
}

// groupingConflict compares a record's grouping against the scalars a job was
// first seen under and describes the first disagreement.
func groupingConflict(n *Node, job *extract.JobRecord) string {
	switch {
	case job.Folder != "" && n.Folder != "" && job.Folder != n.Folder:
		return fmt.Sprintf("folder %s conflicts with established folder %s", job.Folder, n.Folder)
	case job.Application != "" && n.Application != "" && job.Application != n.Application:
		return fmt.Sprintf("application %s conflicts with established application %s", job.Application, n.Application)
	case job.SubApplication != "" && n.SubApplication != "" && job.SubApplication != n.SubApplication:
		return fmt.Sprintf("sub-application %s conflicts with established sub-application %s", job.SubApplication, n.SubApplication)
	}
	return ""
}

// AddPrograms merges procedural-source records: program nodes with their
// extracted symbol lists and db_table nodes for every accessed table.
func (b *Builder) AddPrograms(records []*extract.ProgramRecord) {
	for _, rec := range records {
		if rec == nil || rec.Name == "" {
			continue
		}
		n := b.ensure(NodeProgram, rec.Name)
		setScalar(&n.SourcePath, rec.SourcePath)
		n.Missing = false
		for _, p := range rec.Procedures {
			n.Procedures = appendUnique(n.Procedures, p)
		}
		for _, c := range rec.Calls {
			n.Calls = appendUnique(n.Calls, c)
		}
		for _, inc := range rec.Includes {
			n.Includes = appendUnique(n.Includes, inc)
		}
		for table, ops := range rec.Tables {
			if n.Tables == nil {
				n.Tables = make(map[string][]string)
			}
			for _, op := range ops {
				n.Tables[table] = appendUnique(n.Tables[table], op)
			}
			b.ensure(NodeTable, table)
		}
	}
}

// AddJCL merges legacy job-control records as jcl nodes.
func (b *Builder) AddJCL(records []*extract.JCLRecord) {
	for _, rec := range records {
		if rec == nil || rec.Name == "" {
			continue
		}
		n := b.ensure(NodeJCL, rec.Name)
		setScalar(&n.SourcePath, rec.SourcePath)
		for _, p := range rec.Programs {
			n.Calls = appendUnique(n.Calls, p)
		}
		for _, p := range rec.Procs {
			n.Procs = appendUnique(n.Procs, p)
		}
		for _, d := range rec.Datasets {
			n.Datasets = appendUnique(n.Datasets, d)
		}
		for _, s := range rec.Steps {
			n.Steps = appendUnique(n.Steps, s)
		}
	}
}

// Finish seals the graph: computes metadata, sorts report lists for stable
// output and builds the adjacency indexes. The builder must not be reused.
func (b *Builder) Finish() *Graph {
	logger := common.Logger()
	meta := Meta{
		TotalNodes: len(b.g.Nodes),
		TotalEdges: len(b.g.Edges),
		NodeTypes:  make(map[string]int),
		EdgeTypes:  make(map[string]int),
		Issues:     b.issues,
	}
	for _, n := range b.g.Nodes {
		meta.NodeTypes[string(n.Type)]++
		if n.Missing {
			switch n.Type {
			case NodeProgram:
				meta.MissingPrograms = append(meta.MissingPrograms, n.Name)
			case NodeInclude:
				meta.MissingIncludes = append(meta.MissingIncludes, n.Name)
			}
		}
	}
	for _, e := range b.g.Edges {
		meta.EdgeTypes[string(e.Type)]++
	}
	sort.Strings(meta.MissingPrograms)
	sort.Strings(meta.MissingIncludes)
	b.g.Meta = meta
	b.g.Reindex()
	logger.Info("graph: assembly complete",
		"nodes", meta.TotalNodes, "edges", meta.TotalEdges,
		"missing_programs", len(meta.MissingPrograms),
		"missing_includes", len(meta.MissingIncludes),
		"issues", len(meta.Issues))
	return b.g
}

// setScalar assigns a value only when the destination is still empty; later
// records never overwrite an established scalar property.
func setScalar(dst *string, value string) {
	if *dst == "" && value != "" {
		*dst = value
	}
}

func appendUnique(list []string, value string) []string {
	if value == "" {
		return list
	}
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

// condAttrs fills condition-edge properties with the same first-occurrence
// rule as setScalar: a duplicate condition on the same job never rewrites the
// sign, join marker or odate already recorded.
func condAttrs(attrs map[string]string, key, value, odate string) map[string]string {
	if attrs == nil {
		attrs = make(map[string]string, 2)
	}
	if _, ok := attrs[key]; !ok && value != "" {
		attrs[key] = value
	}
	if _, ok := attrs["odate"]; !ok && odate != "" {
		attrs["odate"] = odate
	}
	return attrs
}
