package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound is returned when a query names a node the graph does not hold.
var ErrNotFound = errors.New("graph: node not found")

// chainCacheSize bounds the memoized expansion results; chains are recomputed
// cheaply after eviction so a small cache is enough.
const chainCacheSize = 256

// maxChainVisits caps the number of nodes a single expansion may touch.
const maxChainVisits = 10000

// Engine answers read-only questions against an assembled graph. All methods
// are safe for concurrent use: the graph is immutable and the chain cache is
// internally synchronized.
type Engine struct {
	g      *Graph
	chains *lru.Cache[chainKey, *ChainResult]
}

type chainKey struct {
	job   string
	depth int
}

func NewEngine(g *Graph) (*Engine, error) {
	if g == nil {
		return nil, errors.New("graph: engine requires a graph")
	}
	cache, err := lru.New[chainKey, *ChainResult](chainCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{g: g, chains: cache}, nil
}

// Graph exposes the underlying graph for serving layers that need raw nodes.
func (e *Engine) Graph() *Graph { return e.g }

// Stats returns the build metadata: totals, per-type counts, missing
// references and accumulated issues.
func (e *Engine) Stats() Meta { return e.g.Meta }

// JobLink is one scheduling dependency: the peer job and the condition that
// carries the dependency, with the condition edge properties and the peer's
// folder for cross-folder classification.
type JobLink struct {
	Job       string `json:"job"`
	Condition string `json:"condition"`
	Folder    string `json:"folder,omitempty"`
	Sign      string `json:"sign,omitempty"`
	AndOr     string `json:"and_or,omitempty"`
	Odate     string `json:"odate,omitempty"`
}

// DependenciesOf lists the jobs that must complete before the named job runs:
// for every condition the job requires, every job that produces it. Results
// are sorted by (job, condition) and deduplicated.
func (e *Engine) DependenciesOf(job string) ([]JobLink, error) {
	return e.peers(job, EdgeRequires, EdgeProduces)
}

// DependentsOf lists the jobs unblocked by the named job: for every condition
// the job produces, every job that requires it.
func (e *Engine) DependentsOf(job string) ([]JobLink, error) {
	return e.peers(job, EdgeProduces, EdgeRequires)
}

func (e *Engine) peers(job string, out, in EdgeType) ([]JobLink, error) {
	n := e.g.FindByName(NodeJob, job)
	if n == nil {
		return nil, ErrNotFound
	}
	seen := make(map[string]struct{})
	var links []JobLink
	for _, edge := range e.g.EdgesFrom(n.ID) {
		if edge.Type != out {
			continue
		}
		cond := e.g.Node(edge.To)
		if cond == nil {
			continue
		}
		for _, peerEdge := range e.g.EdgesTo(cond.ID) {
			if peerEdge.Type != in || peerEdge.From == n.ID {
				continue
			}
			peer := e.g.Node(peerEdge.From)
			if peer == nil {
				continue
			}
			key := peer.Name + "\x00" + cond.Name
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			links = append(links, JobLink{
				Job:       peer.Name,
				Condition: cond.Name,
				Folder:    peer.Folder,
				Sign:      firstAttr("sign", peerEdge, edge),
				AndOr:     firstAttr("and_or", edge, peerEdge),
				Odate:     firstAttr("odate", edge, peerEdge),
			})
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Job != links[j].Job {
			return links[i].Job < links[j].Job
		}
		return links[i].Condition < links[j].Condition
	})
	return links, nil
}

func firstAttr(key string, edges ...*Edge) string {
	for _, e := range edges {
		if v, ok := e.Attrs[key]; ok {
			return v
		}
	}
	return ""
}

// CrossFolder returns the subset of a job's dependencies whose producing job
// lives in a different folder. These are the estate's inter-team seams.
func (e *Engine) CrossFolder(job string) ([]JobLink, error) {
	n := e.g.FindByName(NodeJob, job)
	if n == nil {
		return nil, ErrNotFound
	}
	deps, err := e.DependenciesOf(job)
	if err != nil {
		return nil, err
	}
	var out []JobLink
	for _, d := range deps {
		if d.Folder != "" && d.Folder != n.Folder {
			out = append(out, d)
		}
	}
	return out, nil
}

// HierarchyNode is one level of the containment tree.
type HierarchyNode struct {
	ID       string           `json:"id"`
	Type     NodeType         `json:"type"`
	Name     string           `json:"name"`
	Children []*HierarchyNode `json:"children,omitempty"`
}

// Hierarchy returns the containment tree rooted at the named scope node
// (folder, application or sub-application), descending to jobs. maxDepth
// bounds the descent; values below one default to the full four-level tree.
func (e *Engine) Hierarchy(scope NodeType, name string, maxDepth int) (*HierarchyNode, error) {
	switch scope {
	case NodeFolder, NodeApplication, NodeSubApplication:
	default:
		return nil, fmt.Errorf("graph: %q is not a hierarchy scope", scope)
	}
	root := e.g.FindByName(scope, name)
	if root == nil {
		return nil, ErrNotFound
	}
	if maxDepth < 1 {
		maxDepth = 4
	}
	return e.hierarchyFrom(root, maxDepth), nil
}

func (e *Engine) hierarchyFrom(n *Node, depth int) *HierarchyNode {
	h := &HierarchyNode{ID: n.ID, Type: n.Type, Name: n.Name}
	if depth <= 1 {
		return h
	}
	for _, edge := range e.g.EdgesFrom(n.ID) {
		if edge.Type != EdgeContains {
			continue
		}
		if child := e.g.Node(edge.To); child != nil {
			h.Children = append(h.Children, e.hierarchyFrom(child, depth-1))
		}
	}
	sort.Slice(h.Children, func(i, j int) bool { return h.Children[i].Name < h.Children[j].Name })
	return h
}

// OrphanCondition is a condition whose producer or consumer side is empty.
type OrphanCondition struct {
	Name      string   `json:"name"`
	Producers []string `json:"producer_jobs,omitempty"`
	Consumers []string `json:"consuming_jobs,omitempty"`
}

// Orphans reports one-sided conditions; kind names the empty side. Kind
// "consumer" selects conditions that are produced but never consumed, kind
// "producer" selects conditions required without any producer, and an empty
// kind returns both.
func (e *Engine) Orphans(kind string) []OrphanCondition {
	var out []OrphanCondition
	for _, n := range e.g.Nodes {
		if n.Type != NodeCondition {
			continue
		}
		unconsumed := len(n.Producers) > 0 && len(n.Consumers) == 0
		unproduced := len(n.Consumers) > 0 && len(n.Producers) == 0
		switch kind {
		case "consumer":
			if !unconsumed {
				continue
			}
		case "producer":
			if !unproduced {
				continue
			}
		default:
			if !unconsumed && !unproduced {
				continue
			}
		}
		out = append(out, OrphanCondition{Name: n.Name, Producers: n.Producers, Consumers: n.Consumers})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SearchResult is one node matched by a free-text search. Folder carries the
// owning folder for job nodes so hits can be placed without a second lookup.
type SearchResult struct {
	ID     string   `json:"id"`
	Type   NodeType `json:"type"`
	Name   string   `json:"name"`
	Folder string   `json:"folder,omitempty"`
}

// Search finds nodes whose name contains the term, case-insensitively,
// optionally restricted to one node type. Results are sorted by identifier
// and capped by limit (defaulting to 50).
func (e *Engine) Search(term string, t NodeType, limit int) []SearchResult {
	if limit <= 0 {
		limit = 50
	}
	needle := strings.ToUpper(strings.TrimSpace(term))
	if needle == "" {
		return nil
	}
	var out []SearchResult
	for _, n := range e.g.Nodes {
		if t != "" && n.Type != t {
			continue
		}
		if strings.Contains(strings.ToUpper(n.Name), needle) {
			out = append(out, SearchResult{ID: n.ID, Type: n.Type, Name: n.Name, Folder: n.Folder})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ChainNode is one node reached during a call-chain expansion.
type ChainNode struct {
	ID      string   `json:"id"`
	Type    NodeType `json:"type"`
	Name    string   `json:"name"`
	Depth   int      `json:"depth"`
	Missing bool     `json:"missing,omitempty"`
}

// ChainEdge is one traversed relationship in a chain expansion.
type ChainEdge struct {
	Type EdgeType `json:"type"`
	From string   `json:"from"`
	To   string   `json:"to"`
}

// ChainStats summarizes an expansion.
type ChainStats struct {
	Programs  int  `json:"programs"`
	Includes  int  `json:"includes"`
	Tables    int  `json:"tables"`
	JCL       int  `json:"jcl"`
	Missing   int  `json:"missing"`
	Visited   int  `json:"visited"`
	Truncated bool `json:"truncated,omitempty"`
}

// ChainResult is the full downstream reach of one job through its programs:
// executes, calls, includes and db_access edges, breadth-first.
type ChainResult struct {
	Root     string      `json:"root"`
	MaxDepth int         `json:"max_depth"`
	Nodes    []ChainNode `json:"nodes"`
	Edges    []ChainEdge `json:"edges"`
	Stats    ChainStats  `json:"stats"`
}

var chainEdgeTypes = map[EdgeType]struct{}{
	EdgeExecutes: {}, EdgeCalls: {}, EdgeIncludes: {}, EdgeDBAccess: {},
}

// Chain expands the code reachable from a job: the programs it executes, the
// programs those call transitively, the includes they pull in and the tables
// they touch. The walk is breadth-first with a per-expansion visited set, so
// call cycles terminate and each node appears once at its shallowest depth.
// maxDepth bounds the walk (values below one default to 10); the expansion
// also stops if it would visit more than maxChainVisits nodes, marking the
// result truncated. Results are memoized per (job, depth).
func (e *Engine) Chain(ctx context.Context, job string, maxDepth int) (*ChainResult, error) {
	root := e.g.FindByName(NodeJob, job)
	if root == nil {
		return nil, ErrNotFound
	}
	if maxDepth < 1 {
		maxDepth = 10
	}
	key := chainKey{job: root.Name, depth: maxDepth}
	if cached, ok := e.chains.Get(key); ok {
		return cached, nil
	}

	result := &ChainResult{Root: root.Name, MaxDepth: maxDepth}
	type queued struct {
		id    string
		depth int
	}
	visited := map[string]struct{}{root.ID: {}}
	queue := []queued{{id: root.ID, depth: 0}}
	result.Nodes = append(result.Nodes, ChainNode{ID: root.ID, Type: root.Type, Name: root.Name})

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			result.Stats.Truncated = true
			continue
		}
		for _, edge := range e.g.EdgesFrom(cur.id) {
			if _, follow := chainEdgeTypes[edge.Type]; !follow {
				continue
			}
			// An edge is only recorded once its target is part of the result,
			// so a truncated expansion never references absent nodes.
			if _, done := visited[edge.To]; done {
				result.Edges = append(result.Edges, ChainEdge{Type: edge.Type, From: edge.From, To: edge.To})
				continue
			}
			if len(visited) >= maxChainVisits {
				result.Stats.Truncated = true
				continue
			}
			next := e.g.Node(edge.To)
			if next == nil {
				continue
			}
			visited[edge.To] = struct{}{}
			result.Edges = append(result.Edges, ChainEdge{Type: edge.Type, From: edge.From, To: edge.To})
			result.Nodes = append(result.Nodes, ChainNode{
				ID: next.ID, Type: next.Type, Name: next.Name,
				Depth: cur.depth + 1, Missing: next.Missing,
			})
			queue = append(queue, queued{id: next.ID, depth: cur.depth + 1})
		}
	}

	for _, n := range result.Nodes {
		switch n.Type {
		case NodeProgram:
			result.Stats.Programs++
		case NodeInclude:
			result.Stats.Includes++
		case NodeTable:
			result.Stats.Tables++
		case NodeJCL:
			result.Stats.JCL++
		}
		if n.Missing {
			result.Stats.Missing++
		}
	}
	result.Stats.Visited = len(visited)
	e.chains.Add(key, result)
	return result, nil
}
