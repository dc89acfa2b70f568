package graph

import (
	"fmt"
)

// ResolvePrograms turns the symbol lists on program records into typed edges:
// calls between programs, includes to copybook members and db_access to the
// tables touched by embedded SQL. Call targets and include names that no
// scanned file defines still get edges, pointed at nodes marked missing.
func (l *Linker) ResolvePrograms(includes map[string]string) {
	for name, rec := range l.programsByName {
		fromID := NodeID(NodeProgram, name)

		for _, target := range rec.Calls {
			if target == name {
				continue
			}
			l.b.edge(EdgeCalls, fromID, l.programNode(target).ID)
		}

		for _, inc := range rec.Includes {
			n := l.b.ensure(NodeInclude, inc)
			if path, ok := includes[inc]; ok {
				setScalar(&n.SourcePath, path)
			} else if n.SourcePath == "" {
				n.Missing = true
			}
			l.b.edge(EdgeIncludes, fromID, n.ID)
		}

		for table, ops := range rec.Tables {
			tn := l.b.ensure(NodeTable, table)
			// A stand-alone SQL member with the table's name pins down where
			// its definition lives.
			if sqlRec, ok := l.sqlByName[table]; ok {
				setScalar(&tn.SourcePath, sqlRec.Path)
			}
			e := l.b.edge(EdgeDBAccess, fromID, tn.ID)
			for _, op := range ops {
				e.Ops = appendUnique(e.Ops, op)
			}
		}
	}
}

// programNode resolves a called symbol to its defining program node, falling
// back to the file stem, then to a missing stand-in. The stand-in keeps the
// call edge in the graph so impact analysis still surfaces the reference.
func (l *Linker) programNode(name string) *Node {
	if rec, ok := l.programsByName[name]; ok {
		return l.b.ensure(NodeProgram, rec.Name)
	}
	if rec, ok := l.programsByStem[name]; ok {
		return l.b.ensure(NodeProgram, rec.Name)
	}
	n := l.b.ensure(NodeProgram, name)
	if n.SourcePath == "" && !n.Missing {
		n.Missing = true
		l.b.AddIssue("missing-program", name,
			fmt.Sprintf("called as %s but no source file defines it", name))
	}
	return n
}
