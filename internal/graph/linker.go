package graph

import (
	"fmt"
	"strings"

	"github.com/legacyscape/depgraph/internal/common"
	"github.com/legacyscape/depgraph/internal/extract"
)

// utilityPrograms are scheduler placeholders and transfer utilities that a job
// description may name without implying a dependency on application code.
var utilityPrograms = map[string]struct{}{
	"DUMMY": {}, "IEFBR14": {}, "FTP": {}, "SFTP": {}, "NDM": {},
	"CONNECTDIRECT": {}, "SORT": {}, "IDCAMS": {}, "IEBGENER": {},
}

// Linker resolves the textual references left behind by extraction into graph
// edges. Resolution is two-stage for each symbol: exact program name first,
// then source-file stem; a reference that resolves to neither gets a node
// marked missing so the edge is never silently dropped.
type Linker struct {
	b *Builder

	programsByName map[string]*extract.ProgramRecord
	programsByStem map[string]*extract.ProgramRecord
	jclByName      map[string]*extract.JCLRecord
	sqlByName      map[string]*extract.SQLFileRecord
}

// NewLinker indexes the extracted source records for symbol resolution. When
// two files map to the same program name the first one indexed wins and the
// collision is reported as an issue.
func NewLinker(b *Builder, programs []*extract.ProgramRecord, jcl []*extract.JCLRecord, sql []*extract.SQLFileRecord) *Linker {
	l := &Linker{
		b:              b,
		programsByName: make(map[string]*extract.ProgramRecord),
		programsByStem: make(map[string]*extract.ProgramRecord),
		jclByName:      make(map[string]*extract.JCLRecord),
		sqlByName:      make(map[string]*extract.SQLFileRecord),
	}
	for _, rec := range programs {
		if rec == nil {
			continue
		}
		if prev, ok := l.programsByName[rec.Name]; ok {
			b.AddIssue("name-collision", rec.Name,
				fmt.Sprintf("program defined in both %s and %s; keeping %s", prev.SourcePath, rec.SourcePath, prev.SourcePath))
		} else {
			l.programsByName[rec.Name] = rec
		}
		stem := fileStem(rec.SourcePath)
		if _, ok := l.programsByStem[stem]; !ok {
			l.programsByStem[stem] = rec
		}
	}
	for _, rec := range jcl {
		if rec == nil {
			continue
		}
		if _, ok := l.jclByName[rec.Name]; !ok {
			l.jclByName[rec.Name] = rec
		}
	}
	for _, rec := range sql {
		if rec == nil {
			continue
		}
		l.sqlByName[rec.Name] = rec
	}
	return l
}

// LinkJobs connects scheduler jobs to the code they execute. The program name
// comes from the job description when it yields one, with MEMNAME as the JCL
// member link. Utility placeholders are skipped without an issue; an
// unresolved program name produces a missing node plus an executes edge.
func (l *Linker) LinkJobs(jobs []extract.JobRecord) {
	logger := common.Logger()
	linked, unresolved := 0, 0
	for i := range jobs {
		job := &jobs[i]
		if job.Name == "" {
			continue
		}
		jobID := NodeID(NodeJob, job.Name)

		if job.DescProgram != "" {
			if _, utility := utilityPrograms[job.DescProgram]; !utility {
				if l.linkExecutes(jobID, job) {
					linked++
				} else {
					unresolved++
				}
			}
		}

		if job.MemName != "" {
			member := strings.ToUpper(job.MemName)
			if _, ok := l.jclByName[member]; ok {
				l.b.edge(EdgeExecutes, jobID, NodeID(NodeJCL, member))
			}
		}
	}
	logger.Info("graph: job linking complete", "linked", linked, "unresolved", unresolved)
}

// linkExecutes resolves one description-derived program reference and reports
// whether it hit a real source file.
func (l *Linker) linkExecutes(jobID string, job *extract.JobRecord) bool {
	name := job.DescProgram
	if rec, ok := l.programsByName[name]; ok {
		l.b.edge(EdgeExecutes, jobID, NodeID(NodeProgram, rec.Name))
		return true
	}
	if rec, ok := l.programsByStem[name]; ok {
		if rec.Name != name {
			l.b.AddIssue("stem-resolution", job.Name,
				fmt.Sprintf("program %s resolved via file stem to %s", name, rec.Name))
		}
		l.b.edge(EdgeExecutes, jobID, NodeID(NodeProgram, rec.Name))
		return true
	}
	n := l.b.ensure(NodeProgram, name)
	if n.SourcePath == "" {
		n.Missing = true
	}
	l.b.edge(EdgeExecutes, jobID, n.ID)
	l.b.AddIssue("missing-program", job.Name,
		fmt.Sprintf("description names program %s but no source file defines it", name))
	return false
}

// LinkAmbiguities records jobs whose description contained more than one
// program-like token so reviewers can audit which candidate was used.
func (l *Linker) LinkAmbiguities(jobs []extract.JobRecord) {
	for i := range jobs {
		job := &jobs[i]
		candidates := extract.ProgramCandidates(job.Description)
		if len(candidates) > 1 && job.DescProgram != "" {
			l.b.AddIssue("ambiguous-program", job.Name,
				fmt.Sprintf("description yields %d program candidates (%s); used %s",
					len(candidates), strings.Join(candidates, ", "), job.DescProgram))
		}
	}
}

func fileStem(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return strings.ToUpper(base)
}
