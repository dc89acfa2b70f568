package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/legacyscape/depgraph/internal/common"
	"github.com/legacyscape/depgraph/internal/extract"
	"github.com/legacyscape/depgraph/internal/graph"
	"github.com/legacyscape/depgraph/internal/scan"
)

// Result is the outcome of one build: the assembled graph plus the source
// index it was built from. The graph is always non-nil on success; problems
// with individual inputs surface as issues in the graph metadata.
type Result struct {
	Graph *graph.Graph
	Index *scan.Index

	SchedulerFiles int
	Programs       int
	JCLMembers     int
	SQLMembers     int
	Elapsed        time.Duration
}

// Build runs the full reconstruction: discover sources, parse scheduler
// exports and code members, resolve references and assemble the graph.
// Parsing runs on a bounded worker pool; linking and assembly are
// single-threaded over the collected records.
func Build(ctx context.Context, cfg Config) (*Result, error) {
	logger := common.Logger()
	start := time.Now()

	schedulerFiles, err := collectSchedulerFiles(cfg.SchedulerPaths)
	if err != nil {
		return nil, err
	}
	if len(schedulerFiles) == 0 && len(cfg.CodeRoots) == 0 {
		return nil, fmt.Errorf("pipeline: no scheduler exports and no code roots configured")
	}

	ix := &scan.Index{}
	if len(cfg.CodeRoots) > 0 {
		ix, err = scan.Scan(cfg.CodeRoots...)
		if err != nil {
			return nil, err
		}
	}

	b := graph.NewBuilder()
	for _, w := range ix.Warnings {
		b.AddIssue(w.Kind, w.Name, w.Path)
	}

	var allJobs []extract.JobRecord
	for _, path := range schedulerFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			b.AddIssue("unreadable", filepath.Base(path), path)
			continue
		}
		export, parseErr := extract.ParseSchedulerXML(path, data)
		if parseErr != nil {
			b.AddIssue("malformed-xml", filepath.Base(path), parseErr.Error())
			continue
		}
		b.AddScheduler(export)
		allJobs = append(allJobs, export.Jobs...)
	}

	parsed, err := parseSources(ctx, cfg.Workers, ix, b)
	if err != nil {
		return nil, err
	}

	b.AddPrograms(parsed.programs)
	b.AddJCL(parsed.jcl)

	linker := graph.NewLinker(b, parsed.programs, parsed.jcl, parsed.sql)
	linker.LinkJobs(allJobs)
	linker.LinkAmbiguities(allJobs)
	linker.ResolvePrograms(ix.Includes)

	g := b.Finish()
	res := &Result{
		Graph:          g,
		Index:          ix,
		SchedulerFiles: len(schedulerFiles),
		Programs:       len(parsed.programs),
		JCLMembers:     len(parsed.jcl),
		SQLMembers:     len(parsed.sql),
		Elapsed:        time.Since(start),
	}
	logger.Info("pipeline: build complete",
		"scheduler_files", res.SchedulerFiles, "programs", res.Programs,
		"jcl", res.JCLMembers, "sql", res.SQLMembers,
		"elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// collectSchedulerFiles resolves each configured path: files are taken as-is,
// directories are walked for *.xml entries. Paths are deduplicated and sorted
// so a build is deterministic regardless of configuration order.
func collectSchedulerFiles(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scheduler path %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".xml") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scheduler path %s: %w", p, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

type parsedSources struct {
	programs []*extract.ProgramRecord
	jcl      []*extract.JCLRecord
	sql      []*extract.SQLFileRecord
}

type parseTask struct {
	category scan.Category
	path     string
}

// parseSources fans the indexed files out to a worker pool. Each worker reads
// and parses independently; unreadable files become issues rather than
// failures. Record order is made deterministic by a final sort on source path.
func parseSources(ctx context.Context, workers int, ix *scan.Index, b *graph.Builder) (*parsedSources, error) {
	var tasks []parseTask
	for _, path := range ix.Programs {
		tasks = append(tasks, parseTask{category: scan.CategoryProgram, path: path})
	}
	for _, path := range ix.JCL {
		tasks = append(tasks, parseTask{category: scan.CategoryJCL, path: path})
	}
	for _, path := range ix.SQL {
		tasks = append(tasks, parseTask{category: scan.CategorySQL, path: path})
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(tasks) && len(tasks) > 0 {
		workers = len(tasks)
	}

	taskCh := make(chan parseTask)
	type outcome struct {
		program *extract.ProgramRecord
		jcl     *extract.JCLRecord
		sql     *extract.SQLFileRecord
		failed  string
	}
	outCh := make(chan outcome, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				data, err := os.ReadFile(task.path)
				if err != nil {
					outCh <- outcome{failed: task.path}
					continue
				}
				switch task.category {
				case scan.CategoryProgram:
					outCh <- outcome{program: extract.ParsePL1(task.path, data)}
				case scan.CategoryJCL:
					outCh <- outcome{jcl: extract.ParseJCL(task.path, data)}
				case scan.CategorySQL:
					outCh <- outcome{sql: extract.ParseSQLFile(task.path, data)}
				}
			}
		}()
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(outCh)
	}()

	parsed := &parsedSources{}
	for out := range outCh {
		switch {
		case out.failed != "":
			b.AddIssue("unreadable", filepath.Base(out.failed), out.failed)
		case out.program != nil:
			parsed.programs = append(parsed.programs, out.program)
		case out.jcl != nil:
			parsed.jcl = append(parsed.jcl, out.jcl)
		case out.sql != nil:
			parsed.sql = append(parsed.sql, out.sql)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(parsed.programs, func(i, j int) bool { return parsed.programs[i].SourcePath < parsed.programs[j].SourcePath })
	sort.Slice(parsed.jcl, func(i, j int) bool { return parsed.jcl[i].SourcePath < parsed.jcl[j].SourcePath })
	sort.Slice(parsed.sql, func(i, j int) bool { return parsed.sql[i].Path < parsed.sql[j].Path })
	return parsed, nil
}
