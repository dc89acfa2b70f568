package extract

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	pl1ProcRe     = regexp.MustCompile(`(?i)#PROC\((\w+)\)`)
	pl1MainProcRe = regexp.MustCompile(`(?i)#PROC\((\w+)\)\s+OPTIONS\(MAIN\)`)
	pl1CallRe     = regexp.MustCompile(`(?i)CALL\s+(\w+)\s*[(;]`)
	pl1IncludeRe  = regexp.MustCompile(`(?i)%INCLUDE\s+(\w+)`)
	pl1EntryRe    = regexp.MustCompile(`(?i)DCL\s+(\w+)\s+ENTRY`)
	pl1CommentRe  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	execSQLRe     = regexp.MustCompile(`(?i)EXEC\s+SQL`)
	selectKWRe    = regexp.MustCompile(`(?i)\bSELECT\b`)

	sqlOpPatterns = map[string]*regexp.Regexp{
		"SELECT": regexp.MustCompile(`(?i)FROM\s+(\w+)`),
		"UPDATE": regexp.MustCompile(`(?i)UPDATE\s+(\w+)`),
		"INSERT": regexp.MustCompile(`(?i)INSERT\s+INTO\s+(\w+)`),
		"DELETE": regexp.MustCompile(`(?i)DELETE\s+FROM\s+(\w+)`),
	}
)

// ParsePL1 extracts symbol-level references from one procedural source file:
// procedure definitions, CALL targets, include directives, entry declarations
// and embedded-SQL table operations. The program name is the main procedure
// (#PROC(NAME) OPTIONS(MAIN)) when present, otherwise the file stem.
func ParsePL1(path string, data []byte) *ProgramRecord {
	content := string(data)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	rec := &ProgramRecord{
		Name:       programName(content, stem),
		SourcePath: path,
		LineCount:  len(strings.Split(content, "\n")),
	}
	rec.Procedures = matchSet(pl1ProcRe, content)
	// Comments are stripped before CALL extraction only; commented-out calls
	// are the dominant false-positive source.
	rec.Calls = matchSet(pl1CallRe, pl1CommentRe.ReplaceAllString(content, " "))
	rec.Includes = matchSet(pl1IncludeRe, content)
	rec.Entries = matchSet(pl1EntryRe, content)
	rec.Tables = extractSQLOperations(content)
	return rec
}

func programName(content, stem string) string {
	if m := pl1MainProcRe.FindStringSubmatch(content); m != nil {
		return strings.ToUpper(m[1])
	}
	return strings.ToUpper(stem)
}

func matchSet(re *regexp.Regexp, content string) []string {
	seen := make(map[string]struct{})
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		seen[strings.ToUpper(m[1])] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// extractSQLOperations walks the source line by line, accumulating each EXEC
// SQL block until its terminating semicolon, then classifies the joined
// statement per operation keyword. Statements spanning many lines (declared
// cursors and the like) resolve to the same table set as single-line ones.
func extractSQLOperations(content string) map[string][]string {
	ops := make(map[string]map[string]struct{})
	inBlock := false
	var statement []string

	flush := func() {
		full := strings.Join(statement, " ")
		for op, re := range sqlOpPatterns {
			// FROM alone also appears in DELETE statements; only treat it as a
			// read when the statement actually selects.
			if op == "SELECT" && !selectKWRe.MatchString(full) {
				continue
			}
			for _, m := range re.FindAllStringSubmatch(full, -1) {
				table := strings.ToUpper(m[1])
				if table == "" {
					continue
				}
				if ops[table] == nil {
					ops[table] = make(map[string]struct{})
				}
				ops[table][op] = struct{}{}
			}
		}
		statement = nil
	}

	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "/*") || strings.HasPrefix(stripped, "*") {
			continue
		}
		if !inBlock {
			if execSQLRe.MatchString(line) {
				inBlock = true
				statement = []string{line}
				if strings.Contains(line, ";") {
					flush()
					inBlock = false
				}
			}
			continue
		}
		statement = append(statement, line)
		if strings.Contains(line, ";") {
			flush()
			inBlock = false
		}
	}

	if len(ops) == 0 {
		return nil
	}
	out := make(map[string][]string, len(ops))
	for table, set := range ops {
		list := make([]string, 0, len(set))
		for op := range set {
			list = append(list, op)
		}
		sort.Strings(list)
		out[table] = list
	}
	return out
}
