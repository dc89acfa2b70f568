package extract

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	jclExecPGMRe  = regexp.MustCompile(`(?i)//\w+\s+EXEC\s+PGM=(\w+)`)
	jclRunProgRe  = regexp.MustCompile(`(?i)RUN\s+PROGRAM\((\w+)\)`)
	jclCallRe     = regexp.MustCompile(`(?i)CALL\s+['"]?(\w+)['"]?`)
	jclDDRe       = regexp.MustCompile(`(?i)^//(\w+)\s+DD\s+`)
	jclExecRe     = regexp.MustCompile(`(?i)//\w+\s+EXEC\s+`)
	jclExecProcRe = regexp.MustCompile(`(?i)//\w+\s+EXEC\s+(?:PROC=)?(\w+)`)
	jclStepRe     = regexp.MustCompile(`(?i)^//(\w+)\s+EXEC\s+`)
)

// systemPrograms are OS utilities that say nothing about application
// dependencies and are dropped from the extracted call list.
var systemPrograms = map[string]struct{}{
	"IEFBR14": {}, "IDCAMS": {}, "IEBGENER": {}, "SORT": {}, "DSNTEP2": {},
	"DSNTIAD": {}, "IKJEFT01": {}, "IEBCOPY": {}, "IEBUPDTE": {},
}

var systemDDNames = map[string]struct{}{
	"STEPLIB": {}, "SYSPRINT": {}, "SYSOUT": {}, "SYSIN": {}, "SYSTSPRT": {},
	"SYSUDUMP": {}, "SYSTSIN": {}, "SYSABEND": {},
}

// ParseJCL extracts the legacy job-control record: executed programs
// (EXEC PGM=, RUN PROGRAM, CALL), procedure invocations, dataset DD names and
// step names. System utilities and system DD names are filtered out.
func ParseJCL(path string, data []byte) *JCLRecord {
	content := string(data)
	rec := &JCLRecord{
		Name:       strings.ToUpper(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))),
		SourcePath: path,
		LineCount:  len(strings.Split(content, "\n")),
	}

	programs := make(map[string]struct{})
	for _, re := range []*regexp.Regexp{jclExecPGMRe, jclRunProgRe, jclCallRe} {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			name := strings.ToUpper(m[1])
			if _, sys := systemPrograms[name]; !sys {
				programs[name] = struct{}{}
			}
		}
	}
	rec.Programs = sortedKeys(programs)

	procs := make(map[string]struct{})
	datasets := make(map[string]struct{})
	steps := make(map[string]struct{})
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "//*") {
			continue
		}
		if m := jclDDRe.FindStringSubmatch(line); m != nil {
			name := strings.ToUpper(m[1])
			if _, sys := systemDDNames[name]; !sys {
				datasets[name] = struct{}{}
			}
		}
		if m := jclStepRe.FindStringSubmatch(line); m != nil {
			steps[strings.ToUpper(m[1])] = struct{}{}
		}
		if jclExecRe.MatchString(line) && !strings.Contains(strings.ToUpper(line), "PGM=") {
			if m := jclExecProcRe.FindStringSubmatch(line); m != nil {
				name := strings.ToUpper(m[1])
				if !strings.HasPrefix(name, "STEP") {
					procs[name] = struct{}{}
				}
			}
		}
	}
	rec.Procs = sortedKeys(procs)
	rec.Datasets = sortedKeys(datasets)
	rec.Steps = sortedKeys(steps)
	return rec
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
