package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Job descriptions follow an informal "PROGNAME = <what it does>" convention.
// Extraction is a fixed pattern match with a documented first-match policy; no
// attempt is made to disambiguate free text beyond it.

var (
	refProgRe   = regexp.MustCompile(`(?i)\bF(?:UE?|ÜE?)R\s+([A-Z][A-Z0-9]{4,})\b`)
	datasetKWRe = regexp.MustCompile(`(?i)\b(?:UNLOAD|LOAD|RELOAD|INSERT\s+INTO|DELETE\s+FROM|SELECT\s+FROM|UPDATE|INTO|OF|IN)\s+([A-Za-z][A-Za-z0-9_]{2,})\b`)
	parenRe     = regexp.MustCompile(`\(([A-Za-z][A-Za-z0-9_]{3,})\)`)
	tablePfxRe  = regexp.MustCompile(`(?i)\bIN\s+(T[A-Z0-9]{4,})\b`)
	eqTokenRe   = regexp.MustCompile(`(\S+)\s*=`)
)

// descNoise lists generic words that must never be mistaken for a program or
// table name inside a description.
var descNoise = map[string]struct{}{
	"DATASET": {}, "DATASETS": {}, "FROM": {}, "INTO": {}, "WITH": {}, "AND": {},
	"THE": {}, "FOR": {}, "FUER": {}, "NACH": {}, "VON": {}, "AUS": {}, "DER": {},
	"DIE": {}, "DAS": {}, "ALL": {}, "ALLE": {}, "TABLE": {}, "TABLES": {},
	"FILE": {}, "FILES": {}, "QUERY": {}, "DATA": {}, "LIST": {}, "ONLINE": {},
	"FULL": {}, "INBOUND": {}, "OUTBOUND": {}, "SERVICE": {}, "BACKUP": {},
	"RUNSTATS": {}, "STATISTICS": {}, "START": {}, "ENDE": {},
}

// ProgramFromDescription returns the executing-program token of a job
// description: the text left of the first '=' when it is a single space-free
// word, upper-cased. Anything else yields no candidate.
func ProgramFromDescription(desc string) string {
	if desc == "" || !strings.Contains(desc, "=") {
		return ""
	}
	candidate := strings.TrimSpace(strings.SplitN(desc, "=", 2)[0])
	if candidate == "" || strings.ContainsAny(candidate, " \t") {
		return ""
	}
	return strings.ToUpper(candidate)
}

// ProgramCandidates returns every token standing immediately left of an '='
// in the description, in order. The first entry matches
// ProgramFromDescription when that yields anything; the remainder are the
// discarded alternatives surfaced in the build report.
func ProgramCandidates(desc string) []string {
	var out []string
	for _, m := range eqTokenRe.FindAllStringSubmatch(desc, -1) {
		token := strings.ToUpper(strings.TrimSpace(m[1]))
		if token == "" || token == "=" {
			continue
		}
		out = append(out, token)
	}
	return out
}

// RefProgramFromDescription extracts a referenced program from the right-hand
// side of the description: the token after a FOR/FUER marker, skipping noise
// words and self references.
func RefProgramFromDescription(desc, descProgram string) string {
	right := desc
	if idx := strings.Index(desc, "="); idx >= 0 {
		right = desc[idx+1:]
	}
	m := refProgRe.FindStringSubmatch(right)
	if m == nil {
		return ""
	}
	token := strings.ToUpper(m[1])
	if _, noise := descNoise[token]; noise || token == strings.ToUpper(descProgram) {
		return ""
	}
	return token
}

// RefDatasetsFromDescription extracts dataset/table name tokens mentioned on
// the right-hand side of the description, sorted and deduplicated.
func RefDatasetsFromDescription(desc string) []string {
	right := desc
	if idx := strings.Index(desc, "="); idx >= 0 {
		right = desc[idx+1:]
	}
	found := make(map[string]struct{})
	collect := func(re *regexp.Regexp) {
		for _, m := range re.FindAllStringSubmatch(right, -1) {
			token := strings.ToUpper(m[1])
			if _, noise := descNoise[token]; !noise {
				found[token] = struct{}{}
			}
		}
	}
	collect(datasetKWRe)
	collect(parenRe)
	collect(tablePfxRe)
	if len(found) == 0 {
		return nil
	}
	out := make([]string, 0, len(found))
	for token := range found {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}
