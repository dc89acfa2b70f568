package extract

// ConditionRole distinguishes inbound (required) from outbound (produced)
// scheduler conditions on a job definition.
type ConditionRole string

const (
	RoleIn  ConditionRole = "in"
	RoleOut ConditionRole = "out"
)

// ConditionRef is one condition occurrence on a job: inbound entries carry an
// AND/OR join marker, outbound entries carry a +/- sign. Odate is the run-date
// qualifier attached to the occurrence.
type ConditionRef struct {
	Name  string        `json:"name"`
	Role  ConditionRole `json:"role"`
	Sign  string        `json:"sign,omitempty"`
	AndOr string        `json:"and_or,omitempty"`
	Odate string        `json:"odate,omitempty"`
}

// FolderRecord is a top-level scheduling container.
type FolderRecord struct {
	Name       string `json:"name"`
	Datacenter string `json:"datacenter,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// JobRecord is a scheduler job definition. DescProgram, RefProgram and
// RefDatasets are derived from the free-text description and kept for linking
// and audit; they are not authoritative graph content by themselves.
type JobRecord struct {
	Name           string         `json:"name"`
	Folder         string         `json:"folder"`
	Application    string         `json:"application,omitempty"`
	SubApplication string         `json:"sub_application,omitempty"`
	Description    string         `json:"description,omitempty"`
	MemName        string         `json:"memname,omitempty"`
	MemLib         string         `json:"memlib,omitempty"`
	TaskType       string         `json:"tasktype,omitempty"`
	CmdLine        string         `json:"cmdline,omitempty"`
	RunAs          string         `json:"run_as,omitempty"`
	NodeID         string         `json:"nodeid,omitempty"`
	InConds        []ConditionRef `json:"inconds,omitempty"`
	OutConds       []ConditionRef `json:"outconds,omitempty"`

	DescProgram string   `json:"desc_program,omitempty"`
	RefProgram  string   `json:"ref_program,omitempty"`
	RefDatasets []string `json:"ref_datasets,omitempty"`
}

// SchedulerExport is the decoded content of one scheduler XML document.
type SchedulerExport struct {
	Folders []FolderRecord `json:"folders"`
	Jobs    []JobRecord    `json:"jobs"`
}

// ProgramRecord is the symbol-level extraction from one procedural source
// file. Tables maps an accessed table name to the sorted set of operation
// keywords (SELECT, INSERT, UPDATE, DELETE) observed against it.
type ProgramRecord struct {
	Name       string              `json:"name"`
	SourcePath string              `json:"source_path"`
	Procedures []string            `json:"procedures,omitempty"`
	Calls      []string            `json:"calls,omitempty"`
	Includes   []string            `json:"includes,omitempty"`
	Entries    []string            `json:"entries,omitempty"`
	Tables     map[string][]string `json:"tables,omitempty"`
	LineCount  int                 `json:"line_count"`
}

// JCLRecord is the legacy job-control record type. Jobs link to programs
// directly via their description today, but the record is retained so JCL
// members remain visible in the graph alongside their datasets and steps.
type JCLRecord struct {
	Name       string   `json:"name"`
	SourcePath string   `json:"source_path"`
	Programs   []string `json:"programs,omitempty"`
	Procs      []string `json:"procs,omitempty"`
	Datasets   []string `json:"datasets,omitempty"`
	Steps      []string `json:"steps,omitempty"`
	LineCount  int      `json:"line_count"`
}

// SQLFileRecord carries metadata for a stand-alone SQL member. Content is not
// parsed; the record exists for existence checks only.
type SQLFileRecord struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	LineCount int    `json:"line_count"`
}
