package extract

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

type schedulerXML struct {
	XMLName xml.Name    `xml:""`
	Folders []folderXML `xml:"FOLDER"`
	Smart   []folderXML `xml:"SMART_FOLDER"`
	Jobs    []jobXML    `xml:"JOB"`
}

type folderXML struct {
	Name       string   `xml:"FOLDER_NAME,attr"`
	Datacenter string   `xml:"DATACENTER,attr"`
	Platform   string   `xml:"PLATFORM,attr"`
	Jobs       []jobXML `xml:"JOB"`
}

type jobXML struct {
	Name           string    `xml:"JOBNAME,attr"`
	ParentFolder   string    `xml:"PARENT_FOLDER,attr"`
	Application    string    `xml:"APPLICATION,attr"`
	SubApplication string    `xml:"SUB_APPLICATION,attr"`
	Description    string    `xml:"DESCRIPTION,attr"`
	MemName        string    `xml:"MEMNAME,attr"`
	MemLib         string    `xml:"MEMLIB,attr"`
	TaskType       string    `xml:"TASKTYPE,attr"`
	CmdLine        string    `xml:"CMDLINE,attr"`
	RunAs          string    `xml:"RUN_AS,attr"`
	NodeID         string    `xml:"NODEID,attr"`
	InConds        []condXML `xml:"INCOND"`
	OutConds       []condXML `xml:"OUTCOND"`
}

type condXML struct {
	Name  string `xml:"NAME,attr"`
	Odate string `xml:"ODATE,attr"`
	AndOr string `xml:"AND_OR,attr"`
	Sign  string `xml:"SIGN,attr"`
}

// ParseSchedulerXML decodes a scheduler export document into folder and job
// records. Jobs nested inside FOLDER elements inherit the folder name when
// their PARENT_FOLDER attribute is empty. Condition occurrences get the
// scheduler defaults: inbound odate ODAT with AND join, outbound odate STAT
// with sign +.
func ParseSchedulerXML(path string, data []byte) (*SchedulerExport, error) {
	var doc schedulerXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode scheduler xml %s: %w", path, err)
	}
	export := &SchedulerExport{}
	seenFolders := make(map[string]struct{})
	folders := append(append([]folderXML(nil), doc.Folders...), doc.Smart...)
	for _, f := range folders {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		if _, dup := seenFolders[name]; !dup {
			seenFolders[name] = struct{}{}
			export.Folders = append(export.Folders, FolderRecord{
				Name:       name,
				Datacenter: strings.TrimSpace(f.Datacenter),
				Platform:   strings.TrimSpace(f.Platform),
			})
		}
		for _, j := range f.Jobs {
			export.Jobs = append(export.Jobs, convertJob(j, name))
		}
	}
	for _, j := range doc.Jobs {
		export.Jobs = append(export.Jobs, convertJob(j, ""))
	}
	sort.SliceStable(export.Folders, func(i, k int) bool {
		return export.Folders[i].Name < export.Folders[k].Name
	})
	return export, nil
}

func convertJob(j jobXML, folder string) JobRecord {
	if trimmed := strings.TrimSpace(j.ParentFolder); trimmed != "" {
		folder = trimmed
	}
	rec := JobRecord{
		Name:           strings.TrimSpace(j.Name),
		Folder:         folder,
		Application:    strings.TrimSpace(j.Application),
		SubApplication: strings.TrimSpace(j.SubApplication),
		Description:    j.Description,
		MemName:        strings.TrimSpace(j.MemName),
		MemLib:         strings.TrimSpace(j.MemLib),
		TaskType:       strings.TrimSpace(j.TaskType),
		CmdLine:        strings.TrimSpace(j.CmdLine),
		RunAs:          strings.TrimSpace(j.RunAs),
		NodeID:         strings.TrimSpace(j.NodeID),
	}
	for _, c := range j.InConds {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		rec.InConds = append(rec.InConds, ConditionRef{
			Name:  name,
			Role:  RoleIn,
			AndOr: defaultString(c.AndOr, "A"),
			Odate: defaultString(c.Odate, "ODAT"),
		})
	}
	for _, c := range j.OutConds {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		rec.OutConds = append(rec.OutConds, ConditionRef{
			Name:  name,
			Role:  RoleOut,
			Sign:  defaultString(c.Sign, "+"),
			Odate: defaultString(c.Odate, "STAT"),
		})
	}
	rec.DescProgram = ProgramFromDescription(rec.Description)
	rec.RefProgram = RefProgramFromDescription(rec.Description, rec.DescProgram)
	rec.RefDatasets = RefDatasetsFromDescription(rec.Description)
	return rec
}

func defaultString(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
