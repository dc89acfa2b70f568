package extract

import (
	"bytes"
	"path/filepath"
	"strings"
)

// ParseSQLFile records metadata for a stand-alone SQL member. Statement
// content is deliberately not parsed; the index only answers "does a member
// with this name exist" during linking.
func ParseSQLFile(path string, data []byte) *SQLFileRecord {
	return &SQLFileRecord{
		Name:      strings.ToUpper(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))),
		Path:      path,
		LineCount: bytes.Count(data, []byte("\n")) + 1,
	}
}
