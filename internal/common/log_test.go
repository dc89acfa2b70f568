package common

import "testing"

func TestLoggerCapturesHistory(t *testing.T) {
	Logger().Info("build started", "folders", 2)
	entries := LogEntries()
	if len(entries) == 0 {
		t.Fatal("expected captured log entries")
	}
	found := false
	for _, e := range entries {
		if e.Message == "build started" {
			found = true
			if e.Level != "info" {
				t.Fatalf("level = %q", e.Level)
			}
			if v, ok := e.Attrs["folders"]; !ok || v != int64(2) {
				t.Fatalf("attrs = %v", e.Attrs)
			}
		}
	}
	if !found {
		t.Fatal("emitted record not captured")
	}
}
