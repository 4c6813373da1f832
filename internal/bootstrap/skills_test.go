package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkillFile(t *testing.T, workspace, name, content string) {
	t.Helper()
	dir := filepath.Join(workspace, SkillsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSkillSnapshot(t *testing.T) {
	ws := t.TempDir()
	writeSkillFile(t, ws, "weather",
		"---\nname: weather\ndescription: Fetch the local forecast.\n---\n\n# Weather\n\nLong usage notes.\n")
	writeSkillFile(t, ws, "notes", "# Notes\n\nCapture quick notes into the notebook.\n")

	// Stray files and empty skill dirs are ignored.
	if err := os.WriteFile(filepath.Join(ws, SkillsDir, "README.md"), []byte("not a skill"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(ws, SkillsDir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	got := SkillSnapshot(ws)
	if !strings.HasPrefix(got, "Workspace skills available to you:") {
		t.Errorf("snapshot header = %q", got)
	}
	if !strings.Contains(got, "- weather: Fetch the local forecast.") {
		t.Errorf("frontmatter description missing:\n%s", got)
	}
	if !strings.Contains(got, "- notes: Capture quick notes into the notebook.") {
		t.Errorf("prose fallback missing:\n%s", got)
	}
	if strings.Contains(got, "README") || strings.Contains(got, "empty") {
		t.Errorf("non-skills leaked into snapshot:\n%s", got)
	}
}

func TestSkillSnapshotNoSkills(t *testing.T) {
	if got := SkillSnapshot(t.TempDir()); got != "" {
		t.Errorf("workspace without skills dir = %q, want empty", got)
	}
}

func TestSkillSummaryClipsLongLines(t *testing.T) {
	long := strings.Repeat("x", maxSkillSummaryChars+50)
	got := skillSummary(long)
	if len(got) > maxSkillSummaryChars+len("…") {
		t.Errorf("summary not clipped, len = %d", len(got))
	}
}
