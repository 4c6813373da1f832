package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
)

// SkillsDir is the workspace subdirectory scanned for skills. Each skill is
// a directory holding a SKILL.md that describes it.
const SkillsDir = "skills"

// maxSkillSummaryChars caps the per-skill line so a verbose SKILL.md cannot
// bloat the system prompt.
const maxSkillSummaryChars = 200

// SkillSnapshot renders a short listing of the workspace skills for the
// agent's system prompt. Empty when the workspace has no skills. Callers
// cache the result per session; the filesystem is not re-scanned every turn.
func SkillSnapshot(workspaceDir string) string {
	dir := filepath.Join(workspaceDir, SkillsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var lines []string
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, ent.Name(), "SKILL.md"))
		if err != nil {
			continue
		}
		line := "- " + ent.Name()
		if desc := skillSummary(string(data)); desc != "" {
			line += ": " + desc
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ""
	}
	return "Workspace skills available to you:\n" + strings.Join(lines, "\n")
}

// skillSummary pulls one descriptive line out of a SKILL.md: a frontmatter
// description wins, then the first prose line after any headings.
func skillSummary(content string) string {
	lines := strings.Split(content, "\n")
	i := 0
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		for i = 1; i < len(lines); i++ {
			trimmed := strings.TrimSpace(lines[i])
			if trimmed == "---" {
				i++
				break
			}
			if v, ok := strings.CutPrefix(trimmed, "description:"); ok {
				return clipSummary(strings.TrimSpace(v))
			}
		}
	}
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return clipSummary(trimmed)
	}
	return ""
}

func clipSummary(s string) string {
	if len(s) > maxSkillSummaryChars {
		return s[:maxSkillSummaryChars] + "…"
	}
	return s
}
