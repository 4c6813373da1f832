// Package bootstrap seeds and loads the workspace context files that shape
// the agent's system prompt. Files are plain markdown the user edits between
// runs; missing files are seeded from embedded templates, existing ones are
// never overwritten.
package bootstrap

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed templates/*.md
var templateFS embed.FS

// Workspace context files, loaded in this order.
const (
	AgentsFile   = "AGENTS.md"
	IdentityFile = "IDENTITY.md"
)

var contextFileNames = []string{AgentsFile, IdentityFile}

// Truncation caps keep a runaway context file from eating the token budget.
const (
	maxCharsPerFile = 20000
	maxTotalChars   = 40000
)

// ContextFile is one loaded workspace file.
type ContextFile struct {
	Name    string
	Content string
}

// EnsureWorkspaceFiles seeds missing context files from the embedded
// templates. Returns the names of files it created.
func EnsureWorkspaceFiles(workspaceDir string) ([]string, error) {
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	var created []string
	for _, name := range contextFileNames {
		ok, err := seedTemplate(workspaceDir, name)
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", name, err)
		}
		if ok {
			created = append(created, name)
		}
	}
	return created, nil
}

// seedTemplate writes one template if the target does not exist. O_EXCL
// keeps a concurrent gateway start from clobbering a user edit.
func seedTemplate(workspaceDir, name string) (bool, error) {
	dst := filepath.Join(workspaceDir, name)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		os.Remove(dst)
		return false, err
	}
	if _, err := f.Write(content); err != nil {
		return false, err
	}
	return true, nil
}

// LoadWorkspaceFiles reads the context files that exist, truncated to the
// per-file and total caps. Unreadable files are skipped.
func LoadWorkspaceFiles(workspaceDir string) []ContextFile {
	var files []ContextFile
	total := 0
	for _, name := range contextFileNames {
		data, err := os.ReadFile(filepath.Join(workspaceDir, name))
		if err != nil {
			continue
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}
		if len(content) > maxCharsPerFile {
			content = content[:maxCharsPerFile] + "\n[truncated]"
		}
		if total+len(content) > maxTotalChars {
			break
		}
		total += len(content)
		files = append(files, ContextFile{Name: name, Content: content})
	}
	return files
}

// ContextBlock renders the loaded files as a system prompt suffix. Empty
// when no context files exist.
func ContextBlock(workspaceDir string) string {
	files := LoadWorkspaceFiles(workspaceDir)
	if len(files) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range files {
		b.WriteString("\n\n## ")
		b.WriteString(f.Name)
		b.WriteString("\n\n")
		b.WriteString(f.Content)
	}
	return b.String()
}
