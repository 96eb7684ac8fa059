// Package skills implements the two-layer Skill Index: a cheap description
// index injected into the system prompt, and an on-demand body loader that
// assembles a skill's markdown plus a resource-hint addendum. Skills are
// discovered under the workspace's .claude/skills directory first, then from
// any plugins listed in the user-level plugin manifest — local names always
// win ties.
package skills

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// resourceDirs are scanned for an "Available Resources" addendum.
var resourceDirs = []string{"scripts", "references", "examples", "assets"}

// Skill is a single named bundle of on-disk instructions.
type Skill struct {
	Name        string
	Description string
	Body        string
	Dir         string
}

// Index is the read-only-between-reloads collection of discovered skills,
// indexed by name. Safe for concurrent reads; reload swaps the whole value
// atomically under a mutex.
type Index struct {
	mu       sync.RWMutex
	skills   map[string]Skill
	order    []string
	workDir  string
	log      *zap.SugaredLogger
	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stopCh   chan struct{}
}

// Load scans <workDir>/.claude/skills and the user-level plugin manifest once
// and returns a populated Index. Parse failures on individual SKILL.md files
// are skipped silently; nothing about the index construction itself can fail.
func Load(workDir string, log *zap.SugaredLogger) *Index {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	idx := &Index{workDir: workDir, log: log}
	idx.reload()
	return idx
}

// reload rescans disk and atomically swaps the skill table. Local-directory
// skills are scanned first; plugin-provided skills are only inserted if their
// name has not already been claimed locally (insertion-order-with-skip, not a
// later comparison step).
func (idx *Index) reload() {
	skills := make(map[string]Skill)
	var order []string

	insert := func(s Skill) {
		if _, exists := skills[s.Name]; exists {
			return
		}
		skills[s.Name] = s
		order = append(order, s.Name)
	}

	for _, s := range scanSkillsDir(filepath.Join(idx.workDir, ".claude", "skills"), idx.log) {
		insert(s)
	}
	for _, dir := range pluginSkillDirs(idx.log) {
		for _, s := range scanSkillsDir(dir, idx.log) {
			insert(s)
		}
	}

	idx.mu.Lock()
	idx.skills = skills
	idx.order = order
	idx.mu.Unlock()
}

// Watch starts an fsnotify watch on the local skills directory and the
// plugin manifest; any write event triggers a full reload, swapped in
// atomically. Watch failures (e.g. the directory doesn't exist yet) are
// logged and otherwise non-fatal — the index still works, just without
// hot-reload.
func (idx *Index) Watch() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		idx.log.Warnw("skills: could not start watcher", "error", err)
		return
	}
	localDir := filepath.Join(idx.workDir, ".claude", "skills")
	_ = os.MkdirAll(localDir, 0o755)
	if err := w.Add(localDir); err != nil {
		idx.log.Warnw("skills: could not watch skills dir", "dir", localDir, "error", err)
	}
	if manifest := pluginManifestPath(); manifest != "" {
		if err := w.Add(filepath.Dir(manifest)); err != nil {
			idx.log.Debugw("skills: could not watch plugin manifest dir", "error", err)
		}
	}

	idx.watcher = w
	idx.stopCh = make(chan struct{})
	go idx.watchLoop()
}

func (idx *Index) watchLoop() {
	for {
		select {
		case ev, ok := <-idx.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				idx.reload()
			}
		case err, ok := <-idx.watcher.Errors:
			if !ok {
				return
			}
			idx.log.Debugw("skills: watcher error", "error", err)
		case <-idx.stopCh:
			return
		}
	}
}

// Close stops the watcher goroutine, if one was started.
func (idx *Index) Close() {
	idx.stopOnce.Do(func() {
		if idx.stopCh != nil {
			close(idx.stopCh)
		}
		if idx.watcher != nil {
			idx.watcher.Close()
		}
	})
}

// GetDescriptions returns one "- name: description" line per skill, in
// insertion order, for the cheap system-prompt layer.
func (idx *Index) GetDescriptions() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.order) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, name := range idx.order {
		s := idx.skills[name]
		fmt.Fprintf(&sb, "- %s: %s\n", s.Name, s.Description)
	}
	return sb.String()
}

// List returns the skills in insertion (local-wins) order.
func (idx *Index) List() []Skill {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Skill, 0, len(idx.order))
	for _, name := range idx.order {
		out = append(out, idx.skills[name])
	}
	return out
}

// GetSkill assembles the full body layer for a named skill: the body text
// (prefixed with a heading if it doesn't start with one) plus an "Available
// Resources" addendum listing files under scripts/references/examples/assets.
func (idx *Index) GetSkill(name string) (string, bool) {
	idx.mu.RLock()
	s, ok := idx.skills[name]
	idx.mu.RUnlock()
	if !ok {
		return "", false
	}

	body := s.Body
	if !strings.HasPrefix(strings.TrimSpace(body), "# ") {
		body = fmt.Sprintf("# Skill: %s\n\n%s", s.Name, body)
	}

	var resources []string
	for _, d := range resourceDirs {
		dirPath := filepath.Join(s.Dir, d)
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			resources = append(resources, filepath.Join(d, e.Name()))
		}
	}
	if len(resources) > 0 {
		sort.Strings(resources)
		body += "\n\n## Available Resources\n\n"
		for _, r := range resources {
			body += fmt.Sprintf("- %s\n", r)
		}
	}

	return body, true
}

func scanSkillsDir(dir string, log *zap.SugaredLogger) []Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []Skill
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		skillPath := filepath.Join(dir, e.Name(), "SKILL.md")
		data, err := os.ReadFile(skillPath)
		if err != nil {
			continue
		}
		s, err := parseSkillMD(string(data))
		if err != nil {
			log.Debugw("skills: failed to parse SKILL.md", "path", skillPath, "error", err)
			continue
		}
		s.Dir = filepath.Join(dir, e.Name())
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// parseSkillMD parses a SKILL.md document: "---\n<frontmatter>\n---\n<body>".
// Frontmatter lines are "key: value"; value may be single- or double-quoted.
func parseSkillMD(content string) (Skill, error) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return Skill{}, fmt.Errorf("missing frontmatter delimiter")
	}

	meta := make(map[string]string)
	i := 1
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "---" {
			i++
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = unquote(value)
		meta[key] = value
	}

	name := meta["name"]
	desc := meta["description"]
	if name == "" || desc == "" {
		return Skill{}, fmt.Errorf("name and description are required")
	}

	body := strings.Join(lines[i:], "\n")
	body = strings.TrimLeft(body, "\n")

	return Skill{Name: name, Description: desc, Body: body}, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// pluginManifest is the shape of ~/.claude/plugins/installed_plugins.json.
type pluginManifest struct {
	Plugins map[string][]struct {
		InstallPath string `json:"installPath"`
	} `json:"plugins"`
}

func pluginManifestPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "plugins", "installed_plugins.json")
}

func pluginSkillDirs(log *zap.SugaredLogger) []string {
	path := pluginManifestPath()
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var manifest pluginManifest
	dec := json.NewDecoder(bufio.NewReader(f))
	if err := dec.Decode(&manifest); err != nil {
		log.Debugw("skills: failed to parse plugin manifest", "path", path, "error", err)
		return nil
	}

	var dirs []string
	for _, entries := range manifest.Plugins {
		for _, e := range entries {
			if e.InstallPath == "" {
				continue
			}
			dirs = append(dirs, filepath.Join(e.InstallPath, "skills"))
		}
	}
	return dirs
}
