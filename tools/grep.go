package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/corewright/pilot/agenterr"
	"github.com/corewright/pilot/workspace"
)

const grepSchema = `{
	"type": "object",
	"properties": {
		"pattern": {"type": "string", "description": "Regular expression (RE2 syntax)"},
		"path": {"type": "string", "description": "Directory to search, defaults to the workspace root"},
		"output_mode": {"type": "string", "enum": ["content", "files_with_matches", "count"]},
		"glob": {"type": "string", "description": "Filename glob to restrict the search to"},
		"i": {"type": "boolean", "description": "Case-insensitive match"},
		"n": {"type": "boolean", "description": "Prefix content lines with their line number"},
		"head_limit": {"type": "integer"},
		"offset": {"type": "integer"}
	},
	"required": ["pattern"]
}`

type grepInput struct {
	Pattern    string `json:"pattern"`
	Path       string `json:"path"`
	OutputMode string `json:"output_mode"`
	Glob       string `json:"glob"`
	I          bool   `json:"i"`
	N          *bool  `json:"n"`
	HeadLimit  int    `json:"head_limit"`
	Offset     int    `json:"offset"`
}

type grepHit struct {
	file string
	line int
	text string
}

// grepTool compiles pattern as a regular expression and walks the search
// root, applying the shared directory prune set and an optional filename
// glob, then renders results per output_mode.
func grepTool(ctx context.Context, ec *ExecutionContext, input json.RawMessage) string {
	params, err := parseInput[grepInput](input)
	if err != nil {
		return agenterr.Validation(err.Error()).Error()
	}
	if params.Pattern == "" {
		return agenterr.Validation("pattern is required").Error()
	}

	pattern := params.Pattern
	if params.I {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return agenterr.InvalidRegex(params.Pattern).Error()
	}

	root := ec.Workspace.Root()
	if params.Path != "" {
		resolved, rErr := ec.Workspace.ResolvePath(params.Path)
		if rErr != nil {
			return rErr.Error()
		}
		root = resolved
	}

	mode := params.OutputMode
	if mode == "" {
		mode = "content"
	}
	showLineNum := params.N == nil || *params.N
	headLimit := params.HeadLimit

	var hits []grepHit
	filesWithMatch := map[string]bool{}
	counts := map[string]int{}
	var fileOrder []string

	stopEarly := func() bool {
		return mode == "content" && headLimit > 0 && len(hits) >= headLimit+params.Offset
	}

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if stopEarly() {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if workspace.ShouldPruneDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if params.Glob != "" {
			if ok, _ := doublestar.Match(params.Glob, d.Name()); !ok {
				return nil
			}
		}
		if isBinaryFile(path) {
			return nil
		}

		rel, relErr := filepath.Rel(ec.Workspace.Root(), path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		f, openErr := os.Open(path)
		if openErr != nil {
			return nil
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)
		lineNum := 0
		matchedInFile := false
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			if !re.MatchString(line) {
				continue
			}
			matchedInFile = true
			counts[rel]++
			hits = append(hits, grepHit{file: rel, line: lineNum, text: line})
			if stopEarly() {
				break
			}
		}
		if matchedInFile && !filesWithMatch[rel] {
			filesWithMatch[rel] = true
			fileOrder = append(fileOrder, rel)
		}
		return nil
	})

	switch mode {
	case "files_with_matches":
		names := append([]string(nil), fileOrder...)
		sort.Strings(names)
		if len(names) == 0 {
			return "No matches found."
		}
		return strings.Join(names, "\n")

	case "count":
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			return "No matches found."
		}
		var sb strings.Builder
		for _, name := range names {
			fmt.Fprintf(&sb, "%s:%d\n", name, counts[name])
		}
		return strings.TrimRight(sb.String(), "\n")

	default: // content
		if len(hits) == 0 {
			return "No matches found."
		}
		start := params.Offset
		if start > len(hits) {
			start = len(hits)
		}
		end := len(hits)
		if headLimit > 0 && start+headLimit < end {
			end = start + headLimit
		}
		window := hits[start:end]

		var sb strings.Builder
		for _, h := range window {
			if showLineNum {
				fmt.Fprintf(&sb, "%s:%d:%s\n", h.file, h.line, h.text)
			} else {
				fmt.Fprintf(&sb, "%s:%s\n", h.file, h.text)
			}
		}
		return strings.TrimRight(sb.String(), "\n")
	}
}

func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}

	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}
