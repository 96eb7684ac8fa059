package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/corewright/pilot/agenterr"
	"github.com/corewright/pilot/workspace"
)

const globSchema = `{
	"type": "object",
	"properties": {
		"pattern": {"type": "string", "description": "Glob pattern, supports ** for recursive matching"},
		"path": {"type": "string", "description": "Directory to search, defaults to the workspace root"}
	},
	"required": ["pattern"]
}`

type globInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
}

type globMatch struct {
	rel     string
	modTime int64
}

func registerGlobGrep(r *Registry) {
	r.register(ToolGlob, "Find files by glob pattern, newest modified first.", globSchema, true, globTool)
	r.register(ToolGrep, "Search file contents by regular expression.", grepSchema, true, grepTool)
}

// globTool walks the subtree rooted at path (or the workspace root), pruning
// the shared ignore set, matches every file against pattern using full
// doublestar ** semantics, and returns matches newest-modified first.
func globTool(ctx context.Context, ec *ExecutionContext, input json.RawMessage) string {
	params, err := parseInput[globInput](input)
	if err != nil {
		return agenterr.Validation(err.Error()).Error()
	}
	if params.Pattern == "" {
		return agenterr.Validation("pattern is required").Error()
	}

	root := ec.Workspace.Root()
	if params.Path != "" {
		resolved, err := ec.Workspace.ResolvePath(params.Path)
		if err != nil {
			return err.Error()
		}
		root = resolved
	}

	var matches []globMatch
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if workspace.ShouldPruneDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		ok, matchErr := doublestar.Match(params.Pattern, rel)
		if matchErr != nil || !ok {
			return nil
		}

		info, infoErr := d.Info()
		var modTime int64
		if infoErr == nil {
			modTime = info.ModTime().Unix()
		}
		matches = append(matches, globMatch{rel: rel, modTime: modTime})
		return nil
	})

	if len(matches) == 0 {
		return "No files matched the pattern."
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].modTime > matches[j].modTime
	})

	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(m.rel)
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}
