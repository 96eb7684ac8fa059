package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/corewright/pilot/agenterr"
)

const bashSchema = `{
	"type": "object",
	"properties": {
		"command": {"type": "string", "description": "Shell command to execute"},
		"timeout": {"type": "integer", "description": "Timeout in seconds, default 60, max 300"}
	},
	"required": ["command"]
}`

const (
	defaultBashTimeout = 60
	maxBashTimeout     = 300
)

type bashInput struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout"`
}

var (
	shellOnce sync.Once
	shellPath string
	shellErr  error
)

// resolveShell locates a POSIX shell once per process: $SHELL, then /bin/sh,
// falling back to cmd.exe on Windows.
func resolveShell() (string, error) {
	shellOnce.Do(func() {
		if runtime.GOOS == "windows" {
			if p, err := exec.LookPath("cmd"); err == nil {
				shellPath = p
				return
			}
			shellErr = fmt.Errorf("bash: no shell interpreter found on Windows")
			return
		}
		if envShell := os.Getenv("SHELL"); envShell != "" {
			if _, err := os.Stat(envShell); err == nil {
				shellPath = envShell
				return
			}
		}
		if _, err := os.Stat("/bin/sh"); err == nil {
			shellPath = "/bin/sh"
			return
		}
		shellErr = fmt.Errorf("bash: no POSIX shell found ($SHELL unset and /bin/sh missing)")
	})
	return shellPath, shellErr
}

func registerShellTool(r *Registry) {
	if _, err := resolveShell(); err != nil {
		panic(fmt.Sprintf("tools: %v", err))
	}
	r.register(ToolBash, "Execute a shell command in the workspace and return combined stdout/stderr.", bashSchema, false, bashTool)
}

func bashTool(ctx context.Context, ec *ExecutionContext, input json.RawMessage) string {
	params, err := parseInput[bashInput](input)
	if err != nil {
		return agenterr.Validation(err.Error()).Error()
	}
	if params.Command == "" {
		return agenterr.Validation("command is required").Error()
	}

	if err := ec.Workspace.CheckShellCommand(params.Command); err != nil {
		return err.Error()
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultBashTimeout
	}
	if timeout > maxBashTimeout {
		timeout = maxBashTimeout
	}

	shell, err := resolveShell()
	if err != nil {
		return agenterr.Configuration("no shell interpreter available", err).Error()
	}

	timeoutDur := time.Duration(timeout) * time.Second
	execCtx, cancel := context.WithTimeout(ctx, timeoutDur)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(execCtx, shell, "/C", params.Command)
	} else {
		cmd = exec.CommandContext(execCtx, shell, "-c", params.Command)
	}
	cmd.Dir = ec.Workspace.Root()

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()
	output := buf.String()

	if execCtx.Err() == context.DeadlineExceeded {
		return agenterr.ToolTimeout(timeoutDur.Seconds()).Error()
	}
	if runErr != nil {
		if output == "" {
			return fmt.Sprintf("Error: %v", runErr)
		}
		return fmt.Sprintf("%s\nError: %v", output, runErr)
	}
	if output == "" {
		return "(no output)"
	}
	return output
}
