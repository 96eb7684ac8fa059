// Pilot is a terminal-based AI coding agent: a REPL driving the agent core's
// turn loop against the current workspace.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/corewright/pilot/agent"
	"github.com/corewright/pilot/config"
	"github.com/corewright/pilot/model"
	"github.com/corewright/pilot/skills"
	"github.com/corewright/pilot/ui"
	"github.com/corewright/pilot/workspace"
)

var version = "dev"

func getVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:     "pilot",
		Short:   "Pilot — a terminal-based AI coding agent",
		Version: getVersion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.SugaredLogger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

func runREPL(verbose bool) error {
	log := newLogger(verbose)
	defer log.Sync()

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	cfg, err := config.Load(workDir, log)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	guard, err := workspace.New(workDir)
	if err != nil {
		return fmt.Errorf("initializing workspace guard: %w", err)
	}

	skillIdx := skills.Load(workDir, log)
	skillIdx.Watch()
	defer skillIdx.Close()

	client := model.NewAnthropicClient(cfg.AuthToken, cfg.BaseURL, log)
	term := ui.NewTerminal()

	ag := agent.New(agent.Config{
		Client:         client,
		Model:          cfg.Model,
		MaxTokens:      8192,
		ThinkingBudget: cfg.MaxThinking,
		Workspace:      guard,
		Skills:         skillIdx,
		Sink:           term,
	})

	term.PrintBanner(cfg.Model, workDir, getVersion())

	rootCtx := context.Background()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var mu sync.Mutex
	var runCancel context.CancelFunc
	var lastInterrupt time.Time

	go func() {
		for range sigCh {
			mu.Lock()
			cancel := runCancel
			now := time.Now()
			doubleTap := now.Sub(lastInterrupt) < 2*time.Second
			lastInterrupt = now
			mu.Unlock()

			if cancel != nil {
				ag.Interrupt()
				cancel()
			} else if doubleTap {
				fmt.Println("\nExiting.")
				os.Exit(0)
			} else {
				fmt.Println()
				fmt.Print(term.Prompt())
			}
		}
	}()

	reader := bufio.NewReader(os.Stdin)
	running := true
	for running {
		fmt.Print(term.Prompt())
		input, err := readInput(reader)
		if err != nil {
			break // EOF (Ctrl+D)
		}
		if input == "" {
			continue
		}

		switch input {
		case "/help":
			term.PrintHelp()
		case "/exit":
			running = false
		case "/clear":
			ag.Clear()
			term.Clear()
		case "/skills":
			term.PrintSkillList(ag.SkillDescriptions())
		case "/config":
			term.PrintConfig(cfg.Model, cfg.BaseURL, cfg.MaxThinking, workDir)
		case "/tasks":
			printTasks(term, ag)
		case "/rewind":
			handleRewind(reader, term, ag)
		default:
			runCtx, cancel := context.WithCancel(rootCtx)
			mu.Lock()
			runCancel = cancel
			mu.Unlock()

			escCtx, listener, escErr := term.StartEscapeListener(runCtx)
			if escErr == nil {
				runCtx = escCtx
			}

			err := ag.Run(runCtx, input)

			if listener != nil {
				listener.Stop()
			}

			mu.Lock()
			runCancel = nil
			mu.Unlock()
			cancel()

			if err != nil && err != context.Canceled {
				term.PrintError(err)
			}
		}
	}

	return nil
}

// readInput reads one line from the reader, then collects any additional
// pasted lines that arrived in the same paste event.
func readInput(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	lines := []string{strings.TrimRight(line, "\r\n")}

	for reader.Buffered() > 0 || ui.StdinHasData() {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func printTasks(term *ui.Terminal, ag *agent.Agent) {
	tasks := ag.Tasks()
	items := make([]ui.TaskListItem, len(tasks))
	for i, t := range tasks {
		items[i] = ui.TaskListItem{ID: i + 1, Content: t.Content, Status: string(t.Status)}
	}
	term.PrintTaskList(items)
}

func handleRewind(reader *bufio.Reader, term *ui.Terminal, ag *agent.Agent) {
	items := ag.Checkpoints()
	if len(items) == 0 {
		term.PrintWarning("No checkpoints available. Checkpoints are created at the start of each turn.")
		return
	}

	uiItems := make([]ui.CheckpointListItem, len(items))
	for i, item := range items {
		uiItems[i] = ui.CheckpointListItem{ID: item.ID, Turn: item.Turn, Timestamp: item.Timestamp, Preview: item.Preview}
	}
	term.PrintCheckpointList(uiItems)

	fmt.Print("Checkpoint number: ")
	choice, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return
	}

	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(items) {
		term.PrintWarning("Invalid checkpoint number.")
		return
	}

	term.PrintRewindActions()

	fmt.Print("Action: ")
	action, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	action = strings.TrimSpace(action)

	switch action {
	case "1":
		if err := ag.RewindAll(n); err != nil {
			term.PrintError(err)
			return
		}
		term.PrintRewindComplete("restored code and conversation")
	case "2":
		ag.RewindConversation(n)
		term.PrintRewindComplete("restored conversation only")
	case "3":
		if err := ag.RewindCode(n); err != nil {
			term.PrintError(err)
			return
		}
		term.PrintRewindComplete("restored code only")
	case "4":
		return
	default:
		term.PrintWarning("Invalid action.")
	}
}
