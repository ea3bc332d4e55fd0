// ABOUTME: CLI entrypoint for the spyglass stream viewer with watch, monitor, replay, send, and history modes.
// ABOUTME: Wires together the stream client, reconstruction store, animation scheduler, TUI, and signal handling.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/spyglass/config"
	"github.com/2389-research/spyglass/history"
	"github.com/2389-research/spyglass/replay"
	"github.com/2389-research/spyglass/stream"
	"github.com/2389-research/spyglass/trace"
	"github.com/2389-research/spyglass/tui"
	"github.com/2389-research/spyglass/web"
)

var version = "dev"

// cliConfig holds all CLI configuration parsed from flags.
type cliConfig struct {
	configPath   string
	monitorMode  bool
	replayMode   bool
	scenarioPath string
	sendText     string
	historyMode  bool
	historyLimit int
	showVersion  bool
}

func main() {
	loadDotEnv(".env")

	cli := parseFlags()

	if cli.showVersion {
		fmt.Printf("spyglass %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cli))
}

// parseFlags parses command-line flags and returns a populated cliConfig.
func parseFlags() cliConfig {
	var cli cliConfig

	fs := flag.NewFlagSet("spyglass", flag.ContinueOnError)
	fs.StringVar(&cli.configPath, "config", "spyglass.yaml", "Path to the YAML config file")
	fs.BoolVar(&cli.monitorMode, "monitor", false, "Serve the HTML monitor instead of the terminal viewer")
	fs.BoolVar(&cli.replayMode, "replay-server", false, "Run the local agent-platform simulator")
	fs.StringVar(&cli.scenarioPath, "scenario", "", "Scenario YAML for the simulator (default: built-in demo)")
	fs.StringVar(&cli.sendText, "send", "", "Submit a message and exit")
	fs.BoolVar(&cli.historyMode, "history", false, "List archived tasks and exit")
	fs.IntVar(&cli.historyLimit, "history-limit", 20, "Maximum archived tasks to list")
	fs.BoolVar(&cli.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	return cli
}

// run dispatches to the appropriate mode based on the flags.
// Returns an exit code: 0 for success, 1 for failure.
func run(cli cliConfig) int {
	cfg, err := config.Load(cli.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	switch {
	case cli.replayMode:
		return runReplayServer(cli, cfg)
	case cli.sendText != "":
		return runSend(cli.sendText, cfg)
	case cli.historyMode:
		return runHistory(cli.historyLimit, cfg)
	case cli.monitorMode:
		return runMonitor(cfg)
	default:
		return runViewer(cfg)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	return ctx, cancel
}

func stderrLogf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// buildStore assembles the store, correlation index, and optional capture
// recorder from configuration. The returned cleanup closes the recorder.
func buildStore(cfg config.Config) (*trace.Store, *trace.CorrelationIndex, *replay.Recorder, error) {
	idx := trace.NewCorrelationIndex()
	store := trace.NewStore(trace.StoreConfig{
		Palette:   cfg.Store.Palette,
		Sentinels: cfg.Store.Sentinels,
		MaxTasks:  cfg.Store.MaxTasks,
		Index:     idx,
	})

	var rec *replay.Recorder
	if cfg.Stream.CaptureEnabled {
		var err error
		rec, err = replay.NewRecorder(cfg.Stream.CapturePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening capture: %w", err)
		}
	}
	return store, idx, rec, nil
}

func streamConfig(cfg config.Config) stream.Config {
	return stream.Config{
		URL:   cfg.Stream.URL,
		Token: cfg.Stream.Token,
		Backoff: stream.Backoff{
			Base:        cfg.Stream.BackoffBase(),
			Cap:         cfg.Stream.BackoffCap(),
			MaxAttempts: cfg.Stream.MaxReconnects,
		},
	}
}

// runViewer runs the interactive terminal viewer: stream client, animation
// scheduler, and optional history archiving behind a Bubble Tea program.
func runViewer(cfg config.Config) int {
	store, _, rec, err := buildStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if rec != nil {
		defer rec.Close()
	}

	var archive *history.Archive
	if cfg.History.Enabled {
		archive, err = history.OpenArchive(cfg.History.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		defer archive.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	app := tui.NewAppModel(store, nil)
	program := tea.NewProgram(app, tea.WithAltScreen())
	bridge := tui.NewBridge(program.Send)

	// Store updates flow to the TUI; completed tasks are archived as a side
	// effect so history survives the session.
	updates := store.Subscribe()
	go func() {
		for u := range updates {
			bridge.OnUpdate(u)
			if archive != nil && u.Kind == trace.UpdateTaskCompleted {
				if snap, ok := store.Task(u.TaskID); ok {
					if err := archive.ArchiveTask(snap); err != nil {
						stderrLogf("[history] archive %s: %v", u.TaskID, err)
					}
				}
			}
		}
	}()

	sched := trace.NewScheduler(trace.SchedulerConfig{
		CollectWindow: cfg.Animation.CollectWindow(),
		LaneDelay:     cfg.Animation.LaneDelay(),
		OnLane:        bridge.OnLane,
		OnClear:       bridge.OnClear,
	})
	defer sched.Close()

	scfg := streamConfig(cfg)
	scfg.OnStatus = bridge.OnStatus
	scfg.OnStreamError = bridge.OnStreamError
	if rec != nil {
		scfg.OnEvent = func(ev trace.StageEvent) {
			if err := rec.Record(ev); err != nil {
				stderrLogf("[capture] %v", err)
			}
		}
	}

	client := stream.NewClient(scfg, store, sched)
	go func() {
		if err := client.Run(ctx); err != nil {
			bridge.OnStatus(stream.StatusLost, err.Error())
		}
	}()

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	cancel()
	store.Close()
	return 0
}

// runMonitor serves the HTML dashboard fed by the stream client.
func runMonitor(cfg config.Config) int {
	store, _, rec, err := buildStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if rec != nil {
		defer rec.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	scfg := streamConfig(cfg)
	scfg.Logf = stderrLogf
	scfg.OnStatus = func(s stream.Status, detail string) {
		stderrLogf("[stream] %s %s", s, detail)
	}
	if rec != nil {
		scfg.OnEvent = func(ev trace.StageEvent) {
			if err := rec.Record(ev); err != nil {
				stderrLogf("[capture] %v", err)
			}
		}
	}

	client := stream.NewClient(scfg, store, nil)
	go func() {
		if err := client.Run(ctx); err != nil {
			stderrLogf("[stream] %v", err)
		}
	}()

	dash, err := web.NewDashboard(store, stderrLogf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := dash.Serve(ctx, cfg.Monitor.Addr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runReplayServer runs the local simulator with the given or built-in scenario.
func runReplayServer(cli cliConfig, cfg config.Config) int {
	scenarioPath := cli.scenarioPath
	if scenarioPath == "" {
		scenarioPath = cfg.Replay.ScenarioPath
	}

	scenario := replay.DemoScenario()
	if scenarioPath != "" {
		var err error
		scenario, err = replay.LoadScenario(scenarioPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	srv := replay.NewServer(replay.ServerConfig{
		Addr:     cfg.Replay.Addr,
		Token:    cfg.Stream.Token,
		Scenario: scenario,
		Logf:     stderrLogf,
	})
	if err := srv.Serve(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runSend submits one message and prints the acknowledgement.
func runSend(text string, cfg config.Config) int {
	idx := trace.NewCorrelationIndex()
	sub := stream.NewSubmitter(stream.SubmitterConfig{
		URL:       cfg.Submit.URL,
		Token:     cfg.Stream.Token,
		ChannelID: cfg.Submit.ChannelID,
		Logf:      stderrLogf,
	}, idx)

	ctx, cancel := signalContext()
	defer cancel()

	ack, err := sub.Send(ctx, text)
	if err != nil {
		var rej *stream.RejectionError
		if errors.As(err, &rej) {
			fmt.Fprintf(os.Stderr, "rejected: %s (%s)\n", rej.Reason, rej.Detail)
			return 1
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf("accepted: task=%s message=%s\n", ack.TaskID, ack.MessageID)
	return 0
}

// runHistory lists archived tasks from the SQLite archive.
func runHistory(limit int, cfg config.Config) int {
	archive, err := history.OpenArchive(cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer archive.Close()

	tasks, err := archive.RecentTasks(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if len(tasks) == 0 {
		fmt.Println("no archived tasks")
		return 0
	}

	for _, t := range tasks {
		state := "active"
		if t.Completed {
			state = "done"
		}
		origin := "remote"
		if t.LocallyOriginated {
			origin = "local"
		}
		fmt.Printf("%s  %-6s %-6s %2d thoughts  %s\n",
			t.TaskID, state, origin, t.ThoughtCount, t.Description)
	}
	return 0
}
