package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hatloop/hatloop/internal/backend"
	"github.com/hatloop/hatloop/internal/config"
	"github.com/hatloop/hatloop/internal/diagnostics"
	"github.com/hatloop/hatloop/internal/event"
	"github.com/hatloop/hatloop/internal/eventlog"
	httpiface "github.com/hatloop/hatloop/internal/interfaces/http"
	wsiface "github.com/hatloop/hatloop/internal/interfaces/websocket"
	"github.com/hatloop/hatloop/internal/hats"
	"github.com/hatloop/hatloop/internal/index"
	"github.com/hatloop/hatloop/internal/logger"
	"github.com/hatloop/hatloop/internal/looprun"
	"github.com/hatloop/hatloop/internal/notify"
	"github.com/hatloop/hatloop/internal/preflight"
	"github.com/hatloop/hatloop/internal/proof"
	"github.com/hatloop/hatloop/internal/registry"
	"github.com/hatloop/hatloop/internal/reporter"
	"github.com/hatloop/hatloop/internal/skills"
	"github.com/hatloop/hatloop/internal/tasks"
	"github.com/hatloop/hatloop/internal/topic"
	"github.com/hatloop/hatloop/internal/workspace"
	"github.com/hatloop/hatloop/pkg/safego"
)

const (
	cliName    = "hatloop"
	cliVersion = "0.1.0"
)

// legacyEnvAliases maps a deprecated RALPH_-prefixed variable to its
// current HATLOOP_ equivalent. Both families resolve to the same
// semantic key; the legacy one only warns once per process.
var legacyEnvAliases = map[string]string{
	"RALPH_DIAGNOSTICS":        "HATLOOP_DIAGNOSTICS",
	"RALPH_TELEGRAM_BOT_TOKEN": "HATLOOP_TELEGRAM_BOT_TOKEN",
	"RALPH_TELEGRAM_CHAT_ID":   "HATLOOP_TELEGRAM_CHAT_ID",
	"RALPH_INDEX_DB":           "HATLOOP_INDEX_DB",
}

func main() {
	applyLegacyEnvAliases()

	root := &cobra.Command{
		Use:   cliName,
		Short: "hatloop — event-driven orchestrator for long-running coding agents",
	}

	root.AddCommand(
		newRunCmd(),
		newPreflightCmd(),
		newToolsCmd(),
		newEmitCmd(),
		newCleanCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the hatloop version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", cliName, cliVersion)
		},
	}
}

// applyLegacyEnvAliases backfills a current-family variable from its
// legacy counterpart when the operator hasn't set the current one
// themselves, warning once so old automation keeps working during a
// migration window.
func applyLegacyEnvAliases() {
	for legacy, current := range legacyEnvAliases {
		value, set := os.LookupEnv(legacy)
		if !set {
			continue
		}
		if _, currentSet := os.LookupEnv(current); !currentSet {
			os.Setenv(current, value)
		}
		fmt.Fprintf(os.Stderr, "warning: %s is deprecated, use %s instead\n", legacy, current)
	}
}

func newRunCmd() *cobra.Command {
	var (
		configPath            string
		overrides             []string
		promptFlag            string
		continueFlag          bool
		noTUI                 bool
		backendOverride       string
		maxIterationsOverride int
		completionPromiseFlag string
		dryRun                bool
		skipPreflight         bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a loop to completion against the current workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(runOptions{
				configPath:        configPath,
				overrides:         overrides,
				prompt:            promptFlag,
				continueRun:       continueFlag,
				noTUI:             noTUI,
				backendOverride:   backendOverride,
				maxIterations:     maxIterationsOverride,
				completionPromise: completionPromiseFlag,
				dryRun:            dryRun,
				skipPreflight:     skipPreflight,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "explicit config file path (overrides the default discovery)")
	cmd.Flags().StringArrayVar(&overrides, "override", nil, "ad-hoc config override as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&promptFlag, "prompt", "", "the task prompt for this loop")
	cmd.Flags().BoolVar(&continueFlag, "continue", false, "run in the primary checkout even when use_worktree is set; the event log is still rotated to a fresh file")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "disable interactive TUI rendering")
	cmd.Flags().StringVar(&backendOverride, "backend", "", "override the configured backend command")
	cmd.Flags().IntVar(&maxIterationsOverride, "max-iterations", 0, "override the configured max_iterations (0 = use config)")
	cmd.Flags().StringVar(&completionPromiseFlag, "completion-promise", "", "override the configured completion promise")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report without invoking the backend")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "skip preflight checks before running")

	return cmd
}

type runOptions struct {
	configPath        string
	overrides         []string
	prompt            string
	continueRun       bool
	noTUI             bool
	backendOverride   string
	maxIterations     int
	completionPromise string
	dryRun            bool
	skipPreflight     bool
}

func runLoop(opts runOptions) error {
	cfg, err := config.LoadFromWithOverrides(opts.configPath, opts.overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.backendOverride != "" {
		cfg.Backend.Command = opts.backendOverride
	}
	if opts.maxIterations > 0 {
		cfg.Loop.MaxIterations = opts.maxIterations
	}
	if opts.completionPromise != "" {
		cfg.Loop.CompletionPromise = opts.completionPromise
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}

	if !opts.skipPreflight {
		result := preflight.Run(cfg, repoRoot, nil, log)
		for _, c := range result.Checks {
			fmt.Printf("[%s] %s: %s\n", c.Status, c.Label, c.Message)
		}
		if !result.Passed {
			return fmt.Errorf("preflight failed, see checks above")
		}
	}

	if opts.dryRun {
		fmt.Println("dry-run: exiting without invoking the backend")
		return nil
	}

	loopID := uuid.NewString()
	var loopCtx workspace.Context
	if cfg.Loop.UseWorktree && !opts.continueRun {
		loopCtx = workspace.Worktree(loopID, repoRoot)
		if err := os.MkdirAll(loopCtx.Workspace, 0o755); err != nil {
			return fmt.Errorf("create worktree workspace: %w", err)
		}
	} else {
		loopCtx = workspace.Primary(repoRoot)
		loopCtx.LoopID = loopID
	}

	registryPath := filepath.Join(repoRoot, cfg.Loop.AppDir, "registry.jsonl")
	loopReg, err := registry.Open(registryPath)
	if err != nil {
		return fmt.Errorf("open loop registry: %w", err)
	}

	configuredHats := make([]hats.ConfiguredHat, 0, len(cfg.Hats))
	for _, h := range cfg.Hats {
		configuredHats = append(configuredHats, hats.ConfiguredHat{
			ID:              h.ID,
			Name:            h.Name,
			Triggers:        h.Triggers,
			Publishes:       h.Publishes,
			Instructions:    h.Instructions,
			BackendOverride: h.BackendOverride,
		})
	}
	hatRegistry := hats.NewRegistry(hats.FromConfig(configuredHats))

	diagDir := filepath.Join(loopCtx.Workspace, cfg.Loop.AppDir)
	var diag *diagnostics.Collector
	if cfg.Diagnostics {
		diag, err = diagnostics.Open(diagDir, loopCtx.LoopID)
		if err != nil {
			return fmt.Errorf("open diagnostics collector: %w", err)
		}
		defer diag.Close()
	}

	executor := backend.NewSelectingExecutor(cfg.Backend.UsePTY, log)

	driverCfg := looprun.Config{
		CompletionPromise: cfg.Loop.CompletionPromise,
		AppDirName:        cfg.Loop.AppDir,
		Limits: looprun.Limits{
			MaxIterations:       cfg.Loop.MaxIterations,
			MaxRuntime:          cfg.Loop.MaxRuntime,
			MaxFailedIterations: cfg.Loop.MaxFailedIterations,
			ComplexityThreshold: cfg.Loop.ComplexityThreshold,
		},
		AutoMerge: cfg.Loop.AutoMerge,
		BackendSpec: backend.Spec{
			Command:      cfg.Backend.Command,
			Args:         cfg.Backend.Args,
			PromptMode:   backend.PromptMode(cfg.Backend.PromptMode),
			PromptFlag:   cfg.Backend.PromptFlag,
			OutputFormat: backend.OutputFormat(cfg.Backend.OutputFormat),
			Cols:         cfg.Backend.Cols,
			Rows:         cfg.Backend.Rows,
			IdleTimeout:  cfg.Backend.IdleTimeout,
			GraceTimeout: cfg.Backend.GraceTimeout,
		},
	}

	driver := looprun.NewDriver(driverCfg, loopCtx, hatRegistry, loopReg, executor, diag, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("received shutdown signal, aborting loop")
		cancel()
	}()

	state, err := driver.Run(ctx, opts.prompt)
	if err != nil {
		return fmt.Errorf("loop run: %w", err)
	}

	notifier := buildNotifier(cfg, log)
	if notifyErr := notifier.NotifyTerminal(context.Background(), loopCtx.LoopID, state, ""); notifyErr != nil {
		log.Warn("terminal notification failed", zap.Error(notifyErr))
	}

	artifact, _ := proof.Read(diagDir, loopCtx.LoopID)
	if opts.noTUI {
		out, renderErr := reporter.NewJSON().Render(state, "", artifact)
		if renderErr != nil {
			return renderErr
		}
		fmt.Println(out)
	} else {
		fmt.Println(reporter.NewHuman(80).Render(state, "", artifact))
	}

	if state != looprun.StateCompleted {
		return fmt.Errorf("loop ended in state %s", state)
	}
	return nil
}

func buildNotifier(cfg *config.Config, log *zap.Logger) notify.Notifier {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0 {
		return notify.NullNotifier{}
	}
	tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
	if err != nil {
		log.Warn("telegram notifier init failed, falling back to null notifier", zap.Error(err))
		return notify.NullNotifier{}
	}
	return tg
}

func newPreflightCmd() *cobra.Command {
	var (
		format string
		strict bool
		checks []string
	)

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "run pre-flight checks before a loop would start",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Config{Level: "error", Format: "console"})
			if err != nil {
				return err
			}
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}

			result := preflight.Run(cfg, repoRoot, checks, log)

			switch format {
			case "json":
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			default:
				for _, c := range result.Checks {
					fmt.Printf("[%s] %s", c.Status, c.Label)
					if c.Message != "" {
						fmt.Printf(": %s", c.Message)
					}
					fmt.Println()
				}
				if result.Passed {
					fmt.Println("PASS")
				} else {
					fmt.Println("FAIL")
				}
			}

			if !result.Passed {
				os.Exit(1)
			}
			if strict && result.Warnings > 0 {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "human", "human|json")
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as failures")
	cmd.Flags().StringSliceVar(&checks, "check", nil, "restrict to the named checks (repeatable)")
	return cmd
}

func newToolsCmd() *cobra.Command {
	tools := &cobra.Command{Use: "tools", Short: "task, skill, and registry helper commands"}
	tools.AddCommand(newTaskCmd(), newSkillCmd(), newRegistryCmd())
	return tools
}

func tasksPath() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	repoRoot, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(repoRoot, cfg.Loop.AppDir, "tasks.jsonl"), nil
}

func newTaskCmd() *cobra.Command {
	var format string
	task := &cobra.Command{Use: "task", Short: "manage the JSONL-backed task store"}

	addCmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "add a new open task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := tasksPath()
			if err != nil {
				return err
			}
			store, err := tasks.Load(path)
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			t, err := store.Add(args[0], description, 0, nil, "")
			if err != nil {
				return err
			}
			return renderTasks(format, []tasks.Task{t})
		},
	}
	addCmd.Flags().String("description", "", "optional task description")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list every task",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := tasksPath()
			if err != nil {
				return err
			}
			store, err := tasks.Load(path)
			if err != nil {
				return err
			}
			return renderTasks(format, store.All())
		},
	}

	showCmd := &cobra.Command{
		Use:   "show ID",
		Short: "show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := tasksPath()
			if err != nil {
				return err
			}
			store, err := tasks.Load(path)
			if err != nil {
				return err
			}
			t, ok := store.Get(args[0])
			if !ok {
				return fmt.Errorf("no such task: %s", args[0])
			}
			return renderTasks(format, []tasks.Task{t})
		},
	}

	closeCmd := &cobra.Command{
		Use:   "close ID",
		Short: "mark a task closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := tasksPath()
			if err != nil {
				return err
			}
			store, err := tasks.Load(path)
			if err != nil {
				return err
			}
			t, err := store.Close(args[0])
			if err != nil {
				return err
			}
			return renderTasks(format, []tasks.Task{t})
		},
	}

	failCmd := &cobra.Command{
		Use:   "fail ID",
		Short: "mark a task failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := tasksPath()
			if err != nil {
				return err
			}
			store, err := tasks.Load(path)
			if err != nil {
				return err
			}
			t, err := store.Fail(args[0])
			if err != nil {
				return err
			}
			return renderTasks(format, []tasks.Task{t})
		},
	}

	readyCmd := &cobra.Command{
		Use:   "ready",
		Short: "list tasks that are open and unblocked; when HATLOOP_LOOP_ID is set, only that loop's tasks (no marker file is read)",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := tasksPath()
			if err != nil {
				return err
			}
			store, err := tasks.Load(path)
			if err != nil {
				return err
			}
			currentLoopID := os.Getenv("HATLOOP_LOOP_ID")
			return renderTasks(format, store.Ready(currentLoopID))
		},
	}

	task.PersistentFlags().StringVar(&format, "format", "table", "table|json|quiet")
	task.AddCommand(addCmd, listCmd, showCmd, closeCmd, failCmd, readyCmd)
	return task
}

func renderTasks(format string, list []tasks.Task) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "quiet":
		for _, t := range list {
			fmt.Println(t.ID)
		}
	default:
		for _, t := range list {
			fmt.Printf("%s\t%s\t%s\n", t.ID, t.Status, t.Title)
		}
	}
	return nil
}

func newSkillCmd() *cobra.Command {
	var format string
	skill := &cobra.Command{Use: "skill", Short: "load or list prompt-fragment skills"}

	loadCmd := &cobra.Command{
		Use:   "load NAME",
		Short: "print a skill's raw content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := skillsDir()
			if err != nil {
				return err
			}
			content, err := skills.Load(dir, args[0])
			if err != nil {
				return err
			}
			fmt.Print(content)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list every available skill",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := skillsDir()
			if err != nil {
				return err
			}
			names, err := skills.List(dir)
			if err != nil {
				return err
			}
			switch format {
			case "json":
				data, _ := json.MarshalIndent(names, "", "  ")
				fmt.Println(string(data))
			default:
				for _, n := range names {
					fmt.Println(n)
				}
			}
			return nil
		},
	}

	skill.PersistentFlags().StringVar(&format, "format", "table", "table|json|quiet")
	skill.AddCommand(loadCmd, listCmd)
	return skill
}

func skillsDir() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	repoRoot, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(repoRoot, cfg.Loop.AppDir, "skills"), nil
}

func newRegistryCmd() *cobra.Command {
	registryCmd := &cobra.Command{Use: "registry", Short: "manage the sqlite RegistryIndex mirror"}

	rebuildCmd := &cobra.Command{
		Use:   "rebuild",
		Short: "rebuild the sqlite index from the JSONL LoopRegistry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			reg, err := registry.Open(filepath.Join(repoRoot, cfg.Loop.AppDir, "registry.jsonl"))
			if err != nil {
				return err
			}
			db, err := index.Open(resolveIndexDSN(cfg, repoRoot))
			if err != nil {
				return err
			}
			n, err := index.Rebuild(db, reg)
			if err != nil {
				return err
			}
			fmt.Printf("rebuilt %d rows\n", n)
			return nil
		},
	}

	registryCmd.AddCommand(rebuildCmd)
	return registryCmd
}

func resolveIndexDSN(cfg *config.Config, repoRoot string) string {
	dsn := cfg.Database.DSN
	if override := os.Getenv("HATLOOP_INDEX_DB"); override != "" {
		dsn = override
	}
	if !filepath.IsAbs(dsn) {
		dsn = filepath.Join(repoRoot, dsn)
	}
	return dsn
}

func newEmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "emit TOPIC [PAYLOAD]",
		Short: "append an event to the active log, honoring the current marker",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			payload := ""
			if len(args) == 2 {
				payload = args[1]
			}
			log, err := eventlog.Open(filepath.Join(repoRoot, cfg.Loop.AppDir))
			if err != nil {
				return err
			}
			defer log.Close()
			return log.Append(event.New(topic.New(args[0]), payload))
		},
	}
}

func newCleanCmd() *cobra.Command {
	clean := &cobra.Command{Use: "clean", Short: "remove derived, rebuildable state"}

	var dryRun bool
	diagCmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "remove the .<app>/diagnostics directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			dir := filepath.Join(repoRoot, cfg.Loop.AppDir, "diagnostics")
			if dryRun {
				fmt.Println("would remove:", dir)
				return nil
			}
			if err := os.RemoveAll(dir); err != nil {
				return err
			}
			fmt.Println("removed:", dir)
			return nil
		},
	}
	diagCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be removed without removing it")

	clean.AddCommand(diagCmd)
	return clean
}

func newServeCmd() *cobra.Command {
	serve := &cobra.Command{Use: "serve", Short: "start read-only server surfaces"}

	var httpAddr, wsAddr string
	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "start the read-only HTTP + WebSocket dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.Dashboard.HTTPAddr = httpAddr
			}
			if wsAddr != "" {
				cfg.Dashboard.WSAddr = wsAddr
			}

			log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			if err != nil {
				return err
			}
			defer log.Sync()

			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}

			db, err := index.Open(resolveIndexDSN(cfg, repoRoot))
			if err != nil {
				return err
			}

			httpServer := httpiface.NewServer(httpiface.Config{
				Addr:   cfg.Dashboard.HTTPAddr,
				Mode:   "release",
				AppDir: filepath.Join(repoRoot, cfg.Loop.AppDir),
			}, db, log)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := httpServer.Start(ctx); err != nil {
				return err
			}

			hub := wsiface.NewHub(log)
			safego.Go(log, "websocket-hub", func() { hub.Run(ctx) })
			wsHandler := wsiface.NewHandler(hub, log)
			wsMux := http.NewServeMux()
			wsMux.HandleFunc("/", wsHandler.ServeWS)
			wsServer := &http.Server{Addr: cfg.Dashboard.WSAddr, Handler: wsMux}
			safego.Go(log, "websocket-server", func() {
				if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("websocket server error", zap.Error(err))
				}
			})
			defer wsServer.Shutdown(context.Background())

			log.Info("dashboard serving", zap.String("http_addr", cfg.Dashboard.HTTPAddr), zap.String("ws_addr", cfg.Dashboard.WSAddr))

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return httpServer.Stop(shutdownCtx)
		},
	}
	dashboardCmd.Flags().StringVar(&httpAddr, "http-addr", "", "override the dashboard HTTP listen address")
	dashboardCmd.Flags().StringVar(&wsAddr, "ws-addr", "", "override the dashboard WebSocket listen address")

	serve.AddCommand(dashboardCmd)
	return serve
}

