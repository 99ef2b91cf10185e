package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"arbor/internal/config"
	"arbor/internal/language"
	"arbor/internal/report"
	"arbor/internal/shared/observability"
	"arbor/internal/watch"
)

var (
	configPath  = flag.String("config", "./arbor.toml", "Path to config file")
	queryFlag   = flag.String("query", "", "Run an s-expression pattern against the file")
	diffFlag    = flag.Bool("diff", false, "Diff two files structurally: arbor -diff <old> <new>")
	watchFlag   = flag.Bool("watch", false, "Watch paths and reparse on change")
	historyFlag = flag.Bool("history", false, "Print recent recorded runs")
	langFlag    = flag.String("language", "", "Force a language instead of detecting from the path")
	depthFlag   = flag.Int("depth", 0, "Limit tree output depth (0 = unlimited)")
	jsonFlag    = flag.Bool("json", false, "Emit JSON instead of styled text")
	uiFlag      = flag.Bool("ui", false, "Browse the parsed tree interactively")
	serveFlag   = flag.Bool("serve", false, "Expose /metrics and /health while running")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	version     = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.3.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("arbor v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logOutput := os.Stderr
	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serveFlag {
		shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, VERSION)
		if err != nil {
			slog.Error("failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("trace shutdown failed", "error", err)
			}
		}()

		server := observability.NewServer(cfg.Observability.Listen, VERSION)
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			os.Exit(1)
		}
		defer server.Stop(context.Background())
	}

	if err := run(ctx, app); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	// The default path is optional; an explicit one must exist.
	if os.IsNotExist(err) && path == "./arbor.toml" {
		return config.Default(), nil
	}
	return nil, err
}

func run(ctx context.Context, app *App) error {
	force := language.ID(*langFlag)

	switch {
	case *historyFlag:
		runs, err := app.RecentRuns(50)
		if err != nil {
			return err
		}
		if *jsonFlag {
			return printJSON(report.RunsJSON(runs))
		}
		fmt.Print(report.RenderRuns(runs))
		return nil

	case *diffFlag:
		if flag.NArg() != 2 {
			return fmt.Errorf("diff mode requires two file arguments: arbor -diff <old> <new>")
		}
		ops, err := app.DiffFiles(ctx, flag.Arg(0), flag.Arg(1), force)
		if err != nil {
			return err
		}
		if *jsonFlag {
			return printJSON(report.OpsJSON(ops))
		}
		fmt.Print(report.RenderOps(ops))
		return nil

	case *queryFlag != "":
		if flag.NArg() != 1 {
			return fmt.Errorf("query mode requires one file argument: arbor -query <pattern> <file>")
		}
		matches, err := app.QueryFile(ctx, flag.Arg(0), *queryFlag, force)
		if err != nil {
			return err
		}
		return printMatches(matches, *jsonFlag)

	case *watchFlag:
		return app.Watch(ctx, flag.Args(), func(result watch.Result) {
			printWatchResult(result)
		})

	default:
		if flag.NArg() != 1 {
			flag.Usage()
			return fmt.Errorf("expected one file argument")
		}
		out, err := app.ParseFile(ctx, flag.Arg(0), force)
		if err != nil {
			return err
		}
		if *uiFlag && !out.Heuristic() {
			return runUI(out)
		}
		if *jsonFlag {
			if out.Heuristic() {
				return printJSON(report.SpansJSON(out.Spans))
			}
			return printJSON(report.TreeJSON(out.Tree))
		}
		if out.Heuristic() {
			fmt.Print(report.RenderSpans(out.Spans))
			return nil
		}
		fmt.Print(report.RenderTree(out.Tree, *depthFlag))
		return nil
	}
}

func printJSON(data []byte, err error) error {
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
