package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/luoli523/x-monitor/internal/analyzer"
	"github.com/luoli523/x-monitor/internal/config"
	"github.com/luoli523/x-monitor/internal/fetch"
	"github.com/luoli523/x-monitor/internal/notify"
	"github.com/luoli523/x-monitor/internal/pipeline"
	"github.com/luoli523/x-monitor/internal/registry"
	"github.com/luoli523/x-monitor/internal/report"
	"github.com/luoli523/x-monitor/internal/scheduler"
	"github.com/luoli523/x-monitor/internal/source"
	"github.com/luoli523/x-monitor/internal/store"
)

const usage = `Usage: xmonitor <command> [flags]

Commands:
  add <handle> [-note TEXT]        add an account to monitor
  remove <handle>                  stop monitoring an account
  list                             list monitored accounts
  run                              run the monitoring job once
  regenerate [-date YYYY-MM-DD] [-notify]
                                   rebuild a report from stored posts only
  history [-days N]                show recent summaries
  serve                            run the daily scheduler as a service
`

func main() {
	os.Exit(run())
}

func run() int {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WarnContext(ctx, "Failed to load .env file",
			"error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return 1
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)

		return 2
	}

	switch os.Args[1] {
	case "add":
		return cmdAdd(ctx, cfg, log, os.Args[2:])
	case "remove":
		return cmdRemove(cfg, log, os.Args[2:])
	case "list":
		return cmdList(cfg, log)
	case "run":
		return cmdRun(ctx, cfg, log)
	case "regenerate":
		return cmdRegenerate(ctx, cfg, log, os.Args[2:])
	case "history":
		return cmdHistory(ctx, cfg, log, os.Args[2:])
	case "serve":
		return cmdServe(ctx, cancel, cfg, log)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)

		return 2
	}
}

func cmdAdd(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	note := fs.String("note", "", "optional note for the account")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: xmonitor add <handle> [-note TEXT]")

		return 2
	}

	reg, err := registry.Load(cfg.AccountsPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load registry",
			"error", err,
			"path", cfg.AccountsPath)

		return 1
	}

	account, err := reg.Add(fs.Arg(0), *note)
	if errors.Is(err, registry.ErrDuplicateAccount) {
		fmt.Printf("@%s is already being monitored\n", registry.NormalizeHandle(fs.Arg(0)))

		return 1
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to add account",
			"error", err,
			"handle", fs.Arg(0))

		return 1
	}

	// Cache identity fields now so the first run does not need the lookup.
	if cfg.XBearerToken != "" {
		src := source.NewXClient(cfg.XAPIBaseURL, cfg.XBearerToken, cfg.FetchMaxResults, log)
		for _, a := range reg.EnsureIdentities(ctx, src) {
			if a.Handle == account.Handle {
				account = &a
				break
			}
		}
	}

	if account.DisplayName != "" {
		fmt.Printf("Added @%s (%s)\n", account.Handle, account.DisplayName)
	} else {
		fmt.Printf("Added @%s\n", account.Handle)
	}

	return 0
}

func cmdRemove(cfg *config.Config, log *slog.Logger, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: xmonitor remove <handle>")

		return 2
	}

	reg, err := registry.Load(cfg.AccountsPath, log)
	if err != nil {
		log.Error("Failed to load registry",
			"error", err,
			"path", cfg.AccountsPath)

		return 1
	}

	removed, err := reg.Remove(args[0])
	if err != nil {
		log.Error("Failed to remove account",
			"error", err,
			"handle", args[0])

		return 1
	}

	if !removed {
		fmt.Printf("@%s is not being monitored\n", registry.NormalizeHandle(args[0]))

		return 1
	}

	fmt.Printf("Removed @%s\n", registry.NormalizeHandle(args[0]))

	return 0
}

func cmdList(cfg *config.Config, log *slog.Logger) int {
	reg, err := registry.Load(cfg.AccountsPath, log)
	if err != nil {
		log.Error("Failed to load registry",
			"error", err,
			"path", cfg.AccountsPath)

		return 1
	}

	accounts := reg.List()
	if len(accounts) == 0 {
		fmt.Println("No accounts being monitored.")

		return 0
	}

	fmt.Printf("Monitoring %d accounts:\n", len(accounts))
	for _, a := range accounts {
		line := "  @" + a.Handle
		if a.DisplayName != "" {
			line += " (" + a.DisplayName + ")"
		}
		if a.Note != "" {
			line += " - " + a.Note
		}
		fmt.Println(line)
	}

	return 0
}

func cmdRun(ctx context.Context, cfg *config.Config, log *slog.Logger) int {
	p, closeStore, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to build pipeline",
			"error", err)

		return 1
	}
	defer closeStore()

	res, err := p.Run(ctx)
	if errors.Is(err, pipeline.ErrNoAccounts) {
		fmt.Println("No accounts to monitor. Add one with: xmonitor add <handle>")

		return 1
	}
	if err != nil {
		log.ErrorContext(ctx, "Run failed",
			"error", err)

		return 1
	}

	fmt.Printf("Run completed: %d fetched, %d skipped, %d failed, %d new posts\n",
		res.AccountsFetched, res.AccountsSkipped, res.AccountsFailed, res.PostsInserted)
	for _, h := range res.SkippedHandles {
		fmt.Printf("  skipped: @%s\n", h)
	}
	for _, h := range res.FailedHandles {
		fmt.Printf("  failed:  @%s\n", h)
	}
	if res.AnalysisErr != nil {
		fmt.Printf("Analysis failed, no summary produced: %v\n", res.AnalysisErr)

		return 1
	}

	return 0
}

func cmdRegenerate(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("regenerate", flag.ExitOnError)
	dateStr := fs.String("date", "", "date to regenerate (YYYY-MM-DD), default today")
	doNotify := fs.Bool("notify", false, "send notifications after regeneration")
	_ = fs.Parse(args)

	date := time.Now().UTC()
	if *dateStr != "" {
		var err error
		date, err = time.Parse("2006-01-02", *dateStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid date %q, expected YYYY-MM-DD\n", *dateStr)

			return 2
		}
	}

	p, closeStore, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to build pipeline",
			"error", err)

		return 1
	}
	defer closeStore()

	summary, err := p.Regenerate(ctx, date, *doNotify)
	if errors.Is(err, pipeline.ErrNoDataForDate) {
		fmt.Printf("No posts stored for %s\n", date.Format("2006-01-02"))

		return 1
	}
	if err != nil {
		log.ErrorContext(ctx, "Regenerate failed",
			"error", err,
			"date", date.Format("2006-01-02"))

		return 1
	}

	fmt.Printf("Report regenerated for %s: %d posts from %d accounts\n",
		summary.Date.Format("2006-01-02"), summary.PostCount, summary.AccountCount)

	return 0
}

func cmdHistory(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	days := fs.Int("days", 7, "number of summaries to show")
	_ = fs.Parse(args)

	st, err := store.New(ctx, cfg.DatabasePath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open store",
			"error", err,
			"dbPath", cfg.DatabasePath)

		return 1
	}
	defer closeStoreLogged(st, log)

	summaries, err := st.RecentSummaries(ctx, *days)
	if err != nil {
		log.ErrorContext(ctx, "Failed to read summaries",
			"error", err)

		return 1
	}

	if len(summaries) == 0 {
		fmt.Println("No summaries found.")

		return 0
	}

	fmt.Printf("Recent %d summaries:\n", len(summaries))
	for _, s := range summaries {
		fmt.Printf("  %s  accounts=%d posts=%d\n",
			s.Date.Format("2006-01-02"), s.AccountCount, s.PostCount)
		if len(s.Insights) > 0 {
			fmt.Printf("    %s\n", s.Insights[0])
		}
	}

	return 0
}

func cmdServe(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, log *slog.Logger) int {
	p, closeStore, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to build pipeline",
			"error", err)

		return 1
	}
	defer closeStore()

	sched := scheduler.New(ctx, p, cfg.SummaryCronHour, cfg.SummaryCronMinute, log)
	if err := sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", sched.Spec())

		return 1
	}
	defer sched.Stop()

	log.InfoContext(ctx, "Scheduler is started",
		"spec", sched.Spec(),
		"timezone", scheduler.Timezone)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	return 0
}

func buildPipeline(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
) (*pipeline.Pipeline, func(), error) {
	if strings.TrimSpace(cfg.XBearerToken) == "" {
		return nil, nil, errors.New("X_BEARER_TOKEN is required")
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil, nil, errors.New("OPENAI_API_KEY is required")
	}

	reg, err := registry.Load(cfg.AccountsPath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("load registry: %w", err)
	}

	st, err := store.New(ctx, cfg.DatabasePath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	src := source.NewXClient(cfg.XAPIBaseURL, cfg.XBearerToken, cfg.FetchMaxResults, log)

	fetcher := fetch.New(src, fetch.Config{
		BatchSize:    cfg.FetchBatchSize,
		AccountDelay: cfg.FetchAccountDelay,
		BatchDelay:   cfg.FetchBatchDelay,
	}, log)

	llm, err := analyzer.NewOpenAIAnalyzer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		closeStoreLogged(st, log)
		return nil, nil, fmt.Errorf("create analyzer: %w", err)
	}

	var notifiers []notify.Notifier
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, log)
		if err != nil {
			closeStoreLogged(st, log)
			return nil, nil, fmt.Errorf("create telegram notifier: %w", err)
		}
		notifiers = append(notifiers, tg)
		log.InfoContext(ctx, "Telegram notifications enabled")
	}
	if cfg.EmailEnabled() {
		notifiers = append(notifiers, notify.NewEmailNotifier(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			To:       cfg.EmailTo,
		}, log))
		log.InfoContext(ctx, "Email notifications enabled")
	}

	p := pipeline.New(pipeline.Deps{
		Registry:  reg,
		Store:     st,
		Fetcher:   fetcher,
		Source:    src,
		Analyzer:  llm,
		Notifiers: notifiers,
		Exporter:  report.NewExporter(cfg.OutputDir),
		Lookback:  cfg.Lookback(),
		Log:       log,
	})

	return p, func() { closeStoreLogged(st, log) }, nil
}

func closeStoreLogged(st *store.Store, log *slog.Logger) {
	if err := st.Close(); err != nil {
		log.Error("Failed to close store",
			"error", err)
	}
}
