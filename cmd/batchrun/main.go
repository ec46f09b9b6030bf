package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"genvrbatch/internal/batch"
	"genvrbatch/internal/catalog"
	"genvrbatch/internal/domain"
	"genvrbatch/internal/genvr"
	"genvrbatch/internal/infra"
	"genvrbatch/internal/source"
	"genvrbatch/internal/storage"
)

func main() {
	var (
		fileFlag        string
		categoryFlag    string
		subcategoryFlag string
		concurrencyFlag int
		exportFlag      string
	)

	flag.StringVar(&fileFlag, "file", "", "batch file (.csv, .json or .jsonl)")
	flag.StringVar(&categoryFlag, "category", "", "model category (e.g. imgedit)")
	flag.StringVar(&subcategoryFlag, "subcategory", "", "model subcategory (e.g. background_change)")
	flag.IntVar(&concurrencyFlag, "concurrency", 0, "concurrent requests (defaults to BATCH_CONCURRENCY)")
	flag.StringVar(&exportFlag, "export", "", "write the batch report to this key under RESULTS_PATH")
	flag.Parse()

	if strings.TrimSpace(fileFlag) == "" {
		exitWithError(errors.New("-file is required"))
	}
	if strings.TrimSpace(categoryFlag) == "" || strings.TrimSpace(subcategoryFlag) == "" {
		exitWithError(errors.New("-category and -subcategory are required"))
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	concurrency := concurrencyFlag
	if concurrency < 1 {
		concurrency = cfg.Concurrency
	}

	items, err := source.LoadFile(fileFlag)
	if err != nil {
		exitWithError(err)
	}
	requests := source.Requests(categoryFlag, subcategoryFlag, items)

	client, err := genvr.NewClient(genvr.Options{
		APIKey:       cfg.APIKey,
		UID:          cfg.UID,
		BaseURL:      cfg.BaseURL,
		Logger:       &logger,
		PollInterval: cfg.PollInterval,
		MaxPollTime:  cfg.MaxPollTime,
	})
	if err != nil {
		exitWithError(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Requests are checked against the model's schema before submission; on a
	// failed refresh unknown models pass through and the remote validates.
	cat := catalog.New(client, logger)
	if err := cat.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("batchrun: catalog refresh failed, deferring validation to the remote")
	}

	// Ctrl-C cancels the batch cooperatively: in-flight items observe the
	// token at their next poll tick, pending items never start.
	token := batch.NewToken()
	go func() {
		<-ctx.Done()
		token.Cancel()
	}()

	logger.Info().
		Int("total", len(requests)).
		Int("concurrency", concurrency).
		Str("model", categoryFlag+"/"+subcategoryFlag).
		Msg("batchrun: starting")

	collector := batch.NewCollector()
	events := batch.NewEventReporter(2*len(requests) + 4)
	logDone := make(chan struct{})
	go func() {
		defer close(logDone)
		for ev := range events.Events() {
			logEvent(logger, ev)
		}
	}()

	executor := batch.NewExecutor(catalog.NewValidatingRunner(cat, client), logger)
	summary := executor.Run(context.Background(), requests, concurrency, batch.FanoutReporter{collector, events}, token)
	<-logDone

	fmt.Printf("total=%d succeeded=%d failed=%d cancelled=%v\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.Cancelled)

	if exportFlag != "" {
		store, err := storage.NewFileStore(cfg.ResultsPath)
		if err != nil {
			exitWithError(err)
		}
		key, err := exportReport(store, exportFlag, collector, summary)
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("report written to %s\n", store.Path(key))
	}
}

// logEvent renders one engine event as a log line; the event stream decouples
// the workers from the logging loop.
func logEvent(logger infra.Logger, ev batch.Event) {
	switch ev.Type {
	case batch.EventItemStarted:
		logger.Info().Int("index", ev.Index).Msg("item started")
	case batch.EventItemCompleted:
		if ev.Result.Succeeded() {
			logger.Info().Int("index", ev.Index).Msg("item succeeded")
			return
		}
		logger.Warn().Int("index", ev.Index).Str("error", ev.Result.Err.Error()).Msg("item failed")
	}
}

func exportReport(store *storage.FileStore, key string, collector *batch.Collector, summary domain.BatchSummary) (string, error) {
	report := struct {
		Summary domain.BatchSummary `json:"summary"`
		Items   []batch.ItemRecord  `json:"items"`
	}{Summary: summary, Items: collector.Items()}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode batch report: %w", err)
	}
	return store.Write(context.Background(), key, data)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
