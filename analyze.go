package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uxsense/backend/analyzer"
	"github.com/uxsense/backend/report"
	"github.com/uxsense/backend/retrieval"
	"github.com/uxsense/backend/stats"
)

var (
	targetURL      string
	screenshotPath string
	outPath        string
	autoRetrieve   bool
	printReport    bool
	metricsFlags   = analyzer.DefaultMetrics()
)

// newAnalyzer builds the provider-backed analyzer from cfg
var newAnalyzer = func(ctx context.Context, recorder analyzer.Recorder) (*analyzer.Analyzer, error) {
	return analyzer.New(ctx, cfg.AnalyzerConfig(), logger, recorder)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one audit without the dashboard",
	Long: `Runs a single audit of --url and writes the exported report.

Example:
  uxsense analyze --url https://example.com --retrieve --print
  uxsense analyze --url https://example.com --screenshot home.png --out reports/`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Retrieve behavior metrics for a URL",
	Args:  cobra.NoArgs,
	RunE:  runRetrieve,
}

func init() {
	analyzeCmd.Flags().StringVar(&targetURL, "url", "", "Website URL to audit (required)")
	analyzeCmd.Flags().StringVar(&screenshotPath, "screenshot", "", "Screenshot image to attach")
	analyzeCmd.Flags().StringVar(&outPath, "out", "", "Write the JSON report to this file or directory")
	analyzeCmd.Flags().BoolVar(&autoRetrieve, "retrieve", false, "Retrieve metrics automatically before the audit")
	analyzeCmd.Flags().BoolVar(&printReport, "print", false, "Print a formatted summary")
	analyzeCmd.Flags().Float64Var(&metricsFlags.ClickThroughRate, "ctr", metricsFlags.ClickThroughRate, "Click-through rate (%)")
	analyzeCmd.Flags().Float64Var(&metricsFlags.BounceRate, "bounce-rate", metricsFlags.BounceRate, "Bounce rate (%)")
	analyzeCmd.Flags().IntVar(&metricsFlags.SessionDurationSeconds, "session-duration", metricsFlags.SessionDurationSeconds, "Average session duration (s)")
	analyzeCmd.Flags().Float64Var(&metricsFlags.ScrollDepthPercent, "scroll-depth", metricsFlags.ScrollDepthPercent, "Scroll depth (%)")
	analyzeCmd.Flags().IntVar(&metricsFlags.PageViews, "page-views", metricsFlags.PageViews, "Page views")
	analyzeCmd.Flags().IntVar(&metricsFlags.CrawlDepth, "crawl-depth", metricsFlags.CrawlDepth, "Crawl scope: 0 main entry, 1 core funnels, 2 full map")
	analyzeCmd.Flags().StringVar(&metricsFlags.AnalyticsPropertyID, "property", "", "GA4 property id")
	analyzeCmd.MarkFlagRequired("url")

	retrieveCmd.Flags().StringVar(&targetURL, "url", "", "Website URL (required)")
	retrieveCmd.MarkFlagRequired("url")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := metricsFlags.Validate(); err != nil {
		return err
	}

	tracker, err := stats.NewTracker(cfg.Data.Dir, logger)
	if err != nil {
		return err
	}
	defer tracker.Shutdown()

	metrics := metricsFlags
	if autoRetrieve {
		retriever := retrieval.NewSimulated(cfg.Retrieval.Delay, nil, logger)
		metrics, err = retriever.Retrieve(ctx, targetURL, metrics)
		tracker.RecordRetrieval(err != nil)
		if err != nil {
			return errors.New(analyzer.UserMessage(err))
		}
	}

	screenshot := ""
	if screenshotPath != "" {
		data, err := os.ReadFile(screenshotPath)
		if err != nil {
			return fmt.Errorf("failed to read screenshot: %w", err)
		}
		screenshot = analyzer.EncodeDataURI(data)
	}

	req, err := analyzer.BuildRequest(targetURL, screenshot, metrics)
	if err != nil {
		return err
	}

	if !cfg.HasProvider() {
		return errors.New("no provider API key configured: set GEMINI_API_KEY")
	}
	audit, err := newAnalyzer(ctx, tracker)
	if err != nil {
		return err
	}

	result, err := audit.Analyze(ctx, req)
	if err != nil {
		logger.Debug("analysis error detail", zap.Error(err))
		return errors.New(analyzer.UserMessage(err))
	}

	doc := report.Document{Metrics: metrics, Analysis: result}
	data, err := report.Marshal(doc)
	if err != nil {
		return err
	}

	if outPath != "" {
		path, err := writeReport(outPath, req.URL, data)
		if err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", path))
	}

	out := cmd.OutOrStdout()
	switch {
	case printReport:
		rendered, err := renderMarkdown(report.Markdown(req.URL, doc))
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
	case outPath == "":
		fmt.Fprintln(out, string(data))
	default:
		fmt.Fprintf(out, "UX score %s for %s\n", report.FormatScore(result.OverallScore), req.URL)
	}
	return nil
}

// writeReport writes data to path, or to the export filename inside path
// when path is a directory.
func writeReport(path, target string, data []byte) (string, error) {
	if info, err := os.Stat(path); (err == nil && info.IsDir()) || strings.HasSuffix(path, string(os.PathSeparator)) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("failed to create report directory: %w", err)
		}
		path = filepath.Join(path, report.Filename(target))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func renderMarkdown(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	return renderer.Render(md)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	tracker, err := stats.NewTracker(cfg.Data.Dir, logger)
	if err != nil {
		return err
	}
	defer tracker.Shutdown()

	retriever := retrieval.NewSimulated(cfg.Retrieval.Delay, nil, logger)
	metrics, err := retriever.Retrieve(ctx, targetURL, analyzer.DefaultMetrics())
	tracker.RecordRetrieval(err != nil)
	if err != nil {
		return errors.New(analyzer.UserMessage(err))
	}

	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
