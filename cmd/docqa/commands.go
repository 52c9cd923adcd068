package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/logging"
	"docqa/internal/service"
	"docqa/internal/tui"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "docqa [file.txt ...]",
		Short: "Ask questions about text documents",
		Long: "docqa splits documents into overlapping passages, embeds them and " +
			"answers questions from the nearest passages. Without a subcommand it " +
			"ingests the given files and opens an interactive search view.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts, args)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to YAML config file (optional; uses ./config.yaml or ~/.config/docqa/config.yaml if not provided)")
	cmd.AddCommand(newSearchCmd(opts))
	return cmd
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		query string
		k     int
	)
	cmd := &cobra.Command{
		Use:   "search --query QUESTION file.txt [file.txt ...]",
		Short: "Ingest files and print the passages nearest to a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("--query is required")
			}
			return runSearch(cmd.Context(), cmd.OutOrStdout(), root, args, query, k)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "question to answer")
	cmd.Flags().IntVar(&k, "k", 0, "number of passages to return (default from config)")
	return cmd
}

func loadConfig(opts *rootOptions) (*config.AppConfig, error) {
	if opts.configPath == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(opts.configPath)
}

func runSearch(ctx context.Context, out io.Writer, opts *rootOptions, paths []string, query string, k int) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	svc, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	if err := ingestFiles(ctx, svc, paths); err != nil {
		return err
	}
	if k <= 0 {
		k = cfg.Retrieval.TopK
	}
	answers, err := svc.Ask(ctx, query, k)
	if err != nil {
		return err
	}
	printAnswers(out, answers)
	return nil
}

func runTUI(ctx context.Context, opts *rootOptions, paths []string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// The terminal belongs to the TUI; only log when a file is configured.
	logger, closer, err := logging.New(cfg.Log, io.Discard)
	if err != nil {
		return err
	}
	defer closer.Close()

	svc, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	if err := ingestFiles(ctx, svc, paths); err != nil {
		return err
	}
	// Leaving the TUI cancels any question still in flight.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m := tui.New(ctx, svc, svc.Summary(), cfg.Retrieval.TopK)
	_, err = tea.NewProgram(m, tea.WithContext(ctx)).Run()
	return err
}

func ingestFiles(ctx context.Context, svc *service.RAG, paths []string) error {
	docs, err := loadDocuments(paths)
	if err != nil {
		return err
	}
	report, err := svc.Ingest(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(os.Stderr, "warning: skipped %s: %v\n", s.Name, s.Reason)
	}
	if !svc.IsReady() {
		return fmt.Errorf("no passages indexed from %d documents", report.Documents)
	}
	return nil
}

func printAnswers(w io.Writer, answers []domain.Answer) {
	if len(answers) == 0 {
		fmt.Fprintln(w, "No matching passages.")
		return
	}
	for i, a := range answers {
		fmt.Fprintf(w, "#%d  %s  chunk %d  distance=%.4f  similarity=%.1f%%\n",
			i+1, a.Passage.DocumentName, a.Passage.Position, a.Distance, a.Similarity*100)
		if a.Text != "" {
			fmt.Fprintf(w, "Answer: %s\n", a.Text)
		}
		fmt.Fprintf(w, "Quote: %s\n\n", strings.TrimSpace(a.Passage.Text))
	}
}
