package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"notice-bot/api/internal/app"
	"notice-bot/api/internal/classify"
	"notice-bot/api/internal/config"
	"notice-bot/api/internal/logger"
	"notice-bot/api/internal/notice"
)

type appKey struct{}

// needsStores marks commands that open Postgres and Redis. The others run
// without touching either.
const needsStores = "stores"

var storesAnnotation = map[string]string{needsStores: "true"}

type env struct {
	cfg  *config.Config
	log  *zap.Logger
	deps *app.Deps
	svc  *notice.Service
}

func envFrom(cmd *cobra.Command) (*env, error) {
	e, ok := cmd.Context().Value(appKey{}).(*env)
	if !ok {
		return nil, errors.New("app is not initialized")
	}
	return e, nil
}

func newRootCmd() *cobra.Command {
	var jsonOut bool
	root := &cobra.Command{
		Use:          "noticectl",
		Short:        "Recognize and classify Korean notices",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := logger.New(cfg.LogLevel, "console")
			if err != nil {
				return err
			}
			deps := &app.Deps{}
			if cmd.Annotations[needsStores] != "" {
				if deps, err = app.Open(cmd.Context(), cfg, log); err != nil {
					return err
				}
			}
			e := &env{cfg: cfg, log: log, deps: deps, svc: app.Service(cfg, deps, log)}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, e))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e, err := envFrom(cmd); err == nil {
				e.deps.Close()
				_ = e.log.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of text")

	root.AddCommand(
		newClassifyCmd(&jsonOut),
		newOCRCmd(&jsonOut),
		newStatsCmd(&jsonOut),
		newPurgeCmd(),
	)
	return root
}

func newClassifyCmd(jsonOut *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify recognized text (reads stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(b)
			}
			return printResult(cmd.OutOrStdout(), e.svc.ClassifyText(text, "cli"), *jsonOut)
		},
	}
}

type ocrOutput struct {
	Text           string           `json:"text"`
	Engine         string           `json:"engine"`
	HasFullText    bool             `json:"hasFullText"`
	Cached         bool             `json:"cached"`
	Classification *classify.Result `json:"classification,omitempty"`
}

func newOCRCmd(jsonOut *bool) *cobra.Command {
	var (
		engine     string
		doClassify bool
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:         "ocr <image-file>",
		Annotations: storesAnnotation,
		Short:       "Recognize the text of an image file",
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			img, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			req := notice.Request{Image: img, Engine: engine, Source: "cli"}
			var out ocrOutput
			if doClassify {
				a, err := e.svc.Analyze(ctx, req)
				if err != nil {
					return err
				}
				out = ocrOutput{Text: a.Text, Engine: a.Engine, HasFullText: a.HasFullText, Cached: a.Cached, Classification: &a.Classification}
			} else {
				rec, err := e.svc.Recognize(ctx, req)
				if err != nil {
					return err
				}
				out = ocrOutput{Text: rec.Text, Engine: rec.Engine, HasFullText: rec.HasFullText, Cached: rec.Cached}
			}

			w := cmd.OutOrStdout()
			if *jsonOut {
				return writeJSON(w, out)
			}
			if out.Text == "" {
				fmt.Fprintln(w, "(no text detected)")
			} else {
				fmt.Fprintln(w, out.Text)
			}
			if out.Classification != nil {
				fmt.Fprintln(w)
				return printResult(w, *out.Classification, false)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "OCR engine (vision, gemini, yandex); default from OCR_ENGINE")
	cmd.Flags().BoolVar(&doClassify, "classify", false, "also classify the recognized text")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "request timeout")
	return cmd
}

func newStatsCmd(jsonOut *bool) *cobra.Command {
	return &cobra.Command{
		Use:         "stats",
		Annotations: storesAnnotation,
		Short:       "Show stored notice counts per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			stats, err := e.svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if *jsonOut {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			keys := make([]string, 0, len(stats))
			for k := range stats {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tLABEL\tCOUNT")
			for _, k := range keys {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", k, classify.Category(k).Label(), stats[k])
			}
			return tw.Flush()
		},
	}
}

func newPurgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:         "purge",
		Annotations: storesAnnotation,
		Short:       "Delete stored notices older than a duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			if e.deps.Repo == nil {
				return notice.ErrNoHistory
			}
			if olderThan == 0 {
				olderThan = e.cfg.HistoryMaxAge
			}
			n, err := e.deps.Repo.PurgeOlderThan(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d notices\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age limit; default HISTORY_MAX_AGE")
	return cmd
}

func printResult(w io.Writer, res classify.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "%s (%s)\n", res.Category.Label(), res.Category)
	fmt.Fprintf(w, "  정의:   %s\n", res.Definition)
	fmt.Fprintf(w, "  중요도: %s\n", res.Importance)
	fmt.Fprintf(w, "  조치:   %s\n", res.Action)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
