package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/scoresheet/internal/advisor"
	"github.com/pavelanni/scoresheet/internal/analysis"
	"github.com/pavelanni/scoresheet/internal/answerkey"
	"github.com/pavelanni/scoresheet/internal/handler"
	appI18n "github.com/pavelanni/scoresheet/internal/i18n"
	"github.com/pavelanni/scoresheet/internal/model"
	"github.com/pavelanni/scoresheet/internal/store"
	"github.com/pavelanni/scoresheet/internal/workbook"
)

//go:generate templ generate -path ../../internal/handler/views

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scoresheet",
		Short: "Descriptor performance analysis for student answer workbooks",
	}

	serve := serveCmd()
	root.AddCommand(serve, reportCmd(), keyCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `scoresheet --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("key", "k", "", "Answer key file (TOML, YAML or JSON); built-in key when empty")
	f.StringP("lang", "l", appI18n.DefaultLang, "Language (pt, en)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP upload and report server",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.Int("max-reports", 50, "Number of analyzed reports kept in memory (0 = unlimited)")
	f.Int64("max-upload", handler.DefaultMaxUpload, "Maximum upload size in bytes")
	f.Float64("threshold", 60, "Percentage below which a descriptor needs attention")
	f.String("llm-url", "", "OpenAI-compatible API base URL; recommendations are disabled when empty")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <workbook.xlsx>",
		Short: "Analyze a workbook and print the report",
		Args:  cobra.ExactArgs(1),
		RunE:  runReport,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("format", "f", "text", "Output format (text, json, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.StringP("sheet", "s", "", "Show a single sheet in detail")
	f.Bool("raw", false, "Include the sheet's student rows (requires --sheet)")
	f.Float64("threshold", 60, "Percentage below which a descriptor needs attention")
	return cmd
}

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Validate and print the effective answer key as TOML",
		RunE:  runKey,
	}
	addCommonFlags(cmd)
	cmd.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SCORESHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("scoresheet")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/scoresheet")
	v.AddConfigPath("/etc/scoresheet")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// loadKey reads and validates the answer key named by the "key" setting.
func loadKey(v *viper.Viper) (model.ExamKey, error) {
	path := v.GetString("key")
	key, err := answerkey.Load(path)
	if err != nil {
		return key, fmt.Errorf("load answer key: %w", err)
	}
	if err := answerkey.Validate(key); err != nil {
		return key, fmt.Errorf("invalid answer key %s: %w", path, err)
	}
	if path == "" {
		path = "built-in"
	}
	for _, gap := range answerkey.Coverage(key) {
		slog.Warn("answer key coverage", "source", path, "problem", gap)
	}
	slog.Info("answer key loaded", "source", path,
		"questions", len(key.Answers),
		"descriptors", answerkey.DescriptorCount(key),
		"catalog", len(key.Catalog))
	return key, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	key, err := loadKey(v)
	if err != nil {
		return err
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := store.New()
	if err != nil {
		return fmt.Errorf("open report cache: %w", err)
	}
	defer db.Close()

	var adv *advisor.Client
	if llmURL := v.GetString("llm-url"); llmURL != "" {
		adv, err = advisor.New(llmURL, v.GetString("llm-key"), v.GetString("llm-model"))
		if err != nil {
			return fmt.Errorf("create advisor: %w", err)
		}
		slog.Info("recommendations enabled", "url", llmURL, "model", v.GetString("llm-model"))
	}

	cfg := model.ServerConfig{
		Lang:       lang,
		MaxReports: v.GetInt("max-reports"),
		Threshold:  v.GetFloat64("threshold"),
		MaxUpload:  v.GetInt64("max-upload"),
	}
	h, err := handler.New(db, adv, key, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"max_reports", cfg.MaxReports,
		"threshold", cfg.Threshold,
		"max_upload", cfg.MaxUpload,
	)
	return http.ListenAndServe(addr, r)
}

func runReport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	key, err := loadKey(v)
	if err != nil {
		return err
	}
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(lang))

	format := strings.ToLower(v.GetString("format"))
	sheet := v.GetString("sheet")
	raw := v.GetBool("raw")
	if raw && sheet == "" {
		return errors.New("--raw requires --sheet")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	res, err := analysis.Analyze(ctx, f, filepath.Base(args[0]), key)
	if errors.Is(err, analysis.ErrNoRecords) {
		for _, w := range res.Report.Warnings {
			slog.Warn(w.Message, "kind", w.Kind, "sheet", w.Sheet)
		}
		return err
	}
	if err != nil {
		return err
	}
	if sheet != "" && !res.Report.HasSheet(sheet) {
		return fmt.Errorf("sheet %q has no records in %s", sheet, args[0])
	}

	out, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	switch format {
	case "text":
		var rawSheet *model.RawSheet
		if raw {
			if s, ok := res.Sheet(sheet); ok {
				rawSheet = &s
			}
		}
		err = writeText(ctx, out, res.Report, sheet, rawSheet, v.GetFloat64("threshold"))
	case "json":
		err = writeJSON(out, res, sheet, raw)
	case "xlsx":
		err = workbook.WriteReport(out, res.Report)
	default:
		return fmt.Errorf("unknown format %q (want text, json or xlsx)", format)
	}
	if err != nil {
		return fmt.Errorf("write %s report: %w", format, err)
	}
	return nil
}

func runKey(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	key, err := loadKey(v)
	if err != nil {
		return err
	}
	data, err := answerkey.EncodeTOML(key)
	if err != nil {
		return fmt.Errorf("encode answer key: %w", err)
	}

	out, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
