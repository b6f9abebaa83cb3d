package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/gradepipe/gradepipe/internal/grader"
	"github.com/gradepipe/gradepipe/internal/handler"
	appI18n "github.com/gradepipe/gradepipe/internal/i18n"
	"github.com/gradepipe/gradepipe/internal/llm"
	"github.com/gradepipe/gradepipe/internal/llm/prompts"
	"github.com/gradepipe/gradepipe/internal/model"
	"github.com/gradepipe/gradepipe/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gradepipe",
		Short: "Answer evaluation pipeline powered by LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `gradepipe --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the grading HTTP server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "gradepipe.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Paths to questions JSON files (repeatable)")
	f.String("rule-llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL for structured scoring")
	f.String("rule-llm-key", "ollama", "API key for the structured scoring backend")
	f.String("rule-llm-model", "llama3.2", "Model name for structured scoring")
	f.String("reasoning-llm-url", "", "OpenAI-compatible API base URL for reasoning (defaults to rule-llm-url)")
	f.String("reasoning-llm-key", "", "API key for the reasoning backend (defaults to rule-llm-key)")
	f.String("reasoning-llm-model", "", "Model name for reasoning (defaults to rule-llm-model)")
	f.StringP("lang", "l", "en", "Feedback language (en, ru)")
	f.String("prompt-variant", string(prompts.VariantStandard), "Grading prompt variant (strict, standard, lenient)")
	f.String("admin-password", "", "Initial admin password (or set GRADEPIPE_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export graded attempts as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "gradepipe.db", "SQLite database path")
	f.String("exam-id", "", "Exam identifier for output (required)")
	f.String("subject", "", "Subject name for output (required)")
	f.String("date", "", "Exam date in YYYY-MM-DD format (required)")
	f.String("prompt-variant", "standard", "Prompt variant included in export metadata")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("exam-id")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("date")

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

	v.SetEnvPrefix("GRADEPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gradepipe")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gradepipe")
	v.AddConfigPath("/etc/gradepipe")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	// Load questions from all specified files.
	if err := loadQuestions(db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Create scoring backends. The reasoning backend falls back to the
	// rule-backed one when not configured separately.
	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(promptVariant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
		promptVariant = string(prompts.VariantStandard)
	}
	ruleCfg := llm.Config{
		BaseURL: v.GetString("rule-llm-url"),
		APIKey:  v.GetString("rule-llm-key"),
		Model:   v.GetString("rule-llm-model"),
	}
	reasoningCfg := llm.Config{
		BaseURL: v.GetString("reasoning-llm-url"),
		APIKey:  v.GetString("reasoning-llm-key"),
		Model:   v.GetString("reasoning-llm-model"),
	}
	if reasoningCfg.BaseURL == "" {
		reasoningCfg.BaseURL = ruleCfg.BaseURL
	}
	if reasoningCfg.APIKey == "" {
		reasoningCfg.APIKey = ruleCfg.APIKey
	}
	if reasoningCfg.Model == "" {
		reasoningCfg.Model = ruleCfg.Model
	}

	rules := llm.NewRuleBacked(ruleCfg, prompts.Variant(promptVariant))
	reasoning := llm.NewReasoning(reasoningCfg)
	if err := rules.Ping(context.Background()); err != nil {
		return fmt.Errorf("rule-backed backend: %w", err)
	}
	if err := reasoning.Ping(context.Background()); err != nil {
		return fmt.Errorf("reasoning backend: %w", err)
	}
	slog.Info("LLM endpoints OK",
		"rule_url", ruleCfg.BaseURL, "rule_model", ruleCfg.Model,
		"reasoning_url", reasoningCfg.BaseURL, "reasoning_model", reasoningCfg.Model)

	g := grader.New(rules, rules, reasoning)

	h := handler.New(db, g)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"rule_model", ruleCfg.Model,
		"rule_llm_url", ruleCfg.BaseURL,
		"reasoning_model", reasoningCfg.Model,
		"lang", lang,
		"prompt_variant", promptVariant,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	attempts, err := db.ExportAllAttempts()
	if err != nil {
		return fmt.Errorf("export attempts: %w", err)
	}

	export := model.ResultsExport{
		ExamID:        v.GetString("exam-id"),
		Subject:       v.GetString("subject"),
		Date:          v.GetString("date"),
		PromptVariant: v.GetString("prompt-variant"),
		Attempts:      attempts,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func loadQuestions(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetMetadata("import:" + path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("questions file changed since last import, skipping to avoid breaking existing attempts",
				"path", path)
			continue
		}

		var imports []model.QuestionImport
		if err := json.Unmarshal(data, &imports); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, qi := range imports {
			_, err := db.InsertQuestion(model.Question{
				Text:               qi.Text,
				Type:               qi.Type,
				CanonicalAnswer:    qi.CanonicalAnswer,
				MaxPoints:          qi.MaxPoints,
				Subject:            qi.Subject,
				MandatoryKeywords:  qi.MandatoryKeywords,
				SupportingKeywords: qi.SupportingKeywords,
				ExpectedStructure:  qi.ExpectedStructure,
				MinWords:           qi.MinWords,
				OptimalWords:       qi.OptimalWords,
				MaxWords:           qi.MaxWords,
				MinPointsRequired:  qi.MinPointsRequired,
			})
			if err != nil {
				return fmt.Errorf("insert question from %s: %w", path, err)
			}
		}

		if err := db.SetMetadata("import:"+path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported questions", "path", path, "count", len(imports))
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or GRADEPIPE_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
