package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/christopherklint97/travelpal/internal/ai"
	"github.com/christopherklint97/travelpal/internal/calendar"
	"github.com/christopherklint97/travelpal/internal/config"
	"github.com/christopherklint97/travelpal/internal/planner"
	"github.com/christopherklint97/travelpal/internal/sanitize"
	"github.com/christopherklint97/travelpal/internal/store"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "travelpal",
	Short: "Trip planner powered by AI",
	Long: "travelpal turns your travel preferences into a day-by-day itinerary, " +
		"lets you refine it in a chat and exports it to your calendar.",
	SilenceUsage: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <section.key> <value>",
	Short: "Persist one setting, e.g. 'ai.provider openai'",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/travelpal/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.ConfigPath()
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel()
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openDB(cfg *config.Config) (*store.DB, error) {
	path := cfg.Store.Path
	if path == "" {
		var err error
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func newAIProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ai.Provider, error) {
	key := cfg.APIKey()
	if key == "" {
		env := "GEMINI_API_KEY"
		if cfg.AI.Provider == "openai" {
			env = "OPENAI_API_KEY"
		}
		return nil, fmt.Errorf("%s API key not configured: set %s or run 'travelpal config set ai.%s_api_key <key>'",
			cfg.AI.Provider, env, cfg.AI.Provider)
	}

	switch cfg.AI.Provider {
	case "openai":
		return ai.NewOpenAI(key, cfg.AI.Model, logger), nil
	default:
		g, err := ai.NewGemini(ctx, key, cfg.AI.Model, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

func newSanitizer(cfg *config.Config, logger *slog.Logger) *sanitize.Sanitizer {
	opts := sanitize.DefaultOptions()
	if cfg.Planner.DefaultCurrency != "" {
		opts.DefaultCurrency = cfg.Planner.DefaultCurrency
	}
	if cfg.Planner.BookingURLTemplate != "" {
		opts.BookingURLTemplate = cfg.Planner.BookingURLTemplate
	}
	return sanitize.New(opts, logger)
}

func newPlanner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*planner.Planner, error) {
	provider, err := newAIProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	opts := planner.Options{
		Prompt: ai.PromptOptions{
			Language: cfg.AI.Language,
			Search:   cfg.AI.SearchGrounding,
		},
		MaxMessages: cfg.Planner.MaxChatMessages,
	}
	return planner.New(provider, newSanitizer(cfg, logger), opts, logger), nil
}

func calendarOptions(cfg *config.Config) (calendar.Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return calendar.Options{}, err
	}
	return calendar.Options{Location: loc, DefaultDuration: cfg.DefaultDuration()}, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	shown := *cfg
	shown.AI.GeminiAPIKey = mask(shown.AI.GeminiAPIKey)
	shown.AI.OpenAIAPIKey = mask(shown.AI.OpenAIAPIKey)
	shown.Calendar.GoogleToken = mask(shown.Calendar.GoogleToken)

	out, err := toml.Marshal(shown)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path, _ := resolveConfigPath()
	fmt.Printf("# %s\n%s", path, out)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	if err := config.SetValue(path, args[0], coerce(args[1])); err != nil {
		return err
	}
	fmt.Printf("Set %s in %s\n", args[0], path)
	return nil
}

// coerce turns a command-line value into the TOML type it most likely is.
func coerce(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return s
}

func mask(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return t.Local().Format("Jan 2")
}
