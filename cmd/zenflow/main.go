package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/FranckBG1/agentic-ia-agent/internal/api"
	"github.com/FranckBG1/agentic-ia-agent/internal/calendar"
	"github.com/FranckBG1/agentic-ia-agent/internal/genai"
	"github.com/FranckBG1/agentic-ia-agent/internal/lockfile"
	"github.com/FranckBG1/agentic-ia-agent/internal/store"
	"github.com/FranckBG1/agentic-ia-agent/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Zenflow state data
	DefaultStateDir = "/var/lib/zenflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "zenflow.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// A file-backed session store must not be shared between instances.
	if *flags.dbDSN != "" && store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.AcquireLock(*flags.stateDir)
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	calOpts := buildCalendarOptions(flags)
	apiOpts := buildAPIOptions(flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the service
	slog.Info("Bootstrapping Zenflow with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "calendar", len(calOpts), "api", len(apiOpts))
	if err := api.Run(ctx, storeOpts, genaiOpts, calOpts, apiOpts); err != nil {
		slog.Error("Zenflow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Zenflow exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string
	StateDir       string
	OpenAIKey      string
	Model          string
	APIAddr        string
	AgendaEndpoint string
	AgendaInsecure bool
	SessionTTL     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	openaiKey      *string
	model          *string
	apiAddr        *string
	agendaEndpoint *string
	sessionTTL     *string
	agendaInsecure bool
}

// initializeLogger sets up structured logging, honoring $LOG_LEVEL.
func initializeLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("ZENFLOW_STATE_DIR"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		Model:          os.Getenv("GENAI_MODEL"),
		APIAddr:        os.Getenv("API_ADDR"),
		AgendaEndpoint: os.Getenv("AGENDA_ENDPOINT"),
		AgendaInsecure: util.ParseBoolEnv("AGENDA_INSECURE_TLS", false),
		SessionTTL:     os.Getenv("SESSION_TTL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ZENFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"ZENFLOW_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GENAI_MODEL", config.Model,
		"API_ADDR", config.APIAddr,
		"AGENDA_ENDPOINT_SET", config.AgendaEndpoint != "",
		"AGENDA_INSECURE_TLS", config.AgendaInsecure,
		"SESSION_TTL", config.SessionTTL)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for Zenflow data (overrides $ZENFLOW_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN for the session store; empty keeps sessions in memory (overrides $DATABASE_URL)"),
		openaiKey:      flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		model:          flag.String("genai-model", config.Model, "chat completion model (overrides $GENAI_MODEL)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		agendaEndpoint: flag.String("agenda-endpoint", config.AgendaEndpoint, "calendar collaborator URL (overrides $AGENDA_ENDPOINT)"),
		sessionTTL:     flag.String("session-ttl", config.SessionTTL, "idle session lifetime, e.g. 1h (overrides $SESSION_TTL)"),
	}
	flags.agendaInsecure = config.AgendaInsecure

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"model", *flags.model,
		"apiAddr", *flags.apiAddr,
		"agendaEndpointSet", *flags.agendaEndpoint != "",
		"sessionTTL", *flags.sessionTTL)

	return flags
}

// buildStoreOptions constructs session store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		dsn := *flags.dbDSN
		if store.DetectDSNType(dsn) == "sqlite" && !filepath.IsAbs(dsn) && !strings.Contains(dsn, string(os.PathSeparator)) {
			dsn = filepath.Join(*flags.stateDir, dsn)
		}
		slog.Debug("Configuring database session store", "dsn_type", store.DetectDSNType(dsn))
		storeOpts = append(storeOpts, store.WithDSN(dsn))
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	if *flags.sessionTTL != "" {
		ttl, err := time.ParseDuration(*flags.sessionTTL)
		if err != nil {
			slog.Warn("Invalid session TTL, using default", "value", *flags.sessionTTL, "error", err)
		} else {
			storeOpts = append(storeOpts, store.WithSessionTTL(ttl))
		}
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	return genaiOpts
}

// buildCalendarOptions constructs calendar client configuration options
func buildCalendarOptions(flags Flags) []calendar.Option {
	var calOpts []calendar.Option
	if *flags.agendaEndpoint != "" {
		calOpts = append(calOpts, calendar.WithEndpoint(*flags.agendaEndpoint))
	}
	if flags.agendaInsecure {
		calOpts = append(calOpts, calendar.WithInsecureTLS(true))
	}
	return calOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
