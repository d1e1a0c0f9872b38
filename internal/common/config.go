package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Analysis    AnalysisConfig  `toml:"analysis"`
	Retention   RetentionConfig `toml:"retention"`
	Export      ExportConfig    `toml:"export"`
	Docs        DocsConfig      `toml:"docs"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path, used when in_memory is false
	InMemory       bool   `toml:"in_memory"`        // Keep runs in memory only, nothing survives a restart
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete on-disk database on startup for clean runs
}

type LoggingConfig struct {
	Level         string   `toml:"level" validate:"oneof=debug info warn error"`
	Format        string   `toml:"format"`          // "json" or "text"
	Output        []string `toml:"output"`          // "stdout", "file"
	TimeFormat    string   `toml:"time_format"`     // Time format for logs (default: "15:04:05.000")
	ClientDebug   bool     `toml:"client_debug"`    // Enable client-side debug logging
	MinEventLevel string   `toml:"min_event_level"` // Minimum log level to publish as events to UI
}

// AnalysisConfig bounds what a single analysis request may submit and
// tunes the aggregation output.
type AnalysisConfig struct {
	MaxUploadSizeMB  int      `toml:"max_upload_size_mb" validate:"min=1"`  // Per-file cap for individual log uploads
	MaxArchiveSizeMB int      `toml:"max_archive_size_mb" validate:"min=1"` // Cap for an uploaded ZIP archive
	MaxUploadFiles   int      `toml:"max_upload_files" validate:"min=1"`    // Max files in one upload batch
	ScanRoots        []string `toml:"scan_roots"`                           // Allowed roots for directory scans (empty = any path)
	ProviderSentinel string   `toml:"provider_sentinel"`                    // Provider value for logs without a resolvable provider
	TopFMCount       int      `toml:"top_fm_count" validate:"min=1"`        // How many FMs the summary highlights
}

// RetentionConfig controls the background cleanup of finished runs.
type RetentionConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
	MaxAge   string `toml:"max_age"`  // e.g. "24h" - completed runs older than this are removed
	MaxRuns  int    `toml:"max_runs"` // Keep at most this many runs, oldest removed first
}

// ExportConfig names the downloadable deliverables.
type ExportConfig struct {
	WorkbookName string `toml:"workbook_name"` // Attachment filename for the Excel workbook
	BundleName   string `toml:"bundle_name"`   // Attachment filename for the full export bundle
}

// DocsConfig contains configuration for documentation reference files
type DocsConfig struct {
	Dir        string   `toml:"dir"`        // Directory containing documentation files (default: "./docs")
	Extensions []string `toml:"extensions"` // File extensions to scan (default: [".md"])
}

// WebSocketConfig contains configuration for WebSocket log streaming
type WebSocketConfig struct {
	MinLevel        string   `toml:"min_level"`        // Minimum log level to broadcast ("debug", "info", "warn", "error")
	ExcludePatterns []string `toml:"exclude_patterns"` // Log message patterns to exclude from broadcasting
	// Throttle intervals for high-frequency events. Map of event type to duration string.
	// Example: {"analysis_progress": "500ms"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in indago.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:     "./data",
				InMemory: true, // Analysis runs are transient by default
			},
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "text",
			Output:        []string{"stdout", "file"},
			MinEventLevel: "info",
		},
		Analysis: AnalysisConfig{
			MaxUploadSizeMB:  20,
			MaxArchiveSizeMB: 200,
			MaxUploadFiles:   200,
			ScanRoots:        []string{},
			ProviderSentinel: "N/A",
			TopFMCount:       5,
		},
		Retention: RetentionConfig{
			Enabled:  true,
			Schedule: "0 */30 * * * *", // Every 30 minutes
			MaxAge:   "24h",
			MaxRuns:  50,
		},
		Export: ExportConfig{
			WorkbookName: "analysis.xlsx",
			BundleName:   "bw_dependency_analysis.zip",
		},
		Docs: DocsConfig{
			Dir:        "./docs",
			Extensions: []string{".md"},
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
				"HTTP response",
			},
			ThrottleIntervals: map[string]string{
				"analysis_progress": "500ms",
			},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// Priority system: CLI flags > Environment variables > Config file > Defaults
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the configuration against its constraint tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: INDAGO_ENV, fallback: GO_ENV)
	if env := os.Getenv("INDAGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("INDAGO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("INDAGO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("INDAGO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if inMemory := os.Getenv("INDAGO_BADGER_IN_MEMORY"); inMemory != "" {
		if im, err := strconv.ParseBool(inMemory); err == nil {
			config.Storage.Badger.InMemory = im
		}
	}
	if reset := os.Getenv("INDAGO_BADGER_RESET_ON_STARTUP"); reset != "" {
		if r, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = r
		}
	}

	// Logging configuration
	if level := os.Getenv("INDAGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("INDAGO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("INDAGO_LOG_OUTPUT"); output != "" {
		// Split comma-separated output types
		outputs := []string{}
		for _, o := range splitString(output, ",") {
			trimmed := trimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if minEventLevel := os.Getenv("INDAGO_LOG_MIN_EVENT_LEVEL"); minEventLevel != "" {
		config.Logging.MinEventLevel = minEventLevel
	}

	// Analysis configuration
	if maxUpload := os.Getenv("INDAGO_ANALYSIS_MAX_UPLOAD_SIZE_MB"); maxUpload != "" {
		if mu, err := strconv.Atoi(maxUpload); err == nil {
			config.Analysis.MaxUploadSizeMB = mu
		}
	}
	if maxArchive := os.Getenv("INDAGO_ANALYSIS_MAX_ARCHIVE_SIZE_MB"); maxArchive != "" {
		if ma, err := strconv.Atoi(maxArchive); err == nil {
			config.Analysis.MaxArchiveSizeMB = ma
		}
	}
	if maxFiles := os.Getenv("INDAGO_ANALYSIS_MAX_UPLOAD_FILES"); maxFiles != "" {
		if mf, err := strconv.Atoi(maxFiles); err == nil {
			config.Analysis.MaxUploadFiles = mf
		}
	}
	if scanRoots := os.Getenv("INDAGO_ANALYSIS_SCAN_ROOTS"); scanRoots != "" {
		// Split comma-separated roots
		roots := []string{}
		for _, r := range splitString(scanRoots, ",") {
			trimmed := trimSpace(r)
			if trimmed != "" {
				roots = append(roots, trimmed)
			}
		}
		if len(roots) > 0 {
			config.Analysis.ScanRoots = roots
		}
	}
	if sentinel := os.Getenv("INDAGO_ANALYSIS_PROVIDER_SENTINEL"); sentinel != "" {
		config.Analysis.ProviderSentinel = sentinel
	}
	if topCount := os.Getenv("INDAGO_ANALYSIS_TOP_FM_COUNT"); topCount != "" {
		if tc, err := strconv.Atoi(topCount); err == nil && tc > 0 {
			config.Analysis.TopFMCount = tc
		}
	}

	// Retention configuration
	if enabled := os.Getenv("INDAGO_RETENTION_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Retention.Enabled = e
		}
	}
	if schedule := os.Getenv("INDAGO_RETENTION_SCHEDULE"); schedule != "" {
		config.Retention.Schedule = schedule
	}
	if maxAge := os.Getenv("INDAGO_RETENTION_MAX_AGE"); maxAge != "" {
		if _, err := time.ParseDuration(maxAge); err == nil {
			config.Retention.MaxAge = maxAge
		}
	}
	if maxRuns := os.Getenv("INDAGO_RETENTION_MAX_RUNS"); maxRuns != "" {
		if mr, err := strconv.Atoi(maxRuns); err == nil {
			config.Retention.MaxRuns = mr
		}
	}

	// Export configuration
	if workbookName := os.Getenv("INDAGO_EXPORT_WORKBOOK_NAME"); workbookName != "" {
		config.Export.WorkbookName = workbookName
	}
	if bundleName := os.Getenv("INDAGO_EXPORT_BUNDLE_NAME"); bundleName != "" {
		config.Export.BundleName = bundleName
	}

	// Docs configuration
	if docsDir := os.Getenv("INDAGO_DOCS_DIR"); docsDir != "" {
		config.Docs.Dir = docsDir
	}

	// WebSocket configuration
	if minLevel := os.Getenv("INDAGO_WEBSOCKET_MIN_LEVEL"); minLevel != "" {
		config.WebSocket.MinLevel = minLevel
	}
	if excludePatterns := os.Getenv("INDAGO_WEBSOCKET_EXCLUDE_PATTERNS"); excludePatterns != "" {
		// Split comma-separated patterns
		patterns := []string{}
		for _, p := range splitString(excludePatterns, ",") {
			trimmed := trimSpace(p)
			if trimmed != "" {
				patterns = append(patterns, trimmed)
			}
		}
		if len(patterns) > 0 {
			config.WebSocket.ExcludePatterns = patterns
		}
	}
	if progressThrottle := os.Getenv("INDAGO_WEBSOCKET_THROTTLE_ANALYSIS_PROGRESS"); progressThrottle != "" {
		// Parse duration string (e.g., "2s", "1500ms")
		if _, err := time.ParseDuration(progressThrottle); err == nil {
			if config.WebSocket.ThrottleIntervals == nil {
				config.WebSocket.ThrottleIntervals = make(map[string]string)
			}
			config.WebSocket.ThrottleIntervals["analysis_progress"] = progressThrottle
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Helper functions for string manipulation
func splitString(s, sep string) []string {
	result := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if i+len(sep) <= len(s) && s[i:i+len(sep)] == sep {
			result = append(result, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	result = append(result, s[start:])
	return result
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

// ValidateRetentionSchedule validates a cron schedule expression and ensures minimum 5-minute interval
func ValidateRetentionSchedule(schedule string) error {
	// Parse with optional seconds field, matching the scheduler's parser
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected at least 5 fields")
	}

	// With 6 fields the first is seconds; the minute field follows it
	minuteField := parts[0]
	if len(parts) == 6 {
		minuteField = parts[1]
	}

	// Check for patterns that violate 5-minute minimum
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}

	// Check for */n patterns where n < 5
	if strings.HasPrefix(minuteField, "*/") {
		intervalStr := strings.TrimPrefix(minuteField, "*/")
		interval, err := strconv.Atoi(intervalStr)
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// MaxAgeDuration parses the retention max age, falling back to 24h.
func (c *Config) MaxAgeDuration() time.Duration {
	d, err := time.ParseDuration(c.Retention.MaxAge)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ScanRootAllowed reports whether a directory scan may target the given path.
// An empty allowlist permits any path.
func (c *Config) ScanRootAllowed(path string) bool {
	if len(c.Analysis.ScanRoots) == 0 {
		return true
	}
	for _, root := range c.Analysis.ScanRoots {
		if strings.HasPrefix(path, root) {
			return true
		}
	}
	return false
}

// DeepCloneConfig creates a deep copy of the Config struct
// This prevents mutations of the original config by consumers.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	// Clone the config struct (shallow copy first)
	clone := *c

	// Deep clone slice fields to prevent shared memory
	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	if len(c.Analysis.ScanRoots) > 0 {
		clone.Analysis.ScanRoots = make([]string, len(c.Analysis.ScanRoots))
		copy(clone.Analysis.ScanRoots, c.Analysis.ScanRoots)
	}

	if len(c.Docs.Extensions) > 0 {
		clone.Docs.Extensions = make([]string, len(c.Docs.Extensions))
		copy(clone.Docs.Extensions, c.Docs.Extensions)
	}

	if len(c.WebSocket.ExcludePatterns) > 0 {
		clone.WebSocket.ExcludePatterns = make([]string, len(c.WebSocket.ExcludePatterns))
		copy(clone.WebSocket.ExcludePatterns, c.WebSocket.ExcludePatterns)
	}

	if len(c.WebSocket.ThrottleIntervals) > 0 {
		clone.WebSocket.ThrottleIntervals = make(map[string]string, len(c.WebSocket.ThrottleIntervals))
		for k, v := range c.WebSocket.ThrottleIntervals {
			clone.WebSocket.ThrottleIntervals[k] = v
		}
	}

	return &clone
}
