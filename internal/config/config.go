package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix for every environment variable read by Load.
const EnvPrefix = "FBC"

// ConfigFileEnv names an explicit config file, bypassing the search list.
const ConfigFileEnv = "FBC_CONFIG_FILE"

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" envconfig:"SERVER"`
	Security    SecurityConfig    `yaml:"security" envconfig:"SECURITY"`
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
	Paths       PathsConfig       `yaml:"paths" envconfig:"PATHS"`
	Fingerprint FingerprintConfig `yaml:"fingerprint" envconfig:"FINGERPRINT"`
	License     LicenseConfig     `yaml:"license" envconfig:"LICENSE"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST" validate:"required"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	PortFallbacks   int           `yaml:"port_fallbacks" envconfig:"PORT_FALLBACKS" validate:"min=0,max=20"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	OpenBrowser     bool          `yaml:"open_browser" envconfig:"OPEN_BROWSER"`
}

// SecurityConfig contains cross-origin and request limits
type SecurityConfig struct {
	AllowedOrigins   []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" validate:"min=1"`
	AllowCredentials bool            `yaml:"allow_credentials" envconfig:"ALLOW_CREDENTIALS"`
	MaxBodyBytes     int64           `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" validate:"min=1"`
	RateLimit        RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"min=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system locations. Relative entries are resolved
// against ExecutableDir.
type PathsConfig struct {
	ExecutableDir string `yaml:"executable_dir" envconfig:"EXECUTABLE_DIR"`
	DistDir       string `yaml:"dist_dir" envconfig:"DIST_DIR" validate:"required"`
	LogoFile      string `yaml:"logo_file" envconfig:"LOGO_FILE" validate:"required"`
}

// FingerprintConfig controls machine fingerprint derivation.
//
// ProcessorID and BoardSerial pin the hardware identifiers instead of querying
// the host. They must be set together.
type FingerprintConfig struct {
	Namespace   string `yaml:"namespace" envconfig:"NAMESPACE" validate:"required"`
	ProcessorID string `yaml:"processor_id" envconfig:"PROCESSOR_ID"`
	BoardSerial string `yaml:"board_serial" envconfig:"BOARD_SERIAL"`
}

// Pinned reports whether static hardware identifiers were configured.
func (f FingerprintConfig) Pinned() bool {
	return f.ProcessorID != "" && f.BoardSerial != ""
}

// LicenseConfig selects and parameterizes the license decision policy
type LicenseConfig struct {
	Policy                   string `yaml:"policy" envconfig:"POLICY" validate:"oneof=reference dated"`
	MasterKey                string `yaml:"master_key" envconfig:"MASTER_KEY"`
	Secret                   string `yaml:"secret" envconfig:"SECRET"`
	MinSignatureLength       int    `yaml:"min_signature_length" envconfig:"MIN_SIGNATURE_LENGTH" validate:"min=1,max=64"`
	OnUnavailableFingerprint string `yaml:"on_unavailable_fingerprint" envconfig:"ON_UNAVAILABLE_FINGERPRINT" validate:"oneof=allow deny"`
}

// TelemetryConfig contains OpenTelemetry settings
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout"`
	MetricsEnabled bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"min=0,max=1"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			PortFallbacks:   2,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			OpenBrowser:     true,
		},
		Security: SecurityConfig{
			AllowedOrigins:   []string{"*"},
			AllowCredentials: true,
			MaxBodyBytes:     64 << 10,
			RateLimit: RateLimitConfig{
				Enabled: false,
				RPS:     50,
				Burst:   100,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: filepath.Join("logs", "app.log"),
		},
		Paths: PathsConfig{
			DistDir:  "dist",
			LogoFile: "logo.png",
		},
		Fingerprint: FingerprintConfig{
			Namespace: "FBC-KPF-ARCH",
		},
		License: LicenseConfig{
			Policy:                   "reference",
			MasterKey:                "ARCHPRO2025ADMINX",
			Secret:                   "FANG_BIAO_CENTURY_ARCH_SECURE_2025",
			MinSignatureLength:       8,
			OnUnavailableFingerprint: "allow",
		},
		Telemetry: TelemetryConfig{
			Environment:    "production",
			TraceExporter:  "none",
			MetricsEnabled: true,
			SampleRatio:    1.0,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// FBC_* environment variables, in that order of precedence (env wins).
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without a matching variable keep their current value
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys absent from the file
// keep their defaults.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolvePaths anchors relative paths at the executable directory
func (c *Config) resolvePaths() error {
	if c.Paths.ExecutableDir == "" {
		dir, err := ExecutableDir()
		if err != nil {
			return err
		}
		c.Paths.ExecutableDir = dir
	}

	c.Paths.DistDir = c.resolve(c.Paths.DistDir)
	c.Paths.LogoFile = c.resolve(c.Paths.LogoFile)
	if c.Logging.FilePath != "" {
		c.Logging.FilePath = c.resolve(c.Logging.FilePath)
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.ExecutableDir, p)
}

// Validate checks struct constraints and the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if (c.Fingerprint.ProcessorID == "") != (c.Fingerprint.BoardSerial == "") {
		return fmt.Errorf("fingerprint processor_id and board_serial must be set together")
	}

	if c.License.Policy == "dated" && c.License.Secret == "" {
		return fmt.Errorf("license secret is required for the dated policy")
	}

	if (c.Logging.Output == "file" || c.Logging.Output == "both") && c.Logging.FilePath == "" {
		return fmt.Errorf("logging file_path is required for output %q", c.Logging.Output)
	}

	return nil
}

// Address returns host:port for the given port
func (s ServerConfig) Address(port int) string {
	return fmt.Sprintf("%s:%d", s.Host, port)
}

// getConfigFilePath returns the path to the config file, or "" if none exists
func getConfigFilePath() string {
	if explicit := os.Getenv(ConfigFileEnv); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		filepath.Join("configs", "config.yaml"),
	}
	if dir, err := ExecutableDir(); err == nil {
		locations = append(locations, filepath.Join(dir, "config.yaml"))
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}
