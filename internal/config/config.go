package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/efebarandurmaz/kiln/internal/extern"
	"github.com/efebarandurmaz/kiln/internal/observability"
	"github.com/efebarandurmaz/kiln/internal/output"
	"github.com/efebarandurmaz/kiln/internal/project"
)

// Config holds all application configuration.
type Config struct {
	Build     BuildConfig     `mapstructure:"build"`
	Extern    ExternConfig    `mapstructure:"extern"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
}

type BuildConfig struct {
	Project      string   `mapstructure:"project"`
	Backend      string   `mapstructure:"backend"`
	OutputRoot   string   `mapstructure:"output_root"`
	SourcePaths  []string `mapstructure:"source_paths"`
	LibraryPaths []string `mapstructure:"library_paths"`
	Excludes     []string `mapstructure:"excludes"`
	Jobs         int      `mapstructure:"jobs"`

	// Namespaces maps markup namespace URIs to packages.
	Namespaces map[string]string `mapstructure:"namespaces"`

	// BodyCacheSize bounds the number of parsed function bodies kept.
	BodyCacheSize int `mapstructure:"body_cache_size"`

	// Backends holds per-backend options, keyed by backend name.
	Backends map[string]map[string]string `mapstructure:"backends"`
}

// NamespaceMappings returns the configured mappings sorted by URI.
func (b BuildConfig) NamespaceMappings() []project.NamespaceMapping {
	uris := make([]string, 0, len(b.Namespaces))
	for uri := range b.Namespaces {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	out := make([]project.NamespaceMapping, 0, len(uris))
	for _, uri := range uris {
		out = append(out, project.NamespaceMapping{URI: uri, Package: b.Namespaces[uri]})
	}
	return out
}

type ExternConfig struct {
	ASRoot          string   `mapstructure:"as_root"`
	External        []string `mapstructure:"external"`
	ClassToFunction []string `mapstructure:"class_to_function"`
	ClassExclude    []string `mapstructure:"class_exclude"`

	// FieldExclude and Exclude are flat class/name lists.
	FieldExclude []string          `mapstructure:"field_exclude"`
	Exclude      []string          `mapstructure:"exclude"`
	ExcludeRules []extern.RuleSpec `mapstructure:"exclude_rules"`
}

// Options converts the section into extern options.
func (e ExternConfig) Options() extern.Options {
	return extern.Options{
		ASRoot:          e.ASRoot,
		Externals:       e.External,
		ClassToFunction: e.ClassToFunction,
		ClassExcludes:   e.ClassExclude,
		FieldExcludes:   e.FieldExclude,
		Excludes:        e.Exclude,
		Rules:           e.ExcludeRules,
	}
}

type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// ArtifactsConfig selects an S3-compatible bucket as the artifact sink.
// Artifacts go to the local output root when Bucket is empty.
type ArtifactsConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

func (a ArtifactsConfig) Enabled() bool { return a.Bucket != "" }

func (a ArtifactsConfig) ObjectConfig() output.ObjectConfig {
	return output.ObjectConfig{
		Endpoint:  a.Endpoint,
		Region:    a.Region,
		AccessKey: a.AccessKey,
		SecretKey: a.SecretKey,
		Bucket:    a.Bucket,
		Prefix:    a.Prefix,
		UseSSL:    a.UseSSL,
	}
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Environment string  `mapstructure:"environment"`
}

func (t TracingConfig) Observability() *observability.TracingConfig {
	cfg := observability.DefaultTracingConfig()
	cfg.OTLPEndpoint = t.Endpoint
	cfg.SampleRate = t.SampleRate
	if t.Environment != "" {
		cfg.Environment = t.Environment
	}
	return cfg
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func (l LogConfig) Observability() observability.LogConfig {
	return observability.LogConfig{Level: l.Level, Format: l.Format}
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			Project:       "kiln",
			Backend:       "js",
			OutputRoot:    "out",
			Jobs:          0,
			BodyCacheSize: 4096,
		},
		Temporal: TemporalConfig{Host: "localhost:7233", Namespace: "default", TaskQueue: "kiln"},
		Tracing:  TracingConfig{SampleRate: 1.0},
		Log:      LogConfig{Level: "info", Format: "text"},
		Server:   ServerConfig{ShutdownTimeout: 30 * time.Second},
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Build.Jobs < 0 {
		warnings = append(warnings, fmt.Sprintf("build jobs %d is negative; using GOMAXPROCS", c.Build.Jobs))
	}
	if c.Build.BodyCacheSize < 0 {
		warnings = append(warnings, fmt.Sprintf("build body_cache_size %d is negative", c.Build.BodyCacheSize))
	}

	if len(c.Extern.External) > 0 && c.Extern.ASRoot == "" {
		warnings = append(warnings, "extern external is set but as_root is empty")
	}
	for name, list := range map[string][]string{"field_exclude": c.Extern.FieldExclude, "exclude": c.Extern.Exclude} {
		if len(list)%2 != 0 {
			warnings = append(warnings, fmt.Sprintf("extern %s has an odd number of values", name))
		}
	}

	if c.Artifacts.Bucket != "" && c.Artifacts.Endpoint == "" {
		warnings = append(warnings, fmt.Sprintf("artifacts bucket '%s' is configured but endpoint is empty", c.Artifacts.Bucket))
	}
	if c.Graph.URI != "" && c.Graph.Username == "" {
		warnings = append(warnings, "graph uri is set but username is empty")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}
	if _, err := observability.ParseLevel(c.Log.Level); err != nil {
		warnings = append(warnings, fmt.Sprintf("log level: %v", err))
	}

	sort.Strings(warnings)
	return warnings
}

// Load reads configuration from path, when given, and from KILN_
// environment variables on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix("KILN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

// setDefaults registers every scalar default so that environment
// variables can override keys absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("build.project", d.Build.Project)
	v.SetDefault("build.backend", d.Build.Backend)
	v.SetDefault("build.output_root", d.Build.OutputRoot)
	v.SetDefault("build.jobs", d.Build.Jobs)
	v.SetDefault("build.body_cache_size", d.Build.BodyCacheSize)
	v.SetDefault("extern.as_root", "")
	v.SetDefault("graph.uri", "")
	v.SetDefault("graph.username", "")
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.database", "")
	v.SetDefault("artifacts.endpoint", "")
	v.SetDefault("artifacts.bucket", "")
	v.SetDefault("artifacts.access_key", "")
	v.SetDefault("artifacts.secret_key", "")
	v.SetDefault("temporal.host", d.Temporal.Host)
	v.SetDefault("temporal.namespace", d.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", d.Temporal.TaskQueue)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.listen", "")
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
}
