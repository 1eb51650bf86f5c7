package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/macropower/rulesync/pkg/rule"
	"github.com/macropower/rulesync/pkg/telemetry"
	"github.com/macropower/rulesync/pkg/yaml"
)

const (
	APIVersion = "rulesync.jacobcolvin.com/v1beta1"
	Kind       = "Configuration"

	DefaultDirectory = "Rules"

	//go:generate go run ../../internal/schemagen/main.go -kind config -o config.v1beta1.json
	schemaURL = "https://raw.githubusercontent.com/macropower/rulesync/refs/heads/main/pkg/config/config.v1beta1.json"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")

	DefaultValidator = yaml.MustNewValidatorFor(schemaURL, &Config{})
)

//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	Restart *RestartConfig `json:"restart,omitempty" jsonschema:"title=Restart"`
	MCP     *MCPConfig     `json:"mcp,omitempty"     jsonschema:"title=MCP"`
	Metrics *MetricsConfig `json:"metrics,omitempty" jsonschema:"title=Metrics"`
	Tracing *TracingConfig `json:"tracing,omitempty" jsonschema:"title=Tracing"`
	// APIVersion specifies the API version for this configuration.
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`
	// Kind defines the type of configuration.
	Kind string `json:"kind" jsonschema:"title=Kind"`
	// Directory is the rule directory. It is created if it does not exist.
	Directory string `json:"directory,omitempty" jsonschema:"title=Directory"`
	// Extensions are the file extensions recognized as rule files.
	Extensions []string `json:"extensions,omitempty" jsonschema:"title=Extensions"`
	// RequireWatch makes the service exit when the rule directory cannot be
	// watched, instead of serving an empty catalog.
	RequireWatch bool `json:"requireWatch,omitempty" jsonschema:"title=Require Watch"`
}

// RestartConfig bounds how the directory watch is re-established after a
// disruption.
type RestartConfig struct {
	// InitialInterval is the first delay between attempts, e.g. "500ms".
	InitialInterval string `json:"initialInterval,omitempty" jsonschema:"title=Initial Interval"`
	// MaxInterval caps the delay between attempts.
	MaxInterval string `json:"maxInterval,omitempty" jsonschema:"title=Max Interval"`
	// MaxAttempts limits attempts per disruption. Zero means no limit.
	MaxAttempts *uint `json:"maxAttempts,omitempty" jsonschema:"title=Max Attempts"`
}

type MCPConfig struct {
	// Address is the streamable HTTP listen address. Empty serves over stdio.
	Address string `json:"address,omitempty" jsonschema:"title=Address"`
	Enabled bool   `json:"enabled,omitempty" jsonschema:"title=Enabled"`
}

type MetricsConfig struct {
	// Address is the listen address for the /metrics endpoint. Empty
	// disables it.
	Address string `json:"address,omitempty" jsonschema:"title=Address"`
}

type TracingConfig struct {
	Exporter string `json:"exporter,omitempty" jsonschema:"title=Exporter,enum=none,enum=otlp"`
	// Endpoint is the OTLP/gRPC receiver address.
	Endpoint string `json:"endpoint,omitempty" jsonschema:"title=Endpoint"`
	Insecure bool   `json:"insecure,omitempty" jsonschema:"title=Insecure"`
}

func NewConfig() *Config {
	c := &Config{
		APIVersion: APIVersion,
		Kind:       Kind,
	}
	c.EnsureDefaults()

	return c
}

func (c *Config) EnsureDefaults() {
	if c.Directory == "" {
		c.Directory = DefaultDirectory
	}
	if len(c.Extensions) == 0 {
		c.Extensions = slices.Clone(rule.DefaultExtensions)
	}

	if c.Restart == nil {
		c.Restart = &RestartConfig{}
	}
	if c.Restart.InitialInterval == "" {
		c.Restart.InitialInterval = "500ms"
	}
	if c.Restart.MaxInterval == "" {
		c.Restart.MaxInterval = "30s"
	}
	if c.Restart.MaxAttempts == nil {
		attempts := uint(10)
		c.Restart.MaxAttempts = &attempts
	}

	if c.MCP == nil {
		c.MCP = &MCPConfig{}
	}
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	if c.Tracing == nil {
		c.Tracing = &TracingConfig{}
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = telemetry.ExporterNone
	}
}

// Validate checks requirements that cannot be expressed in the schema.
func (c *Config) Validate() error {
	var errs []error

	if c.APIVersion != APIVersion {
		errs = append(errs, fmt.Errorf("apiVersion must be %q, got %q", APIVersion, c.APIVersion))
	}
	if c.Kind != Kind {
		errs = append(errs, fmt.Errorf("kind must be %q, got %q", Kind, c.Kind))
	}

	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("extension %q must start with a dot", ext))
		}
	}

	initial, err := time.ParseDuration(c.Restart.InitialInterval)
	if err != nil {
		errs = append(errs, fmt.Errorf("restart.initialInterval: %w", err))
	}

	maxInterval, err := time.ParseDuration(c.Restart.MaxInterval)
	if err != nil {
		errs = append(errs, fmt.Errorf("restart.maxInterval: %w", err))
	}

	if initial > 0 && maxInterval > 0 && initial > maxInterval {
		errs = append(errs, errors.New("restart.initialInterval must not exceed restart.maxInterval"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// RestartIntervals returns the parsed restart intervals. Call it only on a
// validated [Config].
func (c *Config) RestartIntervals() (initial, maxInterval time.Duration) {
	initial, _ = time.ParseDuration(c.Restart.InitialInterval)
	maxInterval, _ = time.ParseDuration(c.Restart.MaxInterval)

	return initial, maxInterval
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	apiVersion, ok := jss.Properties.Get("apiVersion")
	if !ok {
		panic("apiVersion property not found in schema")
	}

	apiVersion.Const = APIVersion
	_, _ = jss.Properties.Set("apiVersion", apiVersion)

	kind, ok := jss.Properties.Get("kind")
	if !ok {
		panic("kind property not found in schema")
	}

	kind.Const = Kind
	_, _ = jss.Properties.Set("kind", kind)
}
