package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustsec-audit-action/pkg/scanner"
	"github.com/rustsec-audit-action/pkg/tracker"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = ".rustsec-audit.yml"

type Config struct {
	Ignore           []string `yaml:"ignore"`
	DenyWarnings     bool     `yaml:"deny_warnings"`
	CreateIssues     bool     `yaml:"create_issues"`
	File             string   `yaml:"file"`
	WorkingDirectory string   `yaml:"working_directory"`
	Issues           Issues   `yaml:"issues"`
	Tracker          Tracker  `yaml:"tracker"`
	Scanner          Scanner  `yaml:"scanner"`
	Output           Output   `yaml:"output"`
	Notify           Notify   `yaml:"notify"`
	Metrics          Metrics  `yaml:"metrics"`

	DryRun      bool   `yaml:"-"`
	Debug       bool   `yaml:"-"`
	Repo        string `yaml:"-"`
	Token       string `yaml:"-"`
	APIURL      string `yaml:"-"`
	StepSummary string `yaml:"-"`
}

type Issues struct {
	Labels    []string `yaml:"labels"`
	Assignees []string `yaml:"assignees"`
}

type Tracker struct {
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type Scanner struct {
	Command []string      `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

type Output struct {
	Format string `yaml:"format"`
	// Path receives the report in Format; empty means no report file.
	Path string `yaml:"path"`
}

type Notify struct {
	SlackWebhook string `yaml:"slack_webhook"`
}

type Metrics struct {
	Textfile    string `yaml:"textfile"`
	Pushgateway string `yaml:"pushgateway"`
	Job         string `yaml:"job"`
}

func Default() *Config {
	return &Config{
		Tracker: Tracker{
			Retries:    tracker.DefaultRetries,
			RetryDelay: tracker.DefaultRetryDelay,
		},
		Scanner: Scanner{
			Command: append([]string{}, scanner.DefaultCommand...),
			Timeout: scanner.DefaultTimeout,
		},
		Output: Output{Format: "table"},
		Metrics: Metrics{
			Job: "rustsec_audit",
		},
		APIURL: "https://api.github.com",
	}
}

// Load reads .env from the current directory and then the YAML file at path
// over the defaults. An empty path reads DefaultFile when it exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return cfg, nil
		}
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Ignore = splitList(cfg.Ignore)
	return cfg, nil
}

// IgnoreSet returns the ignore list as a set.
func (c *Config) IgnoreSet() map[string]bool {
	set := make(map[string]bool, len(c.Ignore))
	for _, id := range c.Ignore {
		set[id] = true
	}
	return set
}

// splitList flattens comma separated entries and drops blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
