package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix GitHub Actions gives to step inputs.
const EnvPrefix = "INPUT"

// AddFlags registers the audit flags. Every flag can also be given as an
// action input, e.g. --deny-warnings as INPUT_DENY_WARNINGS.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringSlice("ignore", nil, "Advisory IDs or aliases to ignore (comma separated)")
	fs.Bool("deny-warnings", false, "Fail on warnings as well as vulnerabilities")
	fs.Bool("create-issues", false, "Create or update a GitHub issue per finding")
	fs.String("file", "", "Cargo.lock to audit, relative to the working directory")
	fs.String("working-directory", "", "Directory to run the audit in")
	fs.String("repo", "", "GitHub repo (owner/repo) to manage issues in (default $GITHUB_REPOSITORY)")
	fs.String("token", "", "GitHub token for API access (default $GITHUB_TOKEN)")
	fs.String("format", "", "Report file format: table | markdown | json | sarif | openvex")
	fs.String("output", "", "Write the report in --format to this path")
	fs.Bool("dry-run", false, "Compute the issue plan without writing to GitHub")
	fs.String("slack-webhook", "", "Slack incoming webhook notified about new issues")
	fs.String("metrics-textfile", "", "Write Prometheus metrics to this file")
	fs.String("pushgateway", "", "Push Prometheus metrics to this Pushgateway URL")
}

// MergeFlags layers INPUT_* environment variables and then explicitly set
// flags over cfg, and fills repository settings from the Actions environment.
func MergeFlags(cfg *Config, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if v.IsSet("ignore") {
		// env inputs arrive as one comma separated string
		switch raw := v.Get("ignore").(type) {
		case string:
			cfg.Ignore = splitList([]string{raw})
		default:
			cfg.Ignore = splitList(v.GetStringSlice("ignore"))
		}
	}
	setBool(v, "deny-warnings", &cfg.DenyWarnings)
	setBool(v, "create-issues", &cfg.CreateIssues)
	setBool(v, "dry-run", &cfg.DryRun)
	setBool(v, "debug", &cfg.Debug)
	setString(v, "file", &cfg.File)
	setString(v, "working-directory", &cfg.WorkingDirectory)
	setString(v, "repo", &cfg.Repo)
	setString(v, "token", &cfg.Token)
	setString(v, "format", &cfg.Output.Format)
	setString(v, "output", &cfg.Output.Path)
	setString(v, "slack-webhook", &cfg.Notify.SlackWebhook)
	setString(v, "metrics-textfile", &cfg.Metrics.Textfile)
	setString(v, "pushgateway", &cfg.Metrics.Pushgateway)

	if cfg.Repo == "" {
		cfg.Repo = os.Getenv("GITHUB_REPOSITORY")
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("GITHUB_TOKEN")
	}
	if u := os.Getenv("GITHUB_API_URL"); u != "" {
		cfg.APIURL = u
	}
	cfg.StepSummary = os.Getenv("GITHUB_STEP_SUMMARY")
	if !cfg.Debug && os.Getenv("RUNNER_DEBUG") == "1" {
		cfg.Debug = true
	}
	return cfg, nil
}

func setBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

// setString ignores empty values so a blank action input keeps the file setting.
func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			*dst = s
		}
	}
}
