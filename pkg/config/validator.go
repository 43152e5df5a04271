package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rustsec-audit-action/pkg/reporter"
	"github.com/rustsec-audit-action/pkg/tracker"
)

// Error lists every problem found in a configuration.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks option combinations before anything runs.
func (c *Config) Validate() error {
	var problems []string

	if c.CreateIssues {
		if c.Token == "" && !c.DryRun {
			problems = append(problems, "create_issues requires a GitHub token (INPUT_TOKEN, GITHUB_TOKEN or --token)")
		}
		if _, _, err := tracker.ParseRepository(c.Repo); err != nil {
			problems = append(problems, fmt.Sprintf("create_issues requires the repository as owner/repo, got %q", c.Repo))
		}
	}

	if !reporter.KnownFormat(c.Output.Format) {
		problems = append(problems, fmt.Sprintf("output format must be one of %s, got %q", strings.Join(reporter.Formats, ", "), c.Output.Format))
	}
	if c.Tracker.Retries < 1 {
		problems = append(problems, fmt.Sprintf("tracker.retries must be at least 1, got: %d", c.Tracker.Retries))
	}
	if c.Tracker.RetryDelay < 0 {
		problems = append(problems, fmt.Sprintf("tracker.retry_delay must not be negative, got: %v", c.Tracker.RetryDelay))
	}
	if len(c.Scanner.Command) == 0 || strings.TrimSpace(c.Scanner.Command[0]) == "" {
		problems = append(problems, "scanner.command must name an executable")
	}
	if c.Scanner.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("scanner.timeout must be positive, got: %v", c.Scanner.Timeout))
	}

	if c.WorkingDirectory != "" {
		info, err := os.Stat(c.WorkingDirectory)
		switch {
		case err != nil:
			problems = append(problems, fmt.Sprintf("working_directory: %v", err))
		case !info.IsDir():
			problems = append(problems, fmt.Sprintf("working_directory %s is not a directory", c.WorkingDirectory))
		}
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}
