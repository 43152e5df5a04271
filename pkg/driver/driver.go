package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rustsec-audit-action/pkg/advisory"
	"github.com/rustsec-audit-action/pkg/config"
	"github.com/rustsec-audit-action/pkg/issues"
	"github.com/rustsec-audit-action/pkg/lockfile"
	"github.com/rustsec-audit-action/pkg/metrics"
	"github.com/rustsec-audit-action/pkg/notify"
	"github.com/rustsec-audit-action/pkg/reporter"
	"github.com/rustsec-audit-action/pkg/scanner"
	"github.com/rustsec-audit-action/pkg/tracker"
)

const (
	ExitOK       = 0
	ExitFindings = 1
	ExitError    = 2
)

// Stage names used in StageError.
const (
	StageConfig  = "config"
	StageScan    = "scan"
	StageParse   = "parse"
	StageReport  = "report"
	StageTracker = "tracker"
)

// StageError names the stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Scanner produces a cargo audit JSON report.
type Scanner interface {
	Scan(ctx context.Context) ([]byte, error)
}

// Deps are the collaborators of a run. Nil fields get defaults built from the config.
type Deps struct {
	Scanner  Scanner
	Tracker  tracker.Tracker
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	// Stdout receives the console summary and the dry-run plan.
	Stdout io.Writer
}

type Result struct {
	Findings []advisory.Finding
	Ignored  []advisory.Finding
	Plan     issues.Plan
	Outcome  issues.Outcome
	// Failed is true when actionable findings are present.
	Failed   bool
	ExitCode int
}

// Run audits the lockfile and syncs the findings with the issue tracker.
// The summary is rendered before any tracker write, so it is available
// even when a later stage fails.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (Result, error) {
	start := time.Now()
	res := Result{ExitCode: ExitError}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Metrics != nil {
		defer func() { publishMetrics(ctx, cfg, deps.Metrics, start, res.ExitCode) }()
	}

	if err := cfg.Validate(); err != nil {
		return res, &StageError{Stage: StageConfig, Err: err}
	}
	lf, err := checkLockfile(ctx, cfg)
	if err != nil {
		return res, &StageError{Stage: StageConfig, Err: err}
	}

	if deps.Scanner == nil {
		deps.Scanner = scanner.New(scanner.Options{
			Command:      cfg.Scanner.Command,
			File:         cfg.File,
			Ignore:       cfg.Ignore,
			DenyWarnings: cfg.DenyWarnings,
			WorkDir:      cfg.WorkingDirectory,
			Timeout:      cfg.Scanner.Timeout,
		})
	}
	data, err := deps.Scanner.Scan(ctx)
	if err != nil {
		return res, &StageError{Stage: StageScan, Err: err}
	}

	all, err := advisory.ParseReport(data)
	if err != nil {
		return res, &StageError{Stage: StageParse, Err: err}
	}
	ignore := cfg.IgnoreSet()
	for _, f := range all {
		if advisory.Ignored(f, ignore) {
			res.Ignored = append(res.Ignored, f)
		} else {
			res.Findings = append(res.Findings, f)
		}
	}
	slog.InfoContext(ctx, "Parsed audit report", "stage", StageParse, "count", len(res.Findings), "ignored", len(res.Ignored))
	if lf != nil {
		for _, f := range res.Findings {
			if f.Package.Name != "" && !lf.Contains(f.Package.Name, f.Package.Version) {
				slog.DebugContext(ctx, "Finding not pinned in lockfile", "package", f.Package.String(), "lockfile", lf.Path)
			}
		}
	}
	if deps.Metrics != nil {
		deps.Metrics.ObserveFindings(res.Findings, len(res.Ignored))
	}

	res.Failed = Failed(res.Findings, cfg.DenyWarnings)
	rep := reporter.Report{
		Findings:     res.Findings,
		Ignored:      res.Ignored,
		DenyWarnings: cfg.DenyWarnings,
	}
	if lf != nil {
		rep.Lockfile = lf.Path
	}
	if err := writeReports(cfg, rep, res.Failed, deps.Stdout); err != nil {
		return res, &StageError{Stage: StageReport, Err: err}
	}

	if cfg.CreateIssues {
		if err := syncIssues(ctx, cfg, deps, &res); err != nil {
			return res, &StageError{Stage: StageTracker, Err: err}
		}
	}

	res.ExitCode = ExitOK
	if res.Failed {
		res.ExitCode = ExitFindings
	}
	return res, nil
}

// Failed reports whether findings should fail the run: any vulnerability, or
// with denyWarnings any finding at warning level or above.
func Failed(findings []advisory.Finding, denyWarnings bool) bool {
	for _, f := range findings {
		if f.Kind == advisory.KindVulnerability {
			return true
		}
		if denyWarnings && f.Level() >= advisory.LevelWarning {
			return true
		}
	}
	return false
}

// checkLockfile parses the lockfile before the scanner runs. A configured
// file must exist and parse. Without one, a missing or unreadable Cargo.lock
// is left to cargo audit, which generates it, and nil is returned.
func checkLockfile(ctx context.Context, cfg *config.Config) (*lockfile.Lockfile, error) {
	path, err := lockfile.Resolve(cfg.WorkingDirectory, cfg.File)
	if err != nil {
		if cfg.File == "" && errors.Is(err, lockfile.ErrNotFound) {
			slog.InfoContext(ctx, "No Cargo.lock committed, cargo audit will generate one", "error", err)
			return nil, nil
		}
		return nil, &config.Error{Problems: []string{err.Error()}}
	}
	lf, err := lockfile.Parse(path)
	if err != nil {
		if cfg.File == "" {
			slog.WarnContext(ctx, "Could not read Cargo.lock, leaving it to cargo audit", "error", err)
			return nil, nil
		}
		return nil, &config.Error{Problems: []string{err.Error()}}
	}
	slog.InfoContext(ctx, "Using lockfile", "path", path, "packages", len(lf.Packages), "registry", lf.Registry())
	return lf, nil
}

func syncIssues(ctx context.Context, cfg *config.Config, deps Deps, res *Result) error {
	t := deps.Tracker
	if t == nil {
		var err error
		if t, err = NewTracker(cfg, deps.Metrics); err != nil {
			return err
		}
	}

	existing, err := t.ListIssues(ctx, tracker.StateOpen)
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}
	slog.InfoContext(ctx, "Listed open issues", "stage", StageTracker, "count", len(existing))

	res.Plan = issues.Reconcile(res.Findings, existing, cfg.IgnoreSet(), issues.Render)
	slog.InfoContext(ctx, "Computed issue plan",
		"create", res.Plan.Count(issues.ActionCreate),
		"update", res.Plan.Count(issues.ActionUpdate),
		"noop", res.Plan.Count(issues.ActionNoOp))

	if cfg.DryRun {
		printPlan(deps.Stdout, res.Plan)
		// apply against a copy so the outcome reflects what would happen
		t = tracker.NewMemoryTracker(existing...)
	}

	res.Outcome, err = issues.Apply(ctx, t, res.Plan)
	if deps.Metrics != nil {
		deps.Metrics.Actions.WithLabelValues(issues.ActionCreate.String()).Add(float64(len(res.Outcome.Created)))
		deps.Metrics.Actions.WithLabelValues(issues.ActionUpdate.String()).Add(float64(len(res.Outcome.Updated)))
		deps.Metrics.Actions.WithLabelValues(issues.ActionNoOp.String()).Add(float64(res.Outcome.Unchanged))
	}
	if err != nil {
		return err
	}

	if !cfg.DryRun && deps.Notifier != nil {
		if err := deps.Notifier.IssuesCreated(ctx, cfg.Repo, res.Outcome.Created); err != nil {
			slog.WarnContext(ctx, "Notification failed", "error", err)
		}
	}
	return nil
}

func printPlan(w io.Writer, plan issues.Plan) {
	fmt.Fprintf(w, "Issue plan (dry run, %d actions):\n", len(plan))
	for _, a := range plan {
		target := "new issue"
		if a.Issue != nil {
			target = fmt.Sprintf("#%d", a.Issue.Number)
		}
		fmt.Fprintf(w, "  %-6s %-10s %s\n", a.Type, target, a.Title)
	}
}

// NewTracker builds the GitHub tracker for cfg with retries. A dry run
// without a token gets an empty in-memory tracker.
func NewTracker(cfg *config.Config, m *metrics.Metrics) (tracker.Tracker, error) {
	if cfg.DryRun && cfg.Token == "" {
		slog.Warn("No token for dry run, planning against an empty issue list")
		return tracker.NewMemoryTracker(), nil
	}
	owner, repo, err := tracker.ParseRepository(cfg.Repo)
	if err != nil {
		return nil, err
	}
	client, err := tracker.NewGitHubClient(cfg.Token, cfg.APIURL)
	if err != nil {
		return nil, err
	}
	gh := tracker.NewGitHubTracker(client, owner, repo,
		tracker.WithLabels(cfg.Issues.Labels...),
		tracker.WithAssignees(cfg.Issues.Assignees...),
	)
	policy := tracker.RetryPolicy{
		Attempts: cfg.Tracker.Retries,
		Delay:    cfg.Tracker.RetryDelay,
	}
	if m != nil {
		policy.OnRetry = m.ObserveRetry
	}
	return tracker.WithRetry(gh, policy), nil
}

func publishMetrics(ctx context.Context, cfg *config.Config, m *metrics.Metrics, start time.Time, exitCode int) {
	m.ObserveRun(start, exitCode)
	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			slog.WarnContext(ctx, "Could not write metrics", "error", err)
		}
	}
	if cfg.Metrics.Pushgateway != "" {
		if err := m.Push(ctx, cfg.Metrics.Pushgateway, cfg.Metrics.Job); err != nil {
			slog.WarnContext(ctx, "Could not push metrics", "error", err)
		}
	}
}
