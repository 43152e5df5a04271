package driver

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rustsec-audit-action/pkg/advisory"
	"github.com/rustsec-audit-action/pkg/config"
	"github.com/rustsec-audit-action/pkg/reporter"
)

// writeReports prints the console summary, appends the markdown summary to
// the step summary file and writes the optional report file.
func writeReports(cfg *config.Config, rep reporter.Report, failed bool, stdout io.Writer) error {
	if err := reporter.Console(stdout, rep, failed); err != nil {
		return fmt.Errorf("console summary: %w", err)
	}

	if cfg.StepSummary != "" {
		if err := appendFile(cfg.StepSummary, func(w io.Writer) error {
			return (&reporter.MarkdownReporter{}).Report(w, rep)
		}); err != nil {
			return fmt.Errorf("step summary: %w", err)
		}
		slog.Info("Posted step summary", "path", cfg.StepSummary)
	}

	if cfg.Output.Path != "" {
		r, err := reporter.New(cfg.Output.Format)
		if err != nil {
			return err
		}
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		if err := r.Report(f, rep); err != nil {
			f.Close()
			return fmt.Errorf("write %s report: %w", cfg.Output.Format, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		slog.Info("Wrote report", "path", cfg.Output.Path, "format", cfg.Output.Format)
	}
	return nil
}

func appendFile(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Render parses a saved cargo audit report and writes it in format. Ignored
// findings are kept apart as in a full run.
func Render(w io.Writer, data []byte, format string, ignore map[string]bool) error {
	all, err := advisory.ParseReport(data)
	if err != nil {
		return &StageError{Stage: StageParse, Err: err}
	}
	r, err := reporter.New(format)
	if err != nil {
		return &StageError{Stage: StageConfig, Err: err}
	}
	rep := reporter.Report{}
	for _, f := range all {
		if advisory.Ignored(f, ignore) {
			rep.Ignored = append(rep.Ignored, f)
		} else {
			rep.Findings = append(rep.Findings, f)
		}
	}
	return r.Report(w, rep)
}
