package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jihwankim/ceflags/pkg/flagset"
	"github.com/jihwankim/ceflags/pkg/workerctx"
)

// OutputFormat represents the progress output format.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatTUI  OutputFormat = "tui"
)

// ProgressReporter reports CEEngine/MinimizeEngine progress to the
// terminal. It satisfies ceengine.Reporter and minimize.Reporter by
// structural typing — no import of either package is needed here, so
// pkg/reporting depends only on pkg/flagset and pkg/workerctx.
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter creates a new progress reporter.
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{format: format, logger: logger}
}

// IterationStart reports the start of a CE iteration.
func (pr *ProgressReporter) IterationStart(iteration int, fs *flagset.FlagSet) {
	switch pr.format {
	case FormatJSON:
		pr.emitJSON("iteration_start", map[string]interface{}{
			"iteration":  iteration,
			"flag_count": fs.FlagCount(),
		})
	default:
		fmt.Printf("[%s] iteration %d starting (%d flags)\n", pr.now(), iteration, fs.FlagCount())
	}
}

// Baseline reports the measured baseline score for an iteration.
func (pr *ProgressReporter) Baseline(iteration int, score float64) {
	switch pr.format {
	case FormatJSON:
		pr.emitJSON("baseline", map[string]interface{}{"iteration": iteration, "score": score})
	default:
		fmt.Printf("[%s] iteration %d baseline = %g\n", pr.now(), iteration, score)
	}
}

// Perturbation reports one completed fan-out probe.
func (pr *ProgressReporter) Perturbation(iteration int, tag workerctx.PerturbationTag, score float64) {
	if pr.format == FormatTUI {
		// Too high-volume for the TUI's redraw cadence; summarized at promotion time instead.
		return
	}
	switch pr.format {
	case FormatJSON:
		pr.emitJSON("perturbation", map[string]interface{}{
			"iteration": iteration, "flag_index": tag.FlagIndex, "state": tag.CandidateState, "score": score,
		})
	default:
		fmt.Printf("  probe flag=%d state=%d score=%g\n", tag.FlagIndex, tag.CandidateState, score)
	}
}

// Promotion reports the flag promoted at the end of an iteration.
func (pr *ProgressReporter) Promotion(iteration int, tag workerctx.PerturbationTag, score float64) {
	switch pr.format {
	case FormatJSON:
		pr.emitJSON("promotion", map[string]interface{}{
			"iteration": iteration, "flag_index": tag.FlagIndex, "state": tag.CandidateState, "score": score,
		})
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("promoted flag %d -> state %d (score %g)\n", tag.FlagIndex, tag.CandidateState, score)
	default:
		fmt.Printf("[PROMOTE] flag=%d state=%d score=%g\n", tag.FlagIndex, tag.CandidateState, score)
	}
}

// Pessimized reports a regressor excluded by --drop-pessimizing-flags.
func (pr *ProgressReporter) Pessimized(iteration int, tag workerctx.PerturbationTag, score float64) {
	switch pr.format {
	case FormatJSON:
		pr.emitJSON("pessimized", map[string]interface{}{
			"iteration": iteration, "flag_index": tag.FlagIndex, "state": tag.CandidateState, "score": score,
		})
	default:
		fmt.Printf("  dropped flag=%d state=%d score=%g (regressor)\n", tag.FlagIndex, tag.CandidateState, score)
	}
}

// IterationEnd reports the end of an iteration.
func (pr *ProgressReporter) IterationEnd(iteration int, promoted bool) {
	switch pr.format {
	case FormatJSON:
		pr.emitJSON("iteration_end", map[string]interface{}{"iteration": iteration, "promoted": promoted})
	default:
		fmt.Printf("[%s] iteration %d done (promoted=%v)\n", pr.now(), iteration, promoted)
	}
}

// Probe reports one MinimizeEngine bisection probe.
func (pr *ProgressReporter) Probe(activeCount int, reproduced bool, score *float64) {
	scoreStr := "nil"
	if score != nil {
		scoreStr = fmt.Sprintf("%g", *score)
	}
	switch pr.format {
	case FormatJSON:
		pr.emitJSON("minimize_probe", map[string]interface{}{
			"active_count": activeCount, "reproduced": reproduced, "score": scoreStr,
		})
	default:
		fmt.Printf("[MINIMIZE] probed %d active flags, score=%s, reproduced=%v\n", activeCount, scoreStr, reproduced)
	}
}

// ReportRun prints a terminal summary of a completed run report.
func (pr *ProgressReporter) ReportRun(report *RunReport) {
	switch pr.format {
	case FormatJSON:
		pr.emitJSON("run_completed", report)
	case FormatTUI:
		pr.clearLine()
		pr.printRunSummary(report)
	default:
		pr.printRunSummaryText(report)
	}
}

func (pr *ProgressReporter) printRunSummary(report *RunReport) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("   RUN SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("run:       %s\n", report.RunID)
	fmt.Printf("status:    %s (%s)\n", report.Status, report.TerminateOn)
	fmt.Printf("context:   %s / %s\n", report.Context, report.Benchmark)
	fmt.Printf("iterations: %d\n", report.Iterations)
	fmt.Printf("baseline:   %g\n", report.BaselineScore)
	fmt.Printf("final:      %g\n", report.FinalScore)
	fmt.Printf("duration:   %s\n", report.Duration)
	fmt.Printf("promotions (%d):\n", len(report.Promotions))
	for _, p := range report.Promotions {
		fmt.Printf("  iter %d: %s -> state %d (score %g, was %g)\n", p.Iteration, p.FlagName, p.State, p.Score, p.Baseline)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func (pr *ProgressReporter) printRunSummaryText(report *RunReport) {
	fmt.Printf("\n[RUN SUMMARY] %s\n", report.Status)
	fmt.Printf("  run:        %s\n", report.RunID)
	fmt.Printf("  terminated: %s\n", report.TerminateOn)
	fmt.Printf("  iterations: %d\n", report.Iterations)
	fmt.Printf("  baseline:   %g\n", report.BaselineScore)
	fmt.Printf("  final:      %g\n", report.FinalScore)
	fmt.Printf("  duration:   %s\n", report.Duration)
	fmt.Printf("  promotions: %d\n", len(report.Promotions))
}

func (pr *ProgressReporter) emitJSON(event string, payload interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"event":     event,
		"data":      payload,
		"timestamp": time.Now(),
	})
	if err != nil {
		pr.logger.Error("failed to marshal progress event", "error", err)
		return
	}
	fmt.Println(string(data))
}

func (pr *ProgressReporter) now() string {
	return time.Now().Format("15:04:05")
}

func (pr *ProgressReporter) clearLine() {
	fmt.Print("\033[K")
}
