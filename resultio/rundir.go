package resultio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	simerrors "github.com/kart-io/forecastsim/errors"
	"github.com/kart-io/forecastsim/intervention"
	"github.com/kart-io/forecastsim/policy"
	"github.com/kart-io/forecastsim/simulator"
)

// ResultSink is the narrow interface a caller hands a finished
// intervention run to; RunDirWriter implements it. intervention.Runner
// itself writes nothing, and the core never depends on resultio directly.
type ResultSink interface {
	WriteRun(run intervention.InterventionRun, policyResult policy.PolicyAgentResult, statusQuo, interventionResult simulator.SimulationResult) error
}

// RunDirWriter lays out the <results_dir>/run_<timestamp>/<situation>_<run_id>_<timestamp>/
// tree from the on-disk filesystem layout and writes the four per-run
// artifact files into it.
type RunDirWriter struct {
	resultsDir string
	runStamp   string
}

// NewRunDirWriter builds a RunDirWriter rooted at resultsDir, using
// runStamp (a caller-supplied timestamp string, since this module never
// calls time.Now directly) to name the top-level run_<timestamp>
// directory shared by every run in one batch.
func NewRunDirWriter(resultsDir, runStamp string) *RunDirWriter {
	return &RunDirWriter{resultsDir: resultsDir, runStamp: runStamp}
}

// WriteRun creates <situation>_<run_id>_<timestamp>/ under the shared
// run_<timestamp>/ directory and writes policy_result.json,
// status_quo_simulation.json, intervention_simulation.json, and
// run_summary.json into it.
func (w *RunDirWriter) WriteRun(run intervention.InterventionRun, policyResult policy.PolicyAgentResult, statusQuo, interventionResult simulator.SimulationResult) error {
	dir := filepath.Join(w.resultsDir, fmt.Sprintf("run_%s", w.runStamp),
		fmt.Sprintf("%s_%s_%s", run.SituationName, run.RunID, run.Timestamp))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return simerrors.Wrap(err, simerrors.CodeInvalidConfig, "create run directory").
			WithComponent("resultio").WithContext("dir", dir)
	}

	writes := map[string]interface{}{
		"policy_result.json":            policyResult,
		"status_quo_simulation.json":    statusQuo,
		"intervention_simulation.json":  interventionResult,
		"run_summary.json":              run,
	}
	for name, v := range writes {
		if err := writeJSONFile(filepath.Join(dir, name), v); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return simerrors.Wrap(err, simerrors.CodeInternal, "marshal run artifact").
			WithComponent("resultio").WithContext("path", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return simerrors.Wrap(err, simerrors.CodeInternal, "write run artifact").
			WithComponent("resultio").WithContext("path", path)
	}
	return nil
}
