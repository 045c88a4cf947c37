package epifilter

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/arielsaffer/EF-Activities/internal/model"
)

// Export writes a run's artifacts as CSV files under the exports directory:
// quantile bands, cycle diagnostics and one ensemble matrix per cycle.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if err := c.ensureStore(ctx); err != nil {
		return ExportSummary{}, err
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("run not found: %s", runID)
	}

	outDir := req.OutDir
	if outDir == "" {
		outDir = c.exportsDir
	}
	dir := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportSummary{}, err
	}

	summary := ExportSummary{RunID: runID, Directory: dir}

	history, ok, err := c.store.GetQuantileHistory(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if ok {
		path := filepath.Join(dir, "quantiles.csv")
		if err := writeQuantilesCSV(path, history); err != nil {
			return ExportSummary{}, err
		}
		summary.Files++
		summary.Bytes += fileSize(path)
	}

	diagnostics, ok, err := c.store.GetCycleDiagnostics(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if ok {
		path := filepath.Join(dir, "diagnostics.csv")
		if err := writeDiagnosticsCSV(path, diagnostics); err != nil {
			return ExportSummary{}, err
		}
		summary.Files++
		summary.Bytes += fileSize(path)
	}

	for cycle := 0; cycle < run.Cycles; cycle++ {
		snapshot, ok, err := c.store.GetEnsembleSnapshot(ctx, runID, cycle)
		if err != nil {
			return ExportSummary{}, err
		}
		if !ok {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("ensemble_%03d.csv", cycle))
		if err := writeEnsembleCSV(path, snapshot.Columns, snapshot.Rows); err != nil {
			return ExportSummary{}, err
		}
		summary.Files++
		summary.Bytes += fileSize(path)
	}

	return summary, nil
}

func writeQuantilesCSV(path string, history []model.CycleQuantiles) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"cycle", "step",
		"s_lower", "s_median", "s_upper",
		"i_lower", "i_median", "i_upper",
		"r_lower", "r_median", "r_upper"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, cq := range history {
		for step := range cq.Lower {
			row := []string{strconv.Itoa(cq.Cycle), strconv.Itoa(step)}
			for comp := 0; comp < 3; comp++ {
				row = append(row,
					formatFloat(cq.Lower[step][comp]),
					formatFloat(cq.Median[step][comp]),
					formatFloat(cq.Upper[step][comp]))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func writeDiagnosticsCSV(path string, diagnostics []model.CycleDiagnostics) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"cycle", "observation_step", "observation_count",
		"missing", "degenerate", "effective_sample_size", "max_log_likelihood",
		"mean_s", "mean_i", "mean_r", "mean_beta", "mean_recovery"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, d := range diagnostics {
		row := []string{
			strconv.Itoa(d.Cycle),
			strconv.Itoa(d.ObservationStep),
			strconv.Itoa(d.ObservationCount),
			strconv.FormatBool(d.Missing),
			strconv.FormatBool(d.Degenerate),
			formatFloat(d.EffectiveSize),
			formatFloat(d.MaxLogLikelihood),
			formatFloat(d.MeanSusceptible),
			formatFloat(d.MeanInfected),
			formatFloat(d.MeanRecovered),
			formatFloat(d.MeanBeta),
			formatFloat(d.MeanRecovery),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeEnsembleCSV(path string, columns []string, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return err
	}
	for _, values := range rows {
		row := make([]string, len(values))
		for j, v := range values {
			row[j] = formatFloat(v)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
