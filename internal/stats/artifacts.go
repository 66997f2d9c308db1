package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"niche/internal/model"
)

const (
	runFile         = "run.json"
	diagnosticsFile = "generation_diagnostics.json"
	speciesFile     = "species_history.json"
	seriesFile      = "fitness_series.csv"
)

var seriesHeader = []string{"generation", "best_score", "mean_score", "species", "threshold"}

// RunArtifacts is everything stored for one run, laid out for offline analysis.
type RunArtifacts struct {
	Run            model.RunRecord
	Diagnostics    []model.GenerationDiagnostics
	SpeciesHistory []model.SpeciationSnapshot
}

// SeriesPoint is one row of the fitness series CSV.
type SeriesPoint struct {
	Generation int
	BestScore  float64
	MeanScore  float64
	Species    int
	Threshold  float64
}

// WriteRunArtifacts writes the artifacts under baseDir/<run id> and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runFile), artifacts.Run); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), artifacts.Diagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, speciesFile), artifacts.SpeciesHistory); err != nil {
		return "", err
	}
	if err := writeSeries(filepath.Join(runDir, seriesFile), artifacts.Diagnostics); err != nil {
		return "", err
	}
	return runDir, nil
}

// ReadRunRecord loads run.json from an exported run directory.
func ReadRunRecord(runDir string) (model.RunRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(runDir, runFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode %s: %w", runFile, err)
	}
	return run, true, nil
}

// ReadSeries loads the fitness series CSV from an exported run directory.
func ReadSeries(runDir string) ([]SeriesPoint, bool, error) {
	file, err := os.Open(filepath.Join(runDir, seriesFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []SeriesPoint{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != len(seriesHeader) {
		return nil, false, fmt.Errorf("fitness series header must have %d columns", len(seriesHeader))
	}

	series := make([]SeriesPoint, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		point, err := parseSeriesRow(record)
		if err != nil {
			return nil, false, err
		}
		series = append(series, point)
	}
	return series, true, nil
}

func parseSeriesRow(record []string) (SeriesPoint, error) {
	var (
		point SeriesPoint
		err   error
	)
	if point.Generation, err = strconv.Atoi(record[0]); err != nil {
		return SeriesPoint{}, fmt.Errorf("generation: %w", err)
	}
	if point.BestScore, err = strconv.ParseFloat(record[1], 64); err != nil {
		return SeriesPoint{}, fmt.Errorf("best_score: %w", err)
	}
	if point.MeanScore, err = strconv.ParseFloat(record[2], 64); err != nil {
		return SeriesPoint{}, fmt.Errorf("mean_score: %w", err)
	}
	if point.Species, err = strconv.Atoi(record[3]); err != nil {
		return SeriesPoint{}, fmt.Errorf("species: %w", err)
	}
	if point.Threshold, err = strconv.ParseFloat(record[4], 64); err != nil {
		return SeriesPoint{}, fmt.Errorf("threshold: %w", err)
	}
	return point, nil
}

func writeSeries(path string, diagnostics []model.GenerationDiagnostics) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(seriesHeader); err != nil {
		return err
	}
	for _, d := range diagnostics {
		if err := writer.Write([]string{
			strconv.Itoa(d.Generation),
			strconv.FormatFloat(d.BestScore, 'f', -1, 64),
			strconv.FormatFloat(d.MeanScore, 'f', -1, 64),
			strconv.Itoa(d.SpeciesCount),
			strconv.FormatFloat(d.SpeciationThreshold, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
