package checkpoint

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/dispatch-labs/rca-cli/internal/model"
)

// ReadResults loads every analysis result from the checkpoint log at
// path, skipping corrupt lines. Intended for small-scale report mode;
// large runs should stay on Scan or ReadResultsPage.
func ReadResults(path string) ([]model.AnalysisResult, error) {
	var results []model.AnalysisResult

	err := Scan(path, func(line []byte) error {
		var result model.AnalysisResult
		if err := json.Unmarshal(line, &result); err != nil {
			zap.L().Warn("checkpoint: skipping corrupt result line",
				zap.String("path", path))
			return nil
		}
		results = append(results, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// ReadResultsPage streams the checkpoint log and returns up to limit
// decodable results starting at offset (both counted over valid records,
// in append order). Corrupt lines are skipped.
func ReadResultsPage(path string, offset, limit int) ([]model.AnalysisResult, error) {
	if limit <= 0 {
		return []model.AnalysisResult{}, nil
	}

	results := make([]model.AnalysisResult, 0, limit)
	seen := 0

	err := Scan(path, func(line []byte) error {
		if len(results) >= limit {
			return nil
		}
		var result model.AnalysisResult
		if err := json.Unmarshal(line, &result); err != nil {
			return nil
		}
		if seen >= offset {
			results = append(results, result)
		}
		seen++
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}
