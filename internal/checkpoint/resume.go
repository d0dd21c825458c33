package checkpoint

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/dispatch-labs/rca-cli/internal/model"
)

// ProcessedIDs returns the set of transcript IDs already present in the
// checkpoint log at path. Corrupt lines are skipped with a warning; they
// never abort resume filtering.
func ProcessedIDs(path string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	err := Scan(path, func(line []byte) error {
		var record struct {
			TranscriptID string `json:"transcript_id"`
		}
		if err := json.Unmarshal(line, &record); err != nil || record.TranscriptID == "" {
			zap.L().Warn("checkpoint: skipping corrupt line during resume scan",
				zap.String("path", path))
			return nil
		}
		ids[record.TranscriptID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// FilterPending returns the transcripts whose IDs are not in processed,
// preserving input order.
func FilterPending(transcripts []model.Transcript, processed map[string]struct{}) []model.Transcript {
	pending := make([]model.Transcript, 0, len(transcripts))
	for _, t := range transcripts {
		if _, ok := processed[t.ID]; !ok {
			pending = append(pending, t)
		}
	}
	return pending
}

// ReadFailures loads every failure record from the failure log at path,
// skipping corrupt lines. Read only for diagnostics.
func ReadFailures(path string) ([]model.FailureRecord, error) {
	var failures []model.FailureRecord

	err := Scan(path, func(line []byte) error {
		var record model.FailureRecord
		if err := json.Unmarshal(line, &record); err != nil {
			zap.L().Warn("checkpoint: skipping corrupt failure line",
				zap.String("path", path))
			return nil
		}
		failures = append(failures, record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return failures, nil
}
