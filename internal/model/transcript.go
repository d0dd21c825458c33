package model

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
)

// Transcript is one call transcript to be analyzed. ID is stable across
// runs and is the sole resume key.
type Transcript struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Actor identifies who performed a timeline event.
type Actor string

const (
	ActorCustomer Actor = "Customer"
	ActorAgent    Actor = "Agent"
	ActorProvider Actor = "Provider"
	ActorSystem   Actor = "System"
)

// TimelineEvent is a single step in the reconstructed call timeline.
// Order values within one result are strictly increasing starting at 1.
type TimelineEvent struct {
	Order       int    `json:"order"`
	Actor       Actor  `json:"actor"`
	Description string `json:"description"`
}

// LoadTranscripts reads a JSON array of transcripts from path.
func LoadTranscripts(path string) ([]Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "model: read transcripts %s", path)
	}

	var transcripts []Transcript
	if err := json.Unmarshal(data, &transcripts); err != nil {
		return nil, eris.Wrapf(err, "model: parse transcripts %s", path)
	}

	return transcripts, nil
}
