package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSON_Plain(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON(`{"a":1}`))
}

func TestCleanJSON_MarkdownFence(t *testing.T) {
	text := "```json\n{\"a\": 1}\n```"
	assert.Equal(t, `{"a": 1}`, cleanJSON(text))
}

func TestCleanJSON_BareFence(t *testing.T) {
	text := "```\n{\"a\": 1}\n```"
	assert.Equal(t, `{"a": 1}`, cleanJSON(text))
}

func TestCleanJSON_SurroundingProse(t *testing.T) {
	text := `Here is the analysis you asked for: {"root_cause": "x"} Hope that helps!`
	assert.Equal(t, `{"root_cause": "x"}`, cleanJSON(text))
}

func TestCleanJSONArray_Fenced(t *testing.T) {
	text := "```json\n[{\"order\": 1}]\n```"
	assert.Equal(t, `[{"order": 1}]`, cleanJSONArray(text))
}

func TestCleanJSONArray_NoArray(t *testing.T) {
	// Nothing to extract; callers see the unusable text and fail to decode.
	assert.Equal(t, "no json here", cleanJSONArray("no json here"))
}
