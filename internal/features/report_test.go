package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrevia/api"
)

func historyWith(scores ...api.AnswerScores) []api.HistoryItem {
	items := make([]api.HistoryItem, 0, len(scores))
	for i, s := range scores {
		items = append(items, api.HistoryItem{
			QuestionID: "q" + string(rune('1'+i)),
			Evaluation: api.AnswerEvaluation{Scores: s},
		})
	}
	return items
}

func TestSummarizeScores(t *testing.T) {
	history := historyWith(
		api.AnswerScores{Communication: 7, Technical: 8, ProblemSolving: 6, Presence: 9},
		api.AnswerScores{Communication: 8, Technical: 7, ProblemSolving: 7, Presence: 8},
	)

	summary, overall := SummarizeScores(history)
	require.NotNil(t, summary)
	assert.Equal(t, 7.5, summary.Communication)
	assert.Equal(t, 7.5, summary.Technical)
	assert.Equal(t, 6.5, summary.ProblemSolving)
	assert.Equal(t, 8.5, summary.Presence)
	assert.Equal(t, 7.5, overall)
}

func TestSummarizeScoresRounding(t *testing.T) {
	history := historyWith(
		api.AnswerScores{Communication: 7, Technical: 7, ProblemSolving: 7, Presence: 7},
		api.AnswerScores{Communication: 8, Technical: 8, ProblemSolving: 8, Presence: 8},
		api.AnswerScores{Communication: 8, Technical: 8, ProblemSolving: 8, Presence: 8},
	)

	summary, overall := SummarizeScores(history)
	require.NotNil(t, summary)
	assert.Equal(t, 7.67, summary.Communication)
	assert.Equal(t, 7.67, overall)
}

func TestSummarizeScoresEmptyHistory(t *testing.T) {
	summary, overall := SummarizeScores(nil)
	assert.Nil(t, summary)
	assert.Equal(t, float64(0), overall)
}

func TestBuildReportPromptEmbedsHistory(t *testing.T) {
	config := api.InterviewConfig{Track: "backend"}
	history := historyWith(api.AnswerScores{Communication: 7})

	prompt := BuildReportPrompt(config, history)
	assert.Contains(t, prompt, "overallScore")
	assert.Contains(t, prompt, "plan7Days")
	assert.Contains(t, prompt, `"communication":7`)
}
