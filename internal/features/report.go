package features

import (
	"encoding/json"
	"fmt"
	"math"

	"entrevia/api"
)

func BuildReportPrompt(config api.InterviewConfig, history []api.HistoryItem) string {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		historyJSON = []byte("[]")
	}
	return fmt.Sprintf(`Analise o historico completo da entrevista e gere um relatorio final.

Config: %s
Historico: %s

Retorne somente JSON, sem markdown e sem texto extra. Campos:
- overallScore (0-10)
- levelEstimate (string)
- jobMatch: { covered: [..], gaps: [..] }
- feedback: { posture: [..], communication: [..], technical: [..], language: [..] }
- plan7Days: lista de 7 itens (day: 1-7, task: string)
`, configJSON(config), string(historyJSON))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SummarizeScores averages each score dimension across the answered
// questions, then averages those means into the overall score. Both are
// rounded to two decimals. Returns nil when no answer carried scores.
func SummarizeScores(history []api.HistoryItem) (*api.AnswerScores, float64) {
	if len(history) == 0 {
		return nil, 0
	}

	var sums api.AnswerScores
	count := 0
	for _, item := range history {
		s := item.Evaluation.Scores
		sums.Communication += s.Communication
		sums.Technical += s.Technical
		sums.ProblemSolving += s.ProblemSolving
		sums.Presence += s.Presence
		count++
	}
	if count == 0 {
		return nil, 0
	}

	avg := api.AnswerScores{
		Communication:  round2(sums.Communication / float64(count)),
		Technical:      round2(sums.Technical / float64(count)),
		ProblemSolving: round2(sums.ProblemSolving / float64(count)),
		Presence:       round2(sums.Presence / float64(count)),
	}
	overall := round2((avg.Communication + avg.Technical + avg.ProblemSolving + avg.Presence) / 4)
	return &avg, overall
}
