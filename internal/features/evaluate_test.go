package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrevia/api"
)

func TestNormalizeEvalPayloadCanonicalShape(t *testing.T) {
	payload := decodePayload(t, `{
		"transcript": "Eu usaria um cache",
		"scores": {"communication": 7, "technical": 8, "problemSolving": 6, "presence": 7},
		"strengths": ["clareza"],
		"improvements": ["profundidade"],
		"followUpNeeded": true,
		"followUpQuestion": "Como voce invalidaria o cache?"
	}`)

	eval := NormalizeEvalPayload(payload, "")
	assert.Equal(t, "Eu usaria um cache", eval.Transcript)
	assert.Equal(t, float64(8), eval.Scores.Technical)
	assert.True(t, eval.FollowUpNeeded)
	require.NotNil(t, eval.FollowUpQuestion)
	assert.Equal(t, "Como voce invalidaria o cache?", *eval.FollowUpQuestion)
}

func TestNormalizeEvalPayloadAlternateShapes(t *testing.T) {
	payload := decodePayload(t, `{
		"transcricao": "resposta",
		"communication": 5,
		"technical": 6,
		"problem_solving": 7,
		"presence": 4,
		"strengths": "objetividade; bons exemplos\ncalma",
		"follow_up_needed": true,
		"follow_up_question": "Detalhe o indice"
	}`)

	eval := NormalizeEvalPayload(payload, "")
	assert.Equal(t, "resposta", eval.Transcript)
	assert.Equal(t, float64(7), eval.Scores.ProblemSolving, "snake_case score is mapped")
	assert.Equal(t, []string{"objetividade", "bons exemplos", "calma"}, eval.Strengths)
	assert.Equal(t, []string{}, eval.Improvements, "missing list becomes empty")
	assert.True(t, eval.FollowUpNeeded)
	require.NotNil(t, eval.FollowUpQuestion)
}

func TestNormalizeEvalPayloadScoreKeyVariants(t *testing.T) {
	payload := decodePayload(t, `{
		"scores": {"communication": 6, "technical": 6, "problem_solving_score": 8, "presence": 6}
	}`)
	eval := NormalizeEvalPayload(payload, "")
	assert.Equal(t, float64(8), eval.Scores.ProblemSolving)
}

func TestNormalizeEvalPayloadTranscriptFallback(t *testing.T) {
	payload := decodePayload(t, `{"scores": {"communication": 5}}`)
	eval := NormalizeEvalPayload(payload, "transcricao externa")
	assert.Equal(t, "transcricao externa", eval.Transcript)
	assert.Equal(t, float64(0), eval.Scores.Presence, "missing dimensions default to zero")

	eval = NormalizeEvalPayload(nil, "apenas fallback")
	assert.Equal(t, "apenas fallback", eval.Transcript)
}

func TestBuildEvalPromptWithTranscript(t *testing.T) {
	config := api.InterviewConfig{Seniority: "senior", Track: "backend", Stacks: []string{"go"}, InterviewLanguage: "pt-BR"}

	fresh := BuildEvalPrompt(config, "O que e um deadlock?", "Ana", "")
	assert.Contains(t, fresh, "Transcreva a resposta do audio")
	assert.Contains(t, fresh, "Ana")

	withTranscript := BuildEvalPrompt(config, "O que e um deadlock?", "Ana", "Deadlock e quando...")
	assert.Contains(t, withTranscript, "nao transcreva novamente")
	assert.Contains(t, withTranscript, "Deadlock e quando...")
}
