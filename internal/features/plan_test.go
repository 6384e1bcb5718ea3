package features

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrevia/api"
)

func testLimits() *Limits {
	return &Limits{
		MinMinutes:     10,
		MaxMinutesFree: 15,
		MaxMinutesPro:  25,
		InitialCredits: 3,
	}
}

func TestClampDuration(t *testing.T) {
	limits := testLimits()

	cases := []struct {
		name     string
		plan     string
		duration int
		want     int
	}{
		{"free within range", "free", 12, 12},
		{"free above max", "free", 30, 15},
		{"free below min", "free", 5, 10},
		{"zero falls to min", "free", 0, 10},
		{"pro above free max", "pro", 20, 20},
		{"pro above pro max", "pro", 40, 25},
		{"unknown plan treated as free", "enterprise", 20, 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := limits.ClampDuration(api.InterviewConfig{Plan: tc.plan, Duration: tc.duration})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQuestionBounds(t *testing.T) {
	cases := []struct {
		duration int
		minQ     int
		maxQ     int
	}{
		{10, 6, 7},
		{12, 6, 7},
		{15, 7, 9},
		{20, 9, 11},
		{25, 11, 13},
		{40, 11, 13},
	}
	for _, tc := range cases {
		minQ, maxQ := QuestionBounds(tc.duration)
		assert.Equal(t, tc.minQ, minQ, "duration %d", tc.duration)
		assert.Equal(t, tc.maxQ, maxQ, "duration %d", tc.duration)
	}
}

func decodePayload(t *testing.T, raw string) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload
}

func TestParsePlanPayload(t *testing.T) {
	config := api.InterviewConfig{
		Track:     "backend",
		Seniority: "pleno",
		Stacks:    []string{"go", "postgres"},
	}

	payload := decodePayload(t, `{
		"roleTitleGuess": "Backend Engineer",
		"seniorityGuess": "pleno",
		"mustHaveSkills": ["go", "sql"],
		"blueprint": {"hr": 20, "technical": 50, "design": 15, "behavioral": 15},
		"questions": [
			{"id": "q1", "section": "hr", "difficulty": 2, "prompt": "Fale sobre voce"},
			{"question": "O que e um indice?", "section": "technical"},
			{"text": "Desenhe um rate limiter", "difficulty": "4"},
			"Explique goroutines",
			{"id": "q5", "prompt": "Conte um conflito de equipe"},
			{"section": "technical"}
		]
	}`)

	plan := ParsePlanPayload(payload, config)
	require.NotNil(t, plan)
	assert.Equal(t, "Backend Engineer", plan.RoleTitleGuess)
	require.Len(t, plan.Questions, 5, "the promptless entry is skipped")

	assert.Equal(t, "q1", plan.Questions[0].ID)
	assert.Equal(t, "q2", plan.Questions[1].ID, "missing id is positional")
	assert.Equal(t, "technical", plan.Questions[2].Section, "missing section defaults")
	assert.Equal(t, float64(4), plan.Questions[2].Difficulty, "string difficulty is coerced")
	assert.Equal(t, "Explique goroutines", plan.Questions[3].Prompt, "bare string becomes a question")
	assert.Equal(t, float64(3), plan.Questions[4].Difficulty, "missing difficulty defaults")
}

func TestParsePlanPayloadNestedPlanKey(t *testing.T) {
	payload := decodePayload(t, `{"plan": {"questions": [
		{"prompt": "a"}, {"prompt": "b"}, {"prompt": "c"}, {"prompt": "d"}, {"prompt": "e"}
	]}}`)

	plan := ParsePlanPayload(payload, api.InterviewConfig{Track: "frontend", Stacks: []string{"react"}})
	require.NotNil(t, plan)
	assert.Equal(t, "frontend", plan.RoleTitleGuess, "role falls back to the track")
	assert.Equal(t, []string{"react"}, plan.MustHaveSkills, "skills fall back to the stacks")
	assert.NotEmpty(t, plan.Blueprint, "blueprint falls back to the default split")
}

func TestParsePlanPayloadTooFewQuestions(t *testing.T) {
	payload := decodePayload(t, `{"questions": [{"prompt": "a"}, {"prompt": "b"}]}`)
	assert.Nil(t, ParsePlanPayload(payload, api.InterviewConfig{}))

	assert.Nil(t, ParsePlanPayload(decodePayload(t, `{"questions": "not a list"}`), api.InterviewConfig{}))
	assert.Nil(t, ParsePlanPayload(nil, api.InterviewConfig{}))
}

func TestBuildPlanPromptMentionsBounds(t *testing.T) {
	limits := testLimits()
	config := api.InterviewConfig{Plan: "free", Duration: 15, InterviewLanguage: "pt-BR", Seniority: "senior"}

	prompt := limits.BuildPlanPrompt(config)
	assert.Contains(t, prompt, "7 a 9 perguntas")
	assert.Contains(t, prompt, "pt-BR")

	strict := limits.BuildPlanPromptStrict(config)
	assert.Contains(t, strict, "SOMENTE um JSON valido")
	assert.Contains(t, strict, "7 a 9 perguntas")
}
