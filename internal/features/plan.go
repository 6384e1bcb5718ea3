package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"entrevia/api"
)

// Limits holds the product rules around session duration and credits.
type Limits struct {
	MinMinutes      int
	MaxMinutesFree  int
	MaxMinutesPro   int
	InitialCredits  int
	AllowDevCredits bool
}

func ReadLimits() *Limits {
	v := viper.New()
	v.SetDefault("INTERVIEW_MIN_MINUTES", 10)
	v.SetDefault("INTERVIEW_MAX_MINUTES_FREE", 15)
	v.SetDefault("INTERVIEW_MAX_MINUTES_PRO", 25)
	v.SetDefault("DEFAULT_CREDITS", 3)
	_ = v.BindEnv("INTERVIEW_MIN_MINUTES")
	_ = v.BindEnv("INTERVIEW_MAX_MINUTES_FREE")
	_ = v.BindEnv("INTERVIEW_MAX_MINUTES_PRO")
	_ = v.BindEnv("FREE_TRIAL_CREDITS")
	_ = v.BindEnv("DEFAULT_CREDITS")
	_ = v.BindEnv("ALLOW_DEV_CREDITS")

	initial := v.GetInt("DEFAULT_CREDITS")
	if v.IsSet("FREE_TRIAL_CREDITS") {
		initial = v.GetInt("FREE_TRIAL_CREDITS")
	}

	return &Limits{
		MinMinutes:      v.GetInt("INTERVIEW_MIN_MINUTES"),
		MaxMinutesFree:  v.GetInt("INTERVIEW_MAX_MINUTES_FREE"),
		MaxMinutesPro:   v.GetInt("INTERVIEW_MAX_MINUTES_PRO"),
		InitialCredits:  initial,
		AllowDevCredits: v.GetBool("ALLOW_DEV_CREDITS"),
	}
}

func (l *Limits) maxMinutesForPlan(plan string) int {
	if strings.ToLower(plan) == "pro" {
		return l.MaxMinutesPro
	}
	return l.MaxMinutesFree
}

// ClampDuration forces the requested duration into the window allowed by the
// user's plan tier.
func (l *Limits) ClampDuration(config api.InterviewConfig) int {
	duration := config.Duration
	if maxMinutes := l.maxMinutesForPlan(config.Plan); duration > maxMinutes {
		duration = maxMinutes
	}
	if duration < l.MinMinutes {
		duration = l.MinMinutes
	}
	return duration
}

// NormalizeConfig returns the config with its duration clamped.
func (l *Limits) NormalizeConfig(config api.InterviewConfig) api.InterviewConfig {
	config.Duration = l.ClampDuration(config)
	return config
}

// QuestionBounds derives how many questions a plan should hold for the given
// duration: roughly one question per two minutes, kept inside [6, 14].
func QuestionBounds(durationMinutes int) (minQ, maxQ int) {
	avg := int(math.Round(float64(durationMinutes) / 2))
	if avg < 6 {
		avg = 6
	}
	if avg > 12 {
		avg = 12
	}
	minQ = avg - 1
	if minQ < 6 {
		minQ = 6
	}
	maxQ = avg + 1
	if maxQ > 14 {
		maxQ = 14
	}
	return minQ, maxQ
}

func configJSON(config api.InterviewConfig) string {
	data, err := json.Marshal(config)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// BuildPlanPrompt asks for a structured interview plan. Prompts stay in
// Portuguese, matching the product's primary market.
func (l *Limits) BuildPlanPrompt(config api.InterviewConfig) string {
	duration := l.ClampDuration(config)
	minQ, maxQ := QuestionBounds(duration)
	return fmt.Sprintf(`Voce e um entrevistador de engenharia de software.
Gere um plano de entrevista (estruturado) a partir da configuracao:

Config: %s

Regras:
- Idioma das perguntas: %s
- Se existir jobDescription, adapte perguntas para ela
- Dificuldade deve refletir %s
- blueprint: percentuais 0-100 para secoes (hr, technical, design, behavioral) somando ~100
- Duracao alvo: %d minutos
- questions: %d a %d perguntas, cada uma com id, section, difficulty (1-5), prompt
Retorne somente JSON, sem markdown e sem texto extra.
`, configJSON(config), config.InterviewLanguage, config.Seniority, duration, minQ, maxQ)
}

// BuildPlanPromptStrict is the retry prompt used when the first plan comes
// back malformed or too small.
func (l *Limits) BuildPlanPromptStrict(config api.InterviewConfig) string {
	duration := l.ClampDuration(config)
	minQ, maxQ := QuestionBounds(duration)
	return fmt.Sprintf(`Voce e um entrevistador de engenharia de software.
Retorne SOMENTE um JSON valido, sem markdown e sem texto extra.

Formato EXATO:
{
  "roleTitleGuess": "string",
  "seniorityGuess": "string",
  "mustHaveSkills": ["skill1","skill2"],
  "blueprint": {"hr": 20, "technical": 45, "design": 20, "behavioral": 15},
  "questions": [
    {"id":"q1","section":"technical","difficulty":3,"prompt":"..."}
  ]
}

Config: %s

Regras:
- Idioma das perguntas: %s
- Se existir jobDescription, adapte perguntas para ela
- Dificuldade deve refletir %s
- Duracao alvo: %d minutos
- questions: %d a %d perguntas
`, configJSON(config), config.InterviewLanguage, config.Seniority, duration, minQ, maxQ)
}

// ParsePlanPayload turns a loosely shaped model response into a plan,
// tolerating alternate keys and question entries that are bare strings.
// Returns nil when the payload cannot yield at least five questions.
func ParsePlanPayload(payload map[string]any, config api.InterviewConfig) *api.InterviewPlan {
	if payload == nil {
		return nil
	}
	if nested, ok := payload["plan"].(map[string]any); ok {
		payload = nested
	}

	rawQuestions, ok := payload["questions"].([]any)
	if !ok {
		return nil
	}

	var questions []api.InterviewQuestion
	for i, raw := range rawQuestions {
		switch q := raw.(type) {
		case map[string]any:
			prompt := firstString(q, "prompt", "question", "text")
			if prompt == "" {
				continue
			}
			id := firstString(q, "id")
			if id == "" {
				id = fmt.Sprintf("q%d", i+1)
			}
			section := firstString(q, "section")
			if section == "" {
				section = "technical"
			}
			difficulty := asFloat(q["difficulty"])
			if difficulty == 0 {
				difficulty = 3
			}
			questions = append(questions, api.InterviewQuestion{
				ID:         id,
				Section:    section,
				Difficulty: difficulty,
				Prompt:     prompt,
			})
		case string:
			questions = append(questions, api.InterviewQuestion{
				ID:         fmt.Sprintf("q%d", i+1),
				Section:    "technical",
				Difficulty: 3,
				Prompt:     q,
			})
		}
	}

	if len(questions) < 5 {
		return nil
	}

	roleTitle := firstString(payload, "roleTitleGuess", "role")
	if roleTitle == "" {
		roleTitle = config.Track
	}
	if roleTitle == "" {
		roleTitle = "Entrevista"
	}
	seniority := firstString(payload, "seniorityGuess")
	if seniority == "" {
		seniority = config.Seniority
	}

	mustHave := asStringSlice(payload["mustHaveSkills"])
	if len(mustHave) == 0 {
		mustHave = config.Stacks
	}
	if mustHave == nil {
		mustHave = []string{}
	}

	blueprint := asFloatMap(payload["blueprint"])
	if len(blueprint) == 0 {
		blueprint = map[string]float64{"hr": 15, "technical": 50, "design": 20, "behavioral": 15}
	}

	return &api.InterviewPlan{
		RoleTitleGuess: roleTitle,
		SeniorityGuess: seniority,
		MustHaveSkills: mustHave,
		Blueprint:      blueprint,
		Questions:      questions,
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asFloatMap(v any) map[string]float64 {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := map[string]float64{}
	for key, value := range raw {
		out[key] = asFloat(value)
	}
	return out
}
