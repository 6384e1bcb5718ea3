package features

import (
	"fmt"
	"regexp"
	"strings"

	"entrevia/api"
)

// BuildEvalPrompt asks for a scored assessment of one spoken answer. When a
// transcript is already available (text-only provider fallback) the model is
// told to reuse it instead of transcribing.
func BuildEvalPrompt(config api.InterviewConfig, question, confirmedName, transcript string) string {
	if confirmedName == "" {
		confirmedName = "candidato"
	}

	tasks := fmt.Sprintf(`Tarefas:
1) Transcreva a resposta do audio.
2) Avalie a resposta do %s em: communication, technical, problemSolving, presence (0-10).
3) Liste 2-5 strengths e 2-5 improvements.
4) Se a resposta foi rasa, indique followUpNeeded=true e proponha followUpQuestion (1 pergunta objetiva).
`, confirmedName)
	transcriptBlock := ""
	if transcript != "" {
		tasks = fmt.Sprintf(`Tarefas:
1) Use a transcricao fornecida (nao transcreva novamente).
2) Avalie a resposta do %s em: communication, technical, problemSolving, presence (0-10).
3) Liste 2-5 strengths e 2-5 improvements.
4) Se a resposta foi rasa, indique followUpNeeded=true e proponha followUpQuestion (1 pergunta objetiva).
`, confirmedName)
		transcriptBlock = fmt.Sprintf(`
Transcricao fornecida (copie exatamente para o campo transcript):
"""%s"""
`, transcript)
	}

	return fmt.Sprintf(`Voce e um entrevistador tecnico.
Pergunta: %s
Senioridade alvo: %s
Trilha: %s
Stacks: %s
Idioma da entrevista: %s

%s%s
Formato EXATO:
{
  "transcript": "string",
  "scores": {"communication": 0, "technical": 0, "problemSolving": 0, "presence": 0},
  "strengths": ["..."],
  "improvements": ["..."],
  "followUpNeeded": false,
  "followUpQuestion": null
}

Regras:
- Retorne somente JSON valido, sem markdown e sem texto extra.
- Sempre inclua o campo transcript (use \n para quebras de linha).
- Se followUpNeeded=false, followUpQuestion deve ser null.
`, question, config.Seniority, config.Track, strings.Join(config.Stacks, ", "),
		config.InterviewLanguage, tasks, transcriptBlock)
}

var listSplitPattern = regexp.MustCompile(`[;\n]`)

// NormalizeEvalPayload coerces the many shapes models produce into a single
// AnswerEvaluation: alternate score keys, strings where lists belong, missing
// transcript fields with an optional fallback, and snake_case follow-ups.
func NormalizeEvalPayload(payload map[string]any, transcriptFallback string) api.AnswerEvaluation {
	out := api.AnswerEvaluation{
		Strengths:    []string{},
		Improvements: []string{},
	}
	if payload == nil {
		out.Transcript = transcriptFallback
		return out
	}

	scores, ok := payload["scores"].(map[string]any)
	if !ok {
		scores = map[string]any{}
		for _, key := range []string{"communication", "technical", "problemSolving", "presence"} {
			if v, found := payload[key]; found {
				scores[key] = v
			}
		}
	}
	if _, found := scores["problemSolving"]; !found {
		for _, alt := range []string{"problem_solving", "problem_solving_score", "problemSolvingScore", "problem solving"} {
			if v, ok := scores[alt]; ok {
				scores["problemSolving"] = v
				break
			}
		}
		if _, found := scores["problemSolving"]; !found {
			if v, ok := payload["problem_solving"]; ok {
				scores["problemSolving"] = v
			}
		}
	}
	out.Scores = api.AnswerScores{
		Communication:  asFloat(scores["communication"]),
		Technical:      asFloat(scores["technical"]),
		ProblemSolving: asFloat(scores["problemSolving"]),
		Presence:       asFloat(scores["presence"]),
	}

	transcript := firstString(payload, "transcript", "transcricao", "transcrição", "transcription")
	if transcript == "" {
		transcript = transcriptFallback
	}
	out.Transcript = transcript

	out.Strengths = normalizeList(payload["strengths"])
	out.Improvements = normalizeList(payload["improvements"])

	if needed, ok := payload["followUpNeeded"].(bool); ok {
		out.FollowUpNeeded = needed
	} else {
		for _, alt := range []string{"followupNeeded", "follow_up_needed"} {
			if v, ok := payload[alt].(bool); ok {
				out.FollowUpNeeded = v
				break
			}
		}
	}
	question := firstString(payload, "followUpQuestion", "followupQuestion", "follow_up_question")
	if question != "" {
		out.FollowUpQuestion = &question
	}

	return out
}

func normalizeList(v any) []string {
	switch val := v.(type) {
	case []any:
		items := asStringSlice(val)
		if items == nil {
			return []string{}
		}
		return items
	case string:
		var items []string
		for _, part := range listSplitPattern.Split(val, -1) {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		if items == nil {
			return []string{}
		}
		return items
	default:
		return []string{}
	}
}
