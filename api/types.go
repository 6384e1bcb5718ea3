// Package api holds the wire types shared by the HTTP server and the
// client SDK. All bodies are JSON; audio travels base64-encoded.
package api

// InterviewConfig is fixed at onboarding completion and immutable for the
// lifetime of a session.
type InterviewConfig struct {
	UILanguage        string   `json:"uiLanguage"`
	InterviewLanguage string   `json:"interviewLanguage"`
	Track             string   `json:"track"`
	Seniority         string   `json:"seniority"`
	Stacks            []string `json:"stacks"`
	Style             string   `json:"style"`
	Duration          int      `json:"duration"`
	JobDescription    string   `json:"jobDescription,omitempty"`
	Plan              string   `json:"plan"`
}

type InterviewQuestion struct {
	ID         string  `json:"id"`
	Section    string  `json:"section"`
	Difficulty float64 `json:"difficulty"`
	Prompt     string  `json:"prompt"`
}

// InterviewPlan is generated once per session and read-only afterwards.
type InterviewPlan struct {
	RoleTitleGuess string              `json:"roleTitleGuess"`
	SeniorityGuess string              `json:"seniorityGuess"`
	MustHaveSkills []string            `json:"mustHaveSkills"`
	Blueprint      map[string]float64  `json:"blueprint"`
	Questions      []InterviewQuestion `json:"questions"`
}

type AnswerScores struct {
	Communication  float64 `json:"communication"`
	Technical      float64 `json:"technical"`
	ProblemSolving float64 `json:"problemSolving"`
	Presence       float64 `json:"presence"`
}

// AnswerEvaluation is the scored assessment of a single spoken answer.
type AnswerEvaluation struct {
	Scores           AnswerScores `json:"scores"`
	Strengths        []string     `json:"strengths"`
	Improvements     []string     `json:"improvements"`
	FollowUpNeeded   bool         `json:"followUpNeeded"`
	FollowUpQuestion *string      `json:"followUpQuestion"`
	Transcript       string       `json:"transcript"`
}

// HistoryItem is appended exactly once per answered question and never
// mutated afterwards.
type HistoryItem struct {
	QuestionID string           `json:"questionId"`
	Question   string           `json:"question"`
	Section    string           `json:"section"`
	Difficulty float64          `json:"difficulty"`
	Evaluation AnswerEvaluation `json:"evaluation"`
}

type PlanDay struct {
	Day  int    `json:"day"`
	Task string `json:"task"`
}

// FinalReport is produced at most once per session.
type FinalReport struct {
	OverallScore  float64             `json:"overallScore"`
	LevelEstimate string              `json:"levelEstimate"`
	JobMatch      map[string][]string `json:"jobMatch"`
	Feedback      map[string][]string `json:"feedback"`
	Plan7Days     []PlanDay           `json:"plan7Days"`
	ScoresSummary *AnswerScores       `json:"scoresSummary,omitempty"`
}

type InterviewSummary struct {
	ID    string  `json:"id"`
	Date  string  `json:"date"`
	Role  string  `json:"role"`
	Score float64 `json:"score"`
	Style string  `json:"style"`
	Track string  `json:"track"`
}

type UserProfile struct {
	UID        string             `json:"uid"`
	Name       string             `json:"name"`
	Email      string             `json:"email"`
	Avatar     string             `json:"avatar,omitempty"`
	Credits    int                `json:"credits"`
	Interviews []InterviewSummary `json:"interviews"`
}

type SessionStartResponse struct {
	SessionID  string         `json:"sessionId"`
	Plan       *InterviewPlan `json:"plan"`
	PlanStatus string         `json:"plan_status"`
	Credits    int            `json:"credits"`
}

type PlanGenerateResponse struct {
	SessionID    string         `json:"sessionId"`
	Plan         *InterviewPlan `json:"plan"`
	PlanStatus   string         `json:"plan_status"`
	ProviderUsed string         `json:"provider_used"`
	ModelUsed    string         `json:"model_used"`
	LatencyMS    int            `json:"latency_ms"`
	TokensUsed   *int           `json:"tokens_used,omitempty"`
	Credits      int            `json:"credits"`
}

type NameExtractRequest struct {
	AudioBase64 string `json:"audioBase64"`
	MimeType    string `json:"mimeType"`
	UILanguage  string `json:"uiLanguage"`
}

type NameExtractResponse struct {
	Name string `json:"name"`
}

type EvaluateAudioRequest struct {
	Config        InterviewConfig `json:"config"`
	Question      string          `json:"question"`
	AudioBase64   string          `json:"audioBase64"`
	MimeType      string          `json:"mimeType"`
	ConfirmedName string          `json:"confirmedName,omitempty"`
}

type FinalReportRequest struct {
	Config  InterviewConfig `json:"config"`
	History []HistoryItem   `json:"history"`
}

type TTSRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	VoiceID  string `json:"voiceId,omitempty"`
}

type TTSResponse struct {
	AudioBase64 string `json:"audioBase64"`
	MimeType    string `json:"mimeType"`
}

type SessionFinishRequest struct {
	Report FinalReport    `json:"report"`
	Meta   map[string]any `json:"meta"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type CreditsResponse struct {
	Credits int `json:"credits"`
}
