// Package flow drives an interview session through its states, consuming a
// generated plan and accumulating per-question evaluations. It owns no I/O
// itself; playback, capture and backend calls are injected.
package flow

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"entrevia/api"
	"entrevia/pkg/media"
)

type State string

const (
	StateIdle           State = "idle"
	StateAsking         State = "asking"
	StateAwaitingAnswer State = "awaiting_answer"
	StateRecording      State = "recording"
	StateEvaluating     State = "evaluating"
	StateNextQuestion   State = "next_question"
	StateFinished       State = "finished"
)

var (
	ErrInvalidTransition = errors.New("flow: operation not allowed in current state")
	ErrNoQuestions       = errors.New("flow: plan has no questions")
)

// Evaluator scores one recorded answer.
type Evaluator interface {
	Evaluate(ctx context.Context, question api.InterviewQuestion, clip media.Clip) (*api.AnswerEvaluation, error)
}

// Reporter produces the final report from the accumulated history.
type Reporter interface {
	Report(ctx context.Context, history []api.HistoryItem) (*api.FinalReport, error)
}

// Speaker plays a question prompt, returning once playback finished. A nil
// Speaker skips playback entirely.
type Speaker interface {
	Speak(ctx context.Context, prompt string) error
}

// Controller is the session state machine. All methods are safe for
// concurrent use; evaluations are strictly serialized.
type Controller struct {
	evaluator Evaluator
	reporter  Reporter
	speaker   Speaker

	// advanceDelay is the pause before the next question is asked.
	advanceDelay time.Duration

	mu      sync.Mutex
	state   State
	active  []api.InterviewQuestion
	index   int
	history []api.HistoryItem
	report  *api.FinalReport
}

type Option func(*Controller)

func WithAdvanceDelay(d time.Duration) Option {
	return func(c *Controller) { c.advanceDelay = d }
}

// New builds a controller over the plan's questions, filtered to the chosen
// difficulty. A filter that matches nothing falls back to the full list.
func New(plan api.InterviewPlan, difficulty float64, evaluator Evaluator, reporter Reporter, speaker Speaker, opts ...Option) *Controller {
	c := &Controller{
		evaluator:    evaluator,
		reporter:     reporter,
		speaker:      speaker,
		advanceDelay: time.Second,
		state:        StateIdle,
		active:       filterQuestions(plan.Questions, difficulty),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func filterQuestions(questions []api.InterviewQuestion, difficulty float64) []api.InterviewQuestion {
	if difficulty <= 0 {
		return questions
	}
	var filtered []api.InterviewQuestion
	for _, q := range questions {
		if q.Difficulty == difficulty {
			filtered = append(filtered, q)
		}
	}
	if len(filtered) == 0 {
		return questions
	}
	return filtered
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentQuestion returns the question the session is on, or nil before the
// session begins or after it finishes.
func (c *Controller) CurrentQuestion() *api.InterviewQuestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle || c.state == StateFinished || c.index >= len(c.active) {
		return nil
	}
	q := c.active[c.index]
	return &q
}

// History returns a copy of the evaluations recorded so far.
func (c *Controller) History() []api.HistoryItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]api.HistoryItem, len(c.history))
	copy(out, c.history)
	return out
}

// Report returns the final report once the session has finished.
func (c *Controller) Report() *api.FinalReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report
}

// Begin starts the session: resolves the first question, plays it, and
// leaves the controller waiting for an answer.
func (c *Controller) Begin(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	if len(c.active) == 0 {
		c.mu.Unlock()
		return ErrNoQuestions
	}
	c.index = 0
	c.state = StateAsking
	prompt := c.active[0].Prompt
	c.mu.Unlock()

	c.speak(ctx, prompt)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAsking {
		c.state = StateAwaitingAnswer
	}
	return nil
}

// speak plays the prompt when a speaker is wired. Playback errors are
// swallowed and treated as "speech finished" so the flow never stalls.
func (c *Controller) speak(ctx context.Context, prompt string) {
	if c.speaker == nil {
		return
	}
	_ = c.speaker.Speak(ctx, prompt)
}

// StartRecording is the user action that begins capturing an answer. It is
// only legal while waiting for one, which also blocks re-recording while a
// previous evaluation is still outstanding.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingAnswer {
		return ErrInvalidTransition
	}
	c.state = StateRecording
	return nil
}

// SubmitAnswer completes the recording with the captured clip and runs the
// evaluation. On success the history grows by exactly one item and the
// session either advances or finishes. On failure the state reverts to
// awaiting_answer so the user can try again.
func (c *Controller) SubmitAnswer(ctx context.Context, clip media.Clip) error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.state = StateEvaluating
	question := c.active[c.index]
	c.mu.Unlock()

	evaluation, err := c.evaluator.Evaluate(ctx, question, clip)

	c.mu.Lock()
	if c.state != StateEvaluating {
		// The session was finished early while the request was in flight.
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.state = StateAwaitingAnswer
		c.mu.Unlock()
		return err
	}

	if len(c.history) < len(c.active) {
		c.history = append(c.history, api.HistoryItem{
			QuestionID: question.ID,
			Question:   question.Prompt,
			Section:    question.Section,
			Difficulty: question.Difficulty,
			Evaluation: *evaluation,
		})
	}

	if c.index >= len(c.active)-1 {
		c.mu.Unlock()
		return c.finish(ctx)
	}

	c.state = StateNextQuestion
	c.mu.Unlock()

	if c.advanceDelay > 0 {
		select {
		case <-time.After(c.advanceDelay):
		case <-ctx.Done():
		}
	}

	c.mu.Lock()
	if c.state != StateNextQuestion {
		c.mu.Unlock()
		return nil
	}
	if c.index < len(c.active)-1 {
		c.index++
	}
	c.state = StateAsking
	prompt := c.active[c.index].Prompt
	c.mu.Unlock()

	c.speak(ctx, prompt)

	c.mu.Lock()
	if c.state == StateAsking {
		c.state = StateAwaitingAnswer
	}
	c.mu.Unlock()
	return nil
}

// Finish ends the session early from any non-terminal state, generating the
// report from whatever history exists.
func (c *Controller) Finish(ctx context.Context) error {
	return c.finish(ctx)
}

// finish transitions to the terminal state and builds the report. The check
// and the transition share one critical section so concurrent finishes
// cannot both run the reporter.
func (c *Controller) finish(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateFinished {
		c.mu.Unlock()
		return nil
	}
	c.state = StateFinished
	history := make([]api.HistoryItem, len(c.history))
	copy(history, c.history)
	c.mu.Unlock()

	var report *api.FinalReport
	if c.reporter != nil {
		if remote, err := c.reporter.Report(ctx, history); err == nil {
			report = remote
		}
	}
	if report == nil {
		report = FallbackReport(history)
	}

	c.mu.Lock()
	c.report = report
	c.mu.Unlock()
	return nil
}

// Reset abandons the session and returns to idle with a fresh question set.
// An outstanding evaluation is not aborted; its result is discarded.
func (c *Controller) Reset(plan api.InterviewPlan, difficulty float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.active = filterQuestions(plan.Questions, difficulty)
	c.index = 0
	c.history = nil
	c.report = nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FallbackReport synthesizes a report locally when the backend cannot. The
// overall score is the mean of the per-item dimension means; feedback comes
// from the most recent strengths and improvements, capped at five each.
func FallbackReport(history []api.HistoryItem) *api.FinalReport {
	report := &api.FinalReport{
		LevelEstimate: "",
		JobMatch:      map[string][]string{},
		Feedback:      map[string][]string{},
		Plan7Days:     []api.PlanDay{},
	}
	if len(history) == 0 {
		report.OverallScore = 0
		return report
	}

	var sums api.AnswerScores
	var itemMeanSum float64
	for _, item := range history {
		s := item.Evaluation.Scores
		sums.Communication += s.Communication
		sums.Technical += s.Technical
		sums.ProblemSolving += s.ProblemSolving
		sums.Presence += s.Presence
		itemMeanSum += (s.Communication + s.Technical + s.ProblemSolving + s.Presence) / 4
	}
	n := float64(len(history))
	report.OverallScore = round2(itemMeanSum / n)
	report.ScoresSummary = &api.AnswerScores{
		Communication:  round2(sums.Communication / n),
		Technical:      round2(sums.Technical / n),
		ProblemSolving: round2(sums.ProblemSolving / n),
		Presence:       round2(sums.Presence / n),
	}

	report.Feedback["strengths"] = recentEntries(history, func(e api.AnswerEvaluation) []string { return e.Strengths })
	report.Feedback["improvements"] = recentEntries(history, func(e api.AnswerEvaluation) []string { return e.Improvements })
	return report
}

func recentEntries(history []api.HistoryItem, pick func(api.AnswerEvaluation) []string) []string {
	out := []string{}
	for i := len(history) - 1; i >= 0 && len(out) < 5; i-- {
		for _, entry := range pick(history[i].Evaluation) {
			if len(out) == 5 {
				break
			}
			out = append(out, entry)
		}
	}
	return out
}
