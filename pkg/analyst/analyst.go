// Package analyst produces a best-effort productivity report. Unlike task
// scheduling it never fails: when the oracle cannot answer, a zero-score
// report explains why.
package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/effitime/pkg/lifecycle"
	"github.com/harrisonrobin/effitime/pkg/model"
	"github.com/harrisonrobin/effitime/pkg/oracle"
)

const systemPrompt = `You are a productivity and time management coach.
Analyse the user's weekly work statistics and give constructive feedback.

Input:
- Total number of tasks.
- Time spent in each status (how long tasks sat in "In work", "New", "Blocked" and so on).
- Average completion time (cycle time).
- Task categories.

Goals:
1. Find bottlenecks, for example tasks stuck in "Blocked" or "Review" for too long.
2. Judge effectiveness: does the time "In work" match the number of closed tasks?
3. Give 3-4 concrete tips to improve the process.
4. Be professional and supportive, but honest.

Respond with JSON:
{
  "score": int, // productivity score from 1 to 100
  "summary": "one or two sentence summary",
  "analysis": "detailed analysis in Markdown with headings, lists and bold text",
  "recommendations": ["tip 1", "tip 2", "tip 3"]
}`

// NoCategory labels tasks without a category.
const NoCategory = "No category"

// Input is the aggregated statistics sent to the oracle.
type Input struct {
	TotalTasks           int               `json:"total_tasks"`
	CompletedTasks       int               `json:"completed_tasks"`
	AvgCompletionHours   float64           `json:"avg_completion_time_hours"`
	StatusDistribution   map[string]string `json:"status_distribution"`
	CategoryDistribution map[string]int    `json:"category_distribution"`
}

// Report is the coach's answer.
type Report struct {
	Score           int      `json:"score"`
	Summary         string   `json:"summary"`
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations"`
	// Fallback is set when the oracle could not be used.
	Fallback bool `json:"fallback,omitempty"`
}

func (r *Report) validate() error {
	if r.Score < 0 || r.Score > 100 {
		return oracle.Invalid("score %d outside [0,100]", r.Score)
	}
	if strings.TrimSpace(r.Summary) == "" {
		return oracle.Invalid("empty summary")
	}
	return nil
}

// FallbackReport is returned when analysis is impossible.
func FallbackReport() Report {
	return Report{
		Score:           0,
		Summary:         "The analysis could not be completed.",
		Analysis:        "The analysis service is temporarily unavailable. Please try again later.",
		Recommendations: []string{},
		Fallback:        true,
	}
}

// Analyst asks the oracle for productivity reports.
type Analyst struct {
	oracle oracle.Oracle
	retry  oracle.Retry
	log    *zap.Logger
}

// New returns an Analyst that asks o with the given retry policy.
func New(o oracle.Oracle, log *zap.Logger, retry oracle.Retry) *Analyst {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("analyst")
	retry.Log = log
	return &Analyst{oracle: o, retry: retry, log: log}
}

// Analyze returns the oracle's report, or FallbackReport when every
// attempt failed.
func (a *Analyst) Analyze(ctx context.Context, in Input) Report {
	var report Report
	attempts, err := a.retry.Do(ctx, a.oracle, systemPrompt, UserPrompt(in), func(raw string) error {
		var r Report
		if err := oracle.Decode(raw, &r); err != nil {
			return err
		}
		if err := r.validate(); err != nil {
			return err
		}
		r.Fallback = false
		report = r
		return nil
	})
	if err != nil {
		a.log.Warn("productivity analysis degraded to fallback", zap.Int("attempts", attempts), zap.Error(err))
		return FallbackReport()
	}
	if report.Recommendations == nil {
		report.Recommendations = []string{}
	}
	return report
}

// UserPrompt renders the statistics for the coach.
func UserPrompt(in Input) string {
	statuses, _ := json.MarshalIndent(in.StatusDistribution, "", "  ")
	categories, _ := json.MarshalIndent(in.CategoryDistribution, "", "  ")

	var b strings.Builder
	b.WriteString("Analyse the following statistics for the week:\n\n")
	fmt.Fprintf(&b, "Total tasks: %d\n", in.TotalTasks)
	fmt.Fprintf(&b, "Completed: %d\n", in.CompletedTasks)
	fmt.Fprintf(&b, "Average completion time (cycle time): %.1f h\n\n", in.AvgCompletionHours)
	fmt.Fprintf(&b, "Time in statuses (total):\n%s\n\n", statuses)
	fmt.Fprintf(&b, "Task categories:\n%s", categories)
	return b.String()
}

// BuildInput aggregates the tasks created or finished since since.
// histories is keyed by task id.
func BuildInput(tasks []model.Task, histories map[string][]model.HistoryEvent, since, now time.Time) Input {
	in := Input{
		StatusDistribution:   map[string]string{},
		CategoryDistribution: map[string]int{},
	}

	var (
		active    []model.Task
		cycleSecs []float64
	)
	for _, t := range tasks {
		if !t.CreatedAt.Before(since) {
			in.TotalTasks++
			active = append(active, t)
			cat := t.Category
			if cat == "" {
				cat = NoCategory
			}
			in.CategoryDistribution[cat]++
		}
		if t.Status.Type == model.StatusCompleted && t.FinishedAt != nil && !t.FinishedAt.Before(since) {
			in.CompletedTasks++
			cycleSecs = append(cycleSecs, t.FinishedAt.Sub(t.CreatedAt).Seconds())
		}
	}
	if len(cycleSecs) > 0 {
		var sum float64
		for _, s := range cycleSecs {
			sum += s
		}
		in.AvgCompletionHours = sum / float64(len(cycleSecs)) / 3600
	}

	for name, secs := range lifecycle.Durations(active, histories, now) {
		in.StatusDistribution[name] = fmt.Sprintf("%.1f h", secs/3600)
	}
	return in
}
