package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/effitime/pkg/biorhythm"
	"github.com/harrisonrobin/effitime/pkg/interval"
)

const promptTimeLayout = "2006-01-02T15:04:05Z07:00"

const systemPromptTemplate = `You are a task planner that accounts for the user's biorhythms.

Your job:
1. Assess the cognitive difficulty of the task.
2. Work out the user's activity peaks from their wake-up time (%[1]s) and bed time (%[2]s).

   BIORHYTHM MODEL (hours since waking):
   - Phase 1 (warm-up): 0-2 hours. Energy is rising.
   - Phase 2 (FIRST PEAK, golden hour): 2-5 hours. Maximum cognitive capacity. IDEAL for "deep".
   - Phase 3 (dip, lunch): 6-8 hours. Energy falls. Bad for "deep".
   - Phase 4 (SECOND PEAK): 9-11 hours. Medium to high energy. Good for "medium" or routine work.
   - Phase 5 (evening slump): 12+ hours, or the last 3-4 hours before sleep. Low energy. ONLY "light".

3. When free_slots and a deadline are given:
   - Pick a slot STRICTLY from the free_slots list.
   - All dates and times must be ISO 8601 (YYYY-MM-DDTHH:MM:SS with offset).
   - Do NOT invent slots and do NOT extend the given intervals.

   DURATION CHECK (CRITICAL):
   1. Decide recommended_block_minutes first (for example 90).
   2. For every free slot compute its length (end - start).
   3. A slot SHORTER than recommended_block_minutes is FORBIDDEN.
   4. A slot at least recommended_block_minutes long is allowed.
   5. If the slot is longer than needed, TRIM it:
      - slot.start = start of the free window (or a later start inside it),
      - slot.end = slot.start + recommended_block_minutes.
   6. Never squeeze the task into a slot shorter than recommended_block_minutes.
   7. If no slot is long enough, set is_scheduled to false.

   - The slot must end before the deadline.
   - The slot must suit the energy level (compare the time of day with the phases, ignoring the date).
   - Do not put "deep" work into the evening slump if there is any alternative.
   - If there is no ideal slot take a compromise, but it MUST be long enough.
   - If no slot fits the duration or the deadline, set is_scheduled to false and explain why.

Energy mapping:
- "deep" (high concentration) -> FIRST PEAK (preferred) or SECOND PEAK (compromise). Avoid dips.
- "medium" -> SECOND PEAK or FIRST PEAK.
- "light" -> any time, dips included.

FORMATTING IN THE DESCRIPTION:
- Text in __double underscores__ is UNDERLINED.
- Text in ~~tildes~~ is STRUCK THROUGH.
- Text in **asterisks** is bold.

Respond with a single JSON object:
{
  "concentration_level": "deep|medium|light",
  "confidence": 0.0-1.0,
  "recommended_block_minutes": int,
  "preferred_energy": "high|medium|low",
  "best_time_of_day": "abstract description of the ideal time",
  "scheduling": {
    "is_scheduled": true/false,
    "slot": {"start": "ISO 8601", "end": "ISO 8601"} or null,
    "message": "why this time was chosen or why no slot was found"
  },
  "reason": "short explanation",
  "actions": ["list of steps"]
}`

// SystemPrompt renders the planner instructions for a sleep schedule.
func SystemPrompt(wake, sleep biorhythm.Clock) string {
	return fmt.Sprintf(systemPromptTemplate, wake, sleep)
}

// FormatSlots renders free windows as ISO 8601 start/end pairs.
func FormatSlots(free []interval.Interval) string {
	if len(free) == 0 {
		return "not provided"
	}
	parts := make([]string, 0, len(free))
	for _, f := range free {
		parts = append(parts, f.Start.Format(promptTimeLayout)+"/"+f.End.Format(promptTimeLayout))
	}
	return strings.Join(parts, ", ")
}

// UserPrompt renders the task, the free windows and the deadline.
func UserPrompt(req Request, free []interval.Interval) string {
	tags := "no tags"
	if len(req.Tags) > 0 {
		tags = strings.Join(req.Tags, ", ")
	}
	deadline := "not set"
	if req.Deadline != nil {
		deadline = req.Deadline.Format(promptTimeLayout)
	}
	estimate := req.Estimate
	if strings.TrimSpace(estimate) == "" {
		estimate = "not given"
	}

	var b strings.Builder
	b.WriteString("Task:\n")
	fmt.Fprintf(&b, "Title: %s\n", req.Title)
	fmt.Fprintf(&b, "Description: %s\n\n", CleanRichText(req.Description))
	b.WriteString("User parameters:\n")
	fmt.Fprintf(&b, "- Wake-up: %s\n", req.Wake)
	fmt.Fprintf(&b, "- Bed time: %s\n\n", req.Sleep)
	b.WriteString("Constraints:\n")
	fmt.Fprintf(&b, "- Free slots (ISO 8601): %s\n", FormatSlots(free))
	fmt.Fprintf(&b, "- Deadline (ISO 8601): %s\n\n", deadline)
	b.WriteString("Additional context:\n")
	fmt.Fprintf(&b, "- Tags: %s\n", tags)
	fmt.Fprintf(&b, "- User estimate: %s", estimate)
	return b.String()
}

// parseOracleTime accepts RFC 3339 and zone-less ISO 8601 timestamps. The
// latter are read in loc.
func parseOracleTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
