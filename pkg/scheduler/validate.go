package scheduler

import (
	"fmt"
	"time"

	"github.com/harrisonrobin/effitime/pkg/biorhythm"
	"github.com/harrisonrobin/effitime/pkg/conflict"
	"github.com/harrisonrobin/effitime/pkg/interval"
	"github.com/harrisonrobin/effitime/pkg/oracle"
)

const (
	minBlockMinutes = 5
	maxBlockMinutes = 240
)

// responseCheck rejects a decoded proposal that breaks the response
// contract. A rejection makes the attempt count as failed.
type responseCheck func(p *Proposal, loc *time.Location) error

var responseChecks = []responseCheck{
	checkConfidence,
	checkBlockMinutes,
	checkLevel,
	checkEnergy,
	parseSlot,
}

func checkConfidence(p *Proposal, _ *time.Location) error {
	if p.Confidence < 0 || p.Confidence > 1 {
		return oracle.Invalid("confidence %g outside [0,1]", p.Confidence)
	}
	return nil
}

func checkBlockMinutes(p *Proposal, _ *time.Location) error {
	if p.RecommendedBlockMinutes < minBlockMinutes || p.RecommendedBlockMinutes > maxBlockMinutes {
		return oracle.Invalid("recommended_block_minutes %d outside [%d,%d]",
			p.RecommendedBlockMinutes, minBlockMinutes, maxBlockMinutes)
	}
	return nil
}

func checkLevel(p *Proposal, _ *time.Location) error {
	level, err := biorhythm.ParseLevel(string(p.ConcentrationLevel))
	if err != nil {
		return oracle.Invalid("%v", err)
	}
	p.ConcentrationLevel = level
	return nil
}

func checkEnergy(p *Proposal, _ *time.Location) error {
	switch p.PreferredEnergy {
	case EnergyHigh, EnergyMedium, EnergyLow:
		return nil
	default:
		return oracle.Invalid("unknown preferred_energy %q", p.PreferredEnergy)
	}
}

func parseSlot(p *Proposal, loc *time.Location) error {
	s := p.Scheduling.Slot
	if s == nil {
		return nil
	}
	start, err := parseOracleTime(s.Start, loc)
	if err != nil {
		return oracle.Invalid("slot start: %v", err)
	}
	end, err := parseOracleTime(s.End, loc)
	if err != nil {
		return oracle.Invalid("slot end: %v", err)
	}
	p.Slot = &interval.Interval{Start: start, End: end}
	return nil
}

// decodeProposal parses raw oracle output and runs every response check
// left to right, stopping at the first rejection.
func decodeProposal(raw string, loc *time.Location) (*Proposal, error) {
	var p Proposal
	if err := oracle.Decode(raw, &p); err != nil {
		return nil, err
	}
	for _, check := range responseChecks {
		if err := check(&p, loc); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// slotEnv is the ground truth an oracle slot is checked against.
type slotEnv struct {
	now      time.Time
	deadline *time.Time
	free     []interval.Interval
	busy     []interval.Interval
	block    time.Duration
}

// slotCheck accepts a candidate slot or returns the reason it was refused.
type slotCheck func(slot interval.Interval, env slotEnv) (ok bool, reason string)

var slotChecks = []slotCheck{
	slotWellFormed,
	slotNotInPast,
	slotInsideFreeWindow,
	slotBeforeDeadline,
	slotNoConflict,
}

func slotWellFormed(slot interval.Interval, _ slotEnv) (bool, string) {
	if slot.Validate() != nil {
		return false, "the proposed slot has no length"
	}
	return true, ""
}

func slotNotInPast(slot interval.Interval, env slotEnv) (bool, string) {
	if slot.Start.Before(env.now) {
		return false, fmt.Sprintf("the proposed start %s is in the past", slot.Start.Format(time.RFC3339))
	}
	return true, ""
}

func slotInsideFreeWindow(slot interval.Interval, env slotEnv) (bool, string) {
	if _, ok := interval.ContainingWindow(slot, env.free); !ok {
		return false, fmt.Sprintf("the proposed slot %s is not inside any free window", slot)
	}
	return true, ""
}

func slotBeforeDeadline(slot interval.Interval, env slotEnv) (bool, string) {
	if env.deadline != nil && slot.End.After(*env.deadline) {
		return false, fmt.Sprintf("a %d minute block from %s ends after the deadline %s",
			int(env.block/time.Minute), slot.Start.Format(time.RFC3339), env.deadline.Format(time.RFC3339))
	}
	return true, ""
}

func slotNoConflict(slot interval.Interval, env slotEnv) (bool, string) {
	if res := conflict.CheckFit(slot, env.busy); !res.OK() {
		return false, res.Message
	}
	return true, ""
}

// reconcile clamps the oracle slot to start plus the recommended block and
// runs every slot check. It returns the accepted slot or the first reason
// for refusing it.
func reconcile(p *Proposal, env slotEnv) (interval.Interval, string) {
	if !p.Scheduling.IsScheduled || p.Slot == nil {
		msg := p.Scheduling.Message
		if msg == "" {
			msg = "no slot proposed"
		}
		return interval.Interval{}, "the oracle declined to schedule: " + msg
	}
	slot := interval.Interval{Start: p.Slot.Start, End: p.Slot.Start.Add(env.block)}
	for _, check := range slotChecks {
		if ok, reason := check(slot, env); !ok {
			return interval.Interval{}, reason
		}
	}
	return slot, ""
}
