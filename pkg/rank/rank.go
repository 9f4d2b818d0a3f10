// Package rank orders a tiered task backlog into a single work queue.
//
// A task's score is importance × exp(-days until due) × tier weight. Overdue tasks have a
// negative day difference and so grow exponentially, which lets them dominate the queue.
package rank

import (
	"math"
	"sort"
	"time"

	"github.com/harrisonrobin/taskslot/pkg/model"
)

// maxExponent keeps exp() finite; exp(700) is still well inside float64 range even after
// doubling for importance, so Inf*0 can never turn a score into NaN.
const maxExponent = 700

// Scored is a task with its computed rank score.
type Scored struct {
	Task  model.Task
	Score float64
	Tier  int
}

// Score flattens tiers (ascending tier, then within-tier order) and scores every task.
func Score(tiers map[int][]model.Task, now time.Time) []Scored {
	keys := make([]int, 0, len(tiers))
	total := 0
	for tier, tasks := range tiers {
		if len(tasks) == 0 {
			continue
		}
		keys = append(keys, tier)
		total += len(tasks)
	}
	if total == 0 {
		return []Scored{}
	}
	sort.Ints(keys)
	minTier, maxTier := keys[0], keys[len(keys)-1]

	now = now.UTC()
	out := make([]Scored, 0, total)
	for _, tier := range keys {
		priority := PriorityScore(tier, minTier, maxTier)
		for _, task := range tiers[tier] {
			out = append(out, Scored{
				Task:  task,
				Tier:  tier,
				Score: ImportanceScore(task.Importance) * TimeScore(task.EffectiveDue(), now) * priority,
			})
		}
	}
	return out
}

// Rank scores the backlog and sorts it by descending score. Ties keep flattening order.
func Rank(tiers map[int][]model.Task, now time.Time) []Scored {
	scored := Score(tiers, now)
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// Queue returns the ranked tasks without their scores.
func Queue(tiers map[int][]model.Task, now time.Time) []model.Task {
	ranked := Rank(tiers, now)
	out := make([]model.Task, len(ranked))
	for i, s := range ranked {
		out[i] = s.Task
	}
	return out
}

func ImportanceScore(imp model.Importance) float64 {
	if imp == model.ImportanceHigh {
		return 2
	}
	return 1
}

// DayDifference is the whole number of days from now until due, rounded down.
func DayDifference(due, now time.Time) int {
	return int(math.Floor(due.Sub(now).Hours() / 24))
}

func TimeScore(due, now time.Time) float64 {
	exp := -float64(DayDifference(due, now))
	exp = math.Max(-maxExponent, math.Min(maxExponent, exp))
	return math.Exp(exp)
}

// PriorityScore maps the lowest tier to 1 and the highest to 0.
// With a single tier there is no range to normalise over and every task gets 1.
func PriorityScore(tier, minTier, maxTier int) float64 {
	if maxTier == minTier {
		return 1
	}
	return 1 - float64(tier-minTier)/float64(maxTier-minTier)
}
