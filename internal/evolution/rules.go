package evolution

import (
	"math"
	"sort"

	"execline/internal/config"
)

const (
	StatusOK       = "ok"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// Rule is one evaluated target. Contribution + Impact == Weight always holds.
type Rule struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	Hint         string  `json:"hint,omitempty"`
	Metric       string  `json:"metric"`
	Current      float64 `json:"current"`
	Target       float64 `json:"target"`
	Operator     string  `json:"operator" enum:"gte,lte"`
	Weight       int     `json:"weight"`
	Ratio        float64 `json:"ratio"`
	Status       string  `json:"status" enum:"ok,warning,critical"`
	Contribution int     `json:"contribution"`
	Impact       int     `json:"impact"`
}

// Evaluation is the scored rule table of one window.
type Evaluation struct {
	Rules         []Rule `json:"rules"`
	Index         int    `json:"index"`
	CriticalCount int    `json:"criticalCount"`
	WarningCount  int    `json:"warningCount"`
}

// EvaluateRule scores a single rule against the current metric value.
//
// The gte and lte ratios are intentionally asymmetric: a gte rule with a
// non-positive target always has ratio 1, and an lte rule only scales by
// target/max(1,current) once it has failed.
func EvaluateRule(r config.Rule, current float64) Rule {
	var passed bool
	var ratio float64
	switch r.Operator {
	case "lte":
		passed = current <= r.Target
		if passed {
			ratio = 1
		} else {
			ratio = clamp(r.Target/math.Max(1, current), 0, 1)
		}
	default:
		passed = current >= r.Target
		if r.Target <= 0 {
			ratio = 1
		} else {
			ratio = clamp(current/r.Target, 0, 1)
		}
	}
	status := StatusCritical
	switch {
	case passed:
		status = StatusOK
	case ratio >= 0.75:
		status = StatusWarning
	}
	contribution := int(math.Round(float64(r.Weight) * ratio))
	if contribution > r.Weight {
		contribution = r.Weight
	}
	impact := r.Weight - contribution
	if impact < 0 {
		impact = 0
	}
	return Rule{
		ID:           r.ID,
		Label:        r.Label,
		Hint:         r.Hint,
		Metric:       r.Metric,
		Current:      current,
		Target:       r.Target,
		Operator:     r.Operator,
		Weight:       r.Weight,
		Ratio:        math.Round(ratio*1000) / 1000,
		Status:       status,
		Contribution: contribution,
		Impact:       impact,
	}
}

// EvaluateRules scores every configured rule and sums the index.
func EvaluateRules(rules []config.Rule, m WindowMetrics) Evaluation {
	ev := Evaluation{Rules: make([]Rule, 0, len(rules))}
	sum := 0
	for _, r := range rules {
		res := EvaluateRule(r, m.Value(r.Metric))
		sum += res.Contribution
		switch res.Status {
		case StatusCritical:
			ev.CriticalCount++
		case StatusWarning:
			ev.WarningCount++
		}
		ev.Rules = append(ev.Rules, res)
	}
	ev.Index = int(clamp(float64(sum), 0, 100))
	return ev
}

// TopLeaks returns up to n rules with the highest impact, ties by weight.
func (e Evaluation) TopLeaks(n int) []Rule {
	leaks := make([]Rule, 0, len(e.Rules))
	for _, r := range e.Rules {
		if r.Impact > 0 {
			leaks = append(leaks, r)
		}
	}
	sort.SliceStable(leaks, func(i, j int) bool {
		if leaks[i].Impact != leaks[j].Impact {
			return leaks[i].Impact > leaks[j].Impact
		}
		return leaks[i].Weight > leaks[j].Weight
	})
	if len(leaks) > n {
		leaks = leaks[:n]
	}
	return leaks
}
