package evolution

import "execline/internal/config"

// Stage is the classification of a window.
type Stage struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	MinIndex float64 `json:"minIndex"`
}

func stageOf(s config.Stage) Stage {
	return Stage{ID: s.ID, Label: s.Label, MinIndex: s.MinIndex}
}

// ClassifyStage walks the ordered stage table from the highest stage down and
// returns the first one whose index gate and metric thresholds all hold. The
// lowest stage is the default.
func ClassifyStage(stages []config.Stage, m WindowMetrics, index float64) Stage {
	for i := len(stages) - 1; i > 0; i-- {
		if stageSatisfied(stages[i], m, index) {
			return stageOf(stages[i])
		}
	}
	if len(stages) == 0 {
		return Stage{}
	}
	return stageOf(stages[0])
}

func stageSatisfied(s config.Stage, m WindowMetrics, index float64) bool {
	if index < s.MinIndex {
		return false
	}
	for _, th := range s.Thresholds {
		v := m.Value(th.Metric)
		switch th.Operator {
		case "lte":
			if v > th.Value {
				return false
			}
		default:
			if v < th.Value {
				return false
			}
		}
	}
	return true
}

// NextStage returns the stage after id, or nil at the top.
func NextStage(stages []config.Stage, id string) *Stage {
	for i, s := range stages {
		if s.ID == id && i+1 < len(stages) {
			next := stageOf(stages[i+1])
			return &next
		}
	}
	return nil
}
