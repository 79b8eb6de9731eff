package evolution

import (
	"fmt"
	"math"

	"execline/internal/config"
	"execline/internal/textsignal"
)

const (
	TrendSubindo = "subindo"
	TrendCaindo  = "caindo"
	TrendEstavel = "estavel"

	LevelAlto     = "alto"
	LevelMedio    = "medio"
	LevelBaixo    = "baixo"
	LevelSemDados = "sem_dados"

	AlignmentAlinhado      = "alinhado"
	AlignmentSuperestimado = "superestimado"
	AlignmentSubestimado   = "subestimado"
)

// Perception cross-checks the self-reported review text against the index.
type Perception struct {
	PerceivedLevel string `json:"perceivedLevel" enum:"alto,medio,baixo,sem_dados"`
	ObjectiveLevel string `json:"objectiveLevel" enum:"alto,medio,baixo"`
	Alignment      string `json:"alignment" enum:"alinhado,superestimado,subestimado,sem_dados"`
	HighHits       int    `json:"highHits"`
	LowHits        int    `json:"lowHits"`
}

// AnalysisInput pairs the current window with the immediately preceding one.
type AnalysisInput struct {
	WindowDays   int
	Current      WindowMetrics
	Previous     WindowMetrics
	CurrentEval  Evaluation
	PreviousEval Evaluation
	// ReviewText is the free text of the latest monthly review, if any.
	ReviewText string
}

// Analysis is the derived-on-read evolution state of a window.
type Analysis struct {
	Stage                            Stage      `json:"stage"`
	NextStage                        *Stage     `json:"nextStage,omitempty"`
	Index                            int        `json:"index"`
	PreviousIndex                    int        `json:"previousIndex"`
	DeltaIndex                       int        `json:"deltaIndex"`
	Trend                            string     `json:"trend" enum:"subindo,caindo,estavel"`
	BetterDays                       int        `json:"betterDays"`
	RequiredBetterDays               int        `json:"requiredBetterDays"`
	CriticalCount                    int        `json:"criticalCount"`
	WarningCount                     int        `json:"warningCount"`
	NextStageGateMet                 bool       `json:"nextStageGateMet"`
	PromotionCandidate               bool       `json:"promotionCandidate"`
	PromotionBlockedBySelfAssessment bool       `json:"promotionBlockedBySelfAssessment"`
	PromotionRecommended             bool       `json:"promotionRecommended"`
	RegressionRisk                   bool       `json:"regressionRisk"`
	Perception                       Perception `json:"perception"`
	Confidence                       int        `json:"confidence"`
	StageStability                   int        `json:"stageStability"`
	Narrative                        []string   `json:"narrative"`
}

// TrendOf maps an index delta to a trend label.
func TrendOf(delta int, threshold float64) string {
	switch {
	case float64(delta) >= threshold:
		return TrendSubindo
	case float64(delta) <= -threshold:
		return TrendCaindo
	default:
		return TrendEstavel
	}
}

// Analyze compares two consecutive windows. It is a pure function: the same
// snapshots always yield the same analysis.
func Analyze(cfg *config.Config, in AnalysisInput) Analysis {
	cur, prev := in.CurrentEval, in.PreviousEval
	a := Analysis{
		Index:         cur.Index,
		PreviousIndex: prev.Index,
		DeltaIndex:    cur.Index - prev.Index,
		CriticalCount: cur.CriticalCount,
		WarningCount:  cur.WarningCount,
	}
	a.Trend = TrendOf(a.DeltaIndex, cfg.Trend.Delta)
	a.Stage = ClassifyStage(cfg.Stages, in.Current, float64(cur.Index))
	a.NextStage = NextStage(cfg.Stages, a.Stage.ID)

	for i, score := range in.Current.DailyScores {
		baseline := prev.Index
		if i < len(in.Previous.DailyScores) {
			baseline = in.Previous.DailyScores[i]
		}
		if score > baseline {
			a.BetterDays++
		}
	}
	a.RequiredBetterDays = int(math.Ceil(cfg.Promotion.BetterDaysRatio * float64(in.WindowDays)))

	if a.NextStage != nil {
		a.NextStageGateMet = float64(cur.Index) >= a.NextStage.MinIndex-cfg.Promotion.IndexMargin &&
			cur.CriticalCount <= cfg.Promotion.MaxCritical
	}
	a.PromotionCandidate = a.NextStage != nil && a.NextStageGateMet &&
		a.BetterDays >= a.RequiredBetterDays && a.Trend != TrendCaindo

	counts := textsignal.Classify(cfg.Perception.HighTokens, cfg.Perception.LowTokens, in.ReviewText)
	a.Perception = perceive(cfg, counts, cur.Index)
	a.PromotionBlockedBySelfAssessment = !counts.Empty() && counts.Right >= max(2, counts.Left+1)
	a.PromotionRecommended = a.PromotionCandidate && !a.PromotionBlockedBySelfAssessment

	a.RegressionRisk = a.Stage.ID != firstStageID(cfg) && a.Trend == TrendCaindo &&
		lowDays(append(append([]int{}, in.Previous.DailyScores...), in.Current.DailyScores...), cfg) >= cfg.Regression.MinLowDays

	trendBonus := 0.0
	switch a.Trend {
	case TrendSubindo:
		trendBonus = 6
	case TrendCaindo:
		trendBonus = -6
	}
	a.Confidence = int(clampRound(100 - 16*float64(cur.CriticalCount) - 8*float64(cur.WarningCount) + trendBonus))
	a.StageStability = int(clampRound(100 - 2*stdDev(in.Current.DailyScores) -
		6*float64(cur.CriticalCount) - 3*float64(cur.WarningCount)))
	a.Narrative = narrate(a, cur)
	return a
}

func perceive(cfg *config.Config, c textsignal.Counts, index int) Perception {
	p := Perception{HighHits: c.Left, LowHits: c.Right}
	switch {
	case float64(index) >= cfg.Perception.HighIndex:
		p.ObjectiveLevel = LevelAlto
	case float64(index) <= cfg.Perception.LowIndex:
		p.ObjectiveLevel = LevelBaixo
	default:
		p.ObjectiveLevel = LevelMedio
	}
	if c.Empty() {
		p.PerceivedLevel = LevelSemDados
		p.Alignment = LevelSemDados
		return p
	}
	switch {
	case c.Left > c.Right:
		p.PerceivedLevel = LevelAlto
	case c.Right > c.Left:
		p.PerceivedLevel = LevelBaixo
	default:
		p.PerceivedLevel = LevelMedio
	}
	switch {
	case p.PerceivedLevel == LevelAlto && p.ObjectiveLevel == LevelBaixo:
		p.Alignment = AlignmentSuperestimado
	case p.PerceivedLevel == LevelBaixo && p.ObjectiveLevel == LevelAlto:
		p.Alignment = AlignmentSubestimado
	default:
		p.Alignment = AlignmentAlinhado
	}
	return p
}

func lowDays(scores []int, cfg *config.Config) int {
	if n := cfg.Regression.LookbackDays; len(scores) > n {
		scores = scores[len(scores)-n:]
	}
	low := 0
	for _, s := range scores {
		if float64(s) < cfg.Regression.ScoreFloor {
			low++
		}
	}
	return low
}

func firstStageID(cfg *config.Config) string {
	if len(cfg.Stages) == 0 {
		return ""
	}
	return cfg.Stages[0].ID
}

func stdDev(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	mean := 0.0
	for _, s := range scores {
		mean += float64(s)
	}
	mean /= float64(len(scores))
	variance := 0.0
	for _, s := range scores {
		d := float64(s) - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(scores)))
}

func narrate(a Analysis, cur Evaluation) []string {
	lines := []string{
		fmt.Sprintf("Estágio atual: %s (índice %d, %s %+d).", a.Stage.Label, a.Index, a.Trend, a.DeltaIndex),
	}
	switch {
	case a.PromotionRecommended:
		lines = append(lines, fmt.Sprintf("Promoção recomendada para %s.", a.NextStage.Label))
	case a.PromotionCandidate && a.PromotionBlockedBySelfAssessment:
		lines = append(lines, "Os números sustentam uma promoção, mas a sua revisão mensal indica o contrário; revise antes de avançar.")
	case a.NextStage != nil && !a.NextStageGateMet:
		lines = append(lines, fmt.Sprintf("Faltam %.0f pontos de índice para disputar %s.", math.Max(0, a.NextStage.MinIndex-float64(a.Index)), a.NextStage.Label))
	case a.NextStage != nil:
		lines = append(lines, fmt.Sprintf("Dias melhores que o período anterior: %d de %d necessários.", a.BetterDays, a.RequiredBetterDays))
	}
	if a.RegressionRisk {
		lines = append(lines, "Risco de regressão: a maioria dos dias recentes ficou abaixo do piso.")
	}
	if leaks := cur.TopLeaks(1); len(leaks) > 0 {
		l := leaks[0]
		lines = append(lines, fmt.Sprintf("Maior vazamento: %s (%s). %s", l.Label, l.Status, l.Hint))
	}
	switch a.Perception.Alignment {
	case AlignmentSuperestimado:
		lines = append(lines, "Sua percepção está acima do que os dados mostram.")
	case AlignmentSubestimado:
		lines = append(lines, "Sua percepção está abaixo do que os dados mostram.")
	}
	return lines
}
