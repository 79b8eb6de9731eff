package journal

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execline/internal/config"
	"execline/internal/domain"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func input(events []domain.DecisionEvent, reviews []domain.Review) Input {
	cfg := config.Default()
	return Input{
		Events:      events,
		Reviews:     reviews,
		FocusTokens: cfg.Journal.FocusTokens,
		RiskTokens:  cfg.Journal.RiskTokens,
		Limit:       cfg.Journal.Limit,
	}
}

func TestBuildClassifiesReviews(t *testing.T) {
	reviews := []domain.Review{
		{ID: "r1", StrategicDecision: "Vou priorizar o lançamento e cortar reuniões", UpdatedAt: t0},
		{ID: "r2", StrategicDecision: "Deixar para depois, estou travado", Reflection: "medo de errar", UpdatedAt: t0.Add(time.Hour)},
		{ID: "r3", NextPriority: "Contratar designer", UpdatedAt: t0.Add(2 * time.Hour)},
		{ID: "r4", Reflection: "só reflexão, sem decisão", UpdatedAt: t0.Add(3 * time.Hour)},
	}
	j := Build(input(nil, reviews))
	require.Len(t, j.Entries, 3)

	assert.Equal(t, "r3", j.Entries[0].ID)
	assert.Equal(t, domain.SignalNeutra, j.Entries[0].Signal)
	assert.Equal(t, "Contratar designer", j.Entries[0].Title)

	assert.Equal(t, "r2", j.Entries[1].ID)
	assert.Equal(t, domain.SignalRisco, j.Entries[1].Signal)
	assert.Equal(t, -2, j.Entries[1].ImpactScore)
	assert.Equal(t, 3, j.Entries[1].RiskHits)

	assert.Equal(t, "r1", j.Entries[2].ID)
	assert.Equal(t, domain.SignalExecutiva, j.Entries[2].Signal)
	assert.Equal(t, 2, j.Entries[2].ImpactScore)
	assert.Equal(t, SourceReview, j.Entries[2].Source)
}

func TestBuildKeepsRuntimeSignalVerbatim(t *testing.T) {
	events := []domain.DecisionEvent{
		{ID: "e1", EventCode: "top3_committed", Signal: domain.SignalExecutiva, ImpactScore: 1, Payload: `{"note":"adiar tudo"}`, CreatedAt: t0},
		{ID: "e2", EventCode: "top3_unlocked", Signal: domain.SignalNeutra, CreatedAt: t0.Add(time.Minute)},
	}
	j := Build(input(events, nil))
	require.Len(t, j.Entries, 2)
	assert.Equal(t, "e2", j.Entries[0].ID)
	assert.Equal(t, domain.SignalExecutiva, j.Entries[1].Signal)
	assert.Equal(t, 1, j.Entries[1].ImpactScore)
	assert.Equal(t, "adiar tudo", j.Entries[1].Text)
	assert.Equal(t, SourceRuntime, j.Entries[1].Source)
}

func TestBuildCapsAndSortsDescending(t *testing.T) {
	var events []domain.DecisionEvent
	for i := 0; i < 20; i++ {
		events = append(events, domain.DecisionEvent{
			ID: fmt.Sprintf("e%02d", i), EventCode: "x", Signal: domain.SignalNeutra,
			CreatedAt: t0.Add(time.Duration(i) * time.Hour),
		})
	}
	j := Build(input(events, nil))
	require.Len(t, j.Entries, 12)
	assert.Equal(t, "e19", j.Entries[0].ID)
	assert.Equal(t, "e08", j.Entries[11].ID)
	for i := 1; i < len(j.Entries); i++ {
		assert.False(t, j.Entries[i].UpdatedAt.After(j.Entries[i-1].UpdatedAt))
	}
}

func TestQualityScore(t *testing.T) {
	assert.Equal(t, 50, QualityScore(0, 0, 0))
	assert.Equal(t, 98, QualityScore(1, 0, 0))
	assert.Equal(t, 0, QualityScore(0, 2, 0))
	assert.Equal(t, 58, QualityScore(0, 0, 3))
	// (1.2*2 - 1.4*1 + 0.2*1) / 4 = 0.3
	assert.Equal(t, 62, QualityScore(2, 1, 1))
}
