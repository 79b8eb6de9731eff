package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Metric names accepted by rules and stage thresholds.
const (
	MetricACompletionRate       = "aCompletionRate"
	MetricDeepWorkHoursPerWeek  = "deepWorkHoursPerWeek"
	MetricRescheduleRate        = "rescheduleRate"
	MetricProjectConnectionRate = "projectConnectionRate"
	MetricConstructionPercent   = "constructionPercent"
	MetricDisconnectedPercent   = "disconnectedPercent"
	MetricGhostProjects         = "ghostProjects"
	MetricConsistencyPercent    = "consistencyPercent"
)

var knownMetrics = map[string]bool{
	MetricACompletionRate:       true,
	MetricDeepWorkHoursPerWeek:  true,
	MetricRescheduleRate:        true,
	MetricProjectConnectionRate: true,
	MetricConstructionPercent:   true,
	MetricDisconnectedPercent:   true,
	MetricGhostProjects:         true,
	MetricConsistencyPercent:    true,
}

// Config models execline.yml. Every engine constant lives here and is passed
// explicitly to the component that needs it.
type Config struct {
	Timezone string `yaml:"timezone" json:"timezone"`
	Capacity struct {
		BaseDayMinutes int `yaml:"base_day_minutes" json:"base_day_minutes"`
	} `yaml:"capacity" json:"capacity"`
	Windows struct {
		ScoreDays     int `yaml:"score_days" json:"score_days"`
		EvolutionDays int `yaml:"evolution_days" json:"evolution_days"`
		PulseDays     int `yaml:"pulse_days" json:"pulse_days"`
		AlertDays     int `yaml:"alert_days" json:"alert_days"`
		TractionDays  int `yaml:"traction_days" json:"traction_days"`
	} `yaml:"windows" json:"windows"`
	Daily struct {
		DeepMinutesTarget float64 `yaml:"deep_minutes_target" json:"deep_minutes_target"`
	} `yaml:"daily" json:"daily"`
	Rules  []Rule  `yaml:"rules" json:"rules"`
	Stages []Stage `yaml:"stages" json:"stages"`
	Trend  struct {
		Delta float64 `yaml:"delta" json:"delta"`
	} `yaml:"trend" json:"trend"`
	Promotion struct {
		IndexMargin     float64 `yaml:"index_margin" json:"index_margin"`
		MaxCritical     int     `yaml:"max_critical" json:"max_critical"`
		BetterDaysRatio float64 `yaml:"better_days_ratio" json:"better_days_ratio"`
	} `yaml:"promotion" json:"promotion"`
	Regression struct {
		LookbackDays int     `yaml:"lookback_days" json:"lookback_days"`
		ScoreFloor   float64 `yaml:"score_floor" json:"score_floor"`
		MinLowDays   int     `yaml:"min_low_days" json:"min_low_days"`
	} `yaml:"regression" json:"regression"`
	Perception struct {
		HighTokens []string `yaml:"high_tokens" json:"high_tokens"`
		LowTokens  []string `yaml:"low_tokens" json:"low_tokens"`
		HighIndex  float64  `yaml:"high_index" json:"high_index"`
		LowIndex   float64  `yaml:"low_index" json:"low_index"`
	} `yaml:"perception" json:"perception"`
	Journal struct {
		FocusTokens []string `yaml:"focus_tokens" json:"focus_tokens"`
		RiskTokens  []string `yaml:"risk_tokens" json:"risk_tokens"`
		Limit       int      `yaml:"limit" json:"limit"`
	} `yaml:"journal" json:"journal"`
	Focus struct {
		MaxSize int `yaml:"max_size" json:"max_size"`
	} `yaml:"focus" json:"focus"`
	Alerts struct {
		FragmentationProjects int      `yaml:"fragmentation_projects" json:"fragmentation_projects"`
		FocusOverloadProjects int      `yaml:"focus_overload_projects" json:"focus_overload_projects"`
		RescheduleDelays      int      `yaml:"reschedule_delays" json:"reschedule_delays"`
		MaintenanceMaxATasks  int      `yaml:"maintenance_max_a_tasks" json:"maintenance_max_a_tasks"`
		ActionVerbs           []string `yaml:"action_verbs" json:"action_verbs"`
	} `yaml:"alerts" json:"alerts"`
}

type Rule struct {
	ID       string  `yaml:"id" json:"id"`
	Label    string  `yaml:"label" json:"label"`
	Hint     string  `yaml:"hint" json:"hint"`
	Metric   string  `yaml:"metric" json:"metric"`
	Operator string  `yaml:"operator" json:"operator"`
	Target   float64 `yaml:"target" json:"target"`
	Weight   int     `yaml:"weight" json:"weight"`
}

type Threshold struct {
	Metric   string  `yaml:"metric" json:"metric"`
	Operator string  `yaml:"operator" json:"operator"`
	Value    float64 `yaml:"value" json:"value"`
}

type Stage struct {
	ID         string      `yaml:"id" json:"id"`
	Label      string      `yaml:"label" json:"label"`
	MinIndex   float64     `yaml:"min_index" json:"min_index"`
	Thresholds []Threshold `yaml:"thresholds" json:"thresholds"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with xl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to Default when the workspace has no config file.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config.timezone %q: %w", c.Timezone, err)
	}
	if c.Capacity.BaseDayMinutes <= 0 {
		return fmt.Errorf("config.capacity.base_day_minutes must be positive")
	}
	if c.Windows.ScoreDays <= 0 || c.Windows.EvolutionDays <= 0 || c.Windows.PulseDays <= 0 {
		return fmt.Errorf("config.windows days must be positive")
	}
	if c.Windows.AlertDays <= 0 || c.Windows.TractionDays <= 0 {
		return fmt.Errorf("config.windows alert_days and traction_days must be positive")
	}
	if c.Daily.DeepMinutesTarget <= 0 {
		return fmt.Errorf("config.daily.deep_minutes_target must be positive")
	}
	if len(c.Rules) == 0 {
		return fmt.Errorf("config.rules is required")
	}
	total := 0
	seen := map[string]bool{}
	for _, r := range c.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule with empty id")
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate rule id %s", r.ID)
		}
		seen[r.ID] = true
		if !knownMetrics[r.Metric] {
			return fmt.Errorf("rule %s references unknown metric %s", r.ID, r.Metric)
		}
		if r.Operator != "gte" && r.Operator != "lte" {
			return fmt.Errorf("rule %s has invalid operator %s", r.ID, r.Operator)
		}
		if r.Weight <= 0 {
			return fmt.Errorf("rule %s weight must be positive", r.ID)
		}
		total += r.Weight
	}
	if total != 100 {
		return fmt.Errorf("rule weights must sum to 100, got %d", total)
	}
	if len(c.Stages) == 0 {
		return fmt.Errorf("config.stages is required")
	}
	if c.Stages[0].MinIndex != 0 {
		return fmt.Errorf("first stage %s must have min_index 0", c.Stages[0].ID)
	}
	for i, s := range c.Stages {
		if s.ID == "" {
			return fmt.Errorf("stage with empty id")
		}
		if i > 0 && s.MinIndex <= c.Stages[i-1].MinIndex {
			return fmt.Errorf("stage %s min_index must be above %s", s.ID, c.Stages[i-1].ID)
		}
		for _, th := range s.Thresholds {
			if !knownMetrics[th.Metric] {
				return fmt.Errorf("stage %s references unknown metric %s", s.ID, th.Metric)
			}
			if th.Operator != "gte" && th.Operator != "lte" {
				return fmt.Errorf("stage %s has invalid operator %s", s.ID, th.Operator)
			}
		}
	}
	if c.Trend.Delta <= 0 {
		return fmt.Errorf("config.trend.delta must be positive")
	}
	if c.Promotion.BetterDaysRatio <= 0 || c.Promotion.BetterDaysRatio > 1 {
		return fmt.Errorf("config.promotion.better_days_ratio must be in (0,1]")
	}
	if c.Regression.LookbackDays <= 0 {
		return fmt.Errorf("config.regression.lookback_days must be positive")
	}
	if c.Journal.Limit <= 0 {
		return fmt.Errorf("config.journal.limit must be positive")
	}
	if c.Focus.MaxSize < 1 || c.Focus.MaxSize > 3 {
		return fmt.Errorf("config.focus.max_size must be between 1 and 3")
	}
	return nil
}

// Location returns the configured timezone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "execline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `timezone: UTC

capacity:
  base_day_minutes: 1020

windows:
  score_days: 7
  evolution_days: 28
  pulse_days: 7
  alert_days: 7
  traction_days: 14

daily:
  deep_minutes_target: 45

rules:
  - id: a_completion
    label: "Conclusão de tarefas A"
    hint: "Feche as tarefas A antes de abrir novas frentes"
    metric: aCompletionRate
    operator: gte
    target: 75
    weight: 22
  - id: deep_work
    label: "Horas de foco profundo por semana"
    hint: "Proteja blocos de foco de pelo menos 45 minutos"
    metric: deepWorkHoursPerWeek
    operator: gte
    target: 6
    weight: 16
  - id: reschedule
    label: "Taxa de reagendamento"
    hint: "Renegocie menos e corte escopo mais cedo"
    metric: rescheduleRate
    operator: lte
    target: 12
    weight: 14
  - id: project_connection
    label: "Entregas conectadas a projetos"
    hint: "Ligue cada entrega a um projeto ativo"
    metric: projectConnectionRate
    operator: gte
    target: 75
    weight: 14
  - id: consistency
    label: "Consistência diária"
    hint: "Mantenha execução todos os dias, mesmo pequena"
    metric: consistencyPercent
    operator: gte
    target: 70
    weight: 12
  - id: construction
    label: "Tempo planejado em construção"
    hint: "Reserve a agenda para tarefas A de projeto"
    metric: constructionPercent
    operator: gte
    target: 50
    weight: 8
  - id: disconnected
    label: "Tempo planejado desconectado"
    hint: "Reduza blocos sem projeto"
    metric: disconnectedPercent
    operator: lte
    target: 20
    weight: 8
  - id: ghost_projects
    label: "Projetos fantasma"
    hint: "Encerre ou reative projetos parados"
    metric: ghostProjects
    operator: lte
    target: 0
    weight: 6

stages:
  - id: reativo
    label: "Reativo"
    min_index: 0
  - id: executor
    label: "Executor"
    min_index: 55
    thresholds:
      - {metric: aCompletionRate, operator: gte, value: 50}
      - {metric: deepWorkHoursPerWeek, operator: gte, value: 2}
      - {metric: rescheduleRate, operator: lte, value: 30}
      - {metric: consistencyPercent, operator: gte, value: 40}
  - id: construtor
    label: "Construtor"
    min_index: 70
    thresholds:
      - {metric: aCompletionRate, operator: gte, value: 65}
      - {metric: deepWorkHoursPerWeek, operator: gte, value: 4}
      - {metric: rescheduleRate, operator: lte, value: 20}
      - {metric: projectConnectionRate, operator: gte, value: 60}
      - {metric: constructionPercent, operator: gte, value: 35}
      - {metric: disconnectedPercent, operator: lte, value: 30}
      - {metric: ghostProjects, operator: lte, value: 1}
      - {metric: consistencyPercent, operator: gte, value: 55}
  - id: estrategista
    label: "Estrategista"
    min_index: 84
    thresholds:
      - {metric: aCompletionRate, operator: gte, value: 75}
      - {metric: deepWorkHoursPerWeek, operator: gte, value: 6}
      - {metric: rescheduleRate, operator: lte, value: 12}
      - {metric: projectConnectionRate, operator: gte, value: 75}
      - {metric: constructionPercent, operator: gte, value: 50}
      - {metric: disconnectedPercent, operator: lte, value: 20}
      - {metric: ghostProjects, operator: lte, value: 0}
      - {metric: consistencyPercent, operator: gte, value: 70}

trend:
  delta: 6

promotion:
  index_margin: 4
  max_critical: 1
  better_days_ratio: 0.65

regression:
  lookback_days: 21
  score_floor: 45
  min_low_days: 12

perception:
  high_index: 70
  low_index: 45
  high_tokens: [consistente, disciplin, evolui, progresso, focad, avancei, entreguei, produtiv, constancia, melhorei]
  low_tokens: [procrastin, dispers, atrasei, travad, "sem foco", cansad, desorganiz, adiei, falhei, sobrecarreg]

journal:
  limit: 12
  focus_tokens: [encerrar, cortar, prioriz, foco, deleg, elimin, reativ]
  risk_tokens: [adiar, depois, trav, medo, dispers, "sem foco", atras]

focus:
  max_size: 3

alerts:
  fragmentation_projects: 5
  focus_overload_projects: 3
  reschedule_delays: 3
  maintenance_max_a_tasks: 3
  action_verbs: [revisar, definir, enviar, publicar, escrever, ligar, fechar, criar, corrigir, montar]
`
