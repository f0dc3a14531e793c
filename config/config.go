// Package config holds the engine-wide defaults a caller wires into the
// simulator, agent runner, and intervention runner: default model name,
// default cost budget, default warmup step count, default per-call LLM
// timeout, and the results directory. Loaded via spf13/viper so callers
// can override any of these from a config file or environment variables
// without the core depending on a flag-parsing library.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults is the engine-wide configuration every run falls back to
// absent a more specific override (e.g. an agent's own ai_model field).
type Defaults struct {
	DefaultModel       string
	DefaultBudgetUSD   float64
	DefaultWarmupSteps int
	LLMCallTimeout     time.Duration
	ResultsDir         string
}

// Load reads engine defaults from v, applying the package's own
// fallbacks for anything v does not set.
func Load(v *viper.Viper) Defaults {
	setDefaults(v)
	return Defaults{
		DefaultModel:       v.GetString("default_model"),
		DefaultBudgetUSD:   v.GetFloat64("default_budget_usd"),
		DefaultWarmupSteps: v.GetInt("default_warmup_steps"),
		LLMCallTimeout:     v.GetDuration("llm_call_timeout"),
		ResultsDir:         v.GetString("results_dir"),
	}
}

// New builds a fresh viper.Viper with the package's fallbacks applied,
// for callers that don't already manage their own instance.
func New() Defaults {
	v := viper.New()
	return Load(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_model", "gpt-4o-mini")
	v.SetDefault("default_budget_usd", 5.0)
	v.SetDefault("default_warmup_steps", 3)
	v.SetDefault("llm_call_timeout", 30*time.Second)
	v.SetDefault("results_dir", "./results")
}
