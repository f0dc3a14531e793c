package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	d := New()
	assert.Equal(t, "gpt-4o-mini", d.DefaultModel)
	assert.Equal(t, 5.0, d.DefaultBudgetUSD)
	assert.Equal(t, 3, d.DefaultWarmupSteps)
	assert.Equal(t, 30*time.Second, d.LLMCallTimeout)
	assert.Equal(t, "./results", d.ResultsDir)
}

func TestLoad_OverrideWins(t *testing.T) {
	v := viper.New()
	v.Set("default_model", "gpt-4o")
	v.Set("default_warmup_steps", 10)

	d := Load(v)
	assert.Equal(t, "gpt-4o", d.DefaultModel)
	assert.Equal(t, 10, d.DefaultWarmupSteps)
	assert.Equal(t, 5.0, d.DefaultBudgetUSD)
}
