package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault_ReturnsSameInstanceAndCountersIncrement(t *testing.T) {
	m1 := Default()
	m2 := Default()
	assert.Same(t, m1, m2)

	m1.StepsTotal.Inc()
	m1.LLMCallsTotal.WithLabelValues("success").Inc()
	m1.ForecastsResolvedTotal.WithLabelValues("hard_metric").Inc()
}
