package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricName(t *testing.T) {
	t.Run("Should prefix bare names once", func(t *testing.T) {
		assert.Equal(t, "woodsage_answers_total", MetricName("answers_total"))
		assert.Equal(t, "woodsage_answers_total", MetricName(MetricName("answers_total")))
		assert.Equal(t, "woodsage_", MetricName(""))
	})
}

func TestMetricNameWithSubsystem(t *testing.T) {
	cases := map[string]struct {
		subsystem, name, want string
	}{
		"Should join subsystem and name":        {"catalog_pool", "open_connections", "woodsage_catalog_pool_open_connections"},
		"Should trim underscores on subsystems": {"_answer_", "stage_seconds", "woodsage_answer_stage_seconds"},
		"Should return the subsystem alone":     {"vectordb", "", "woodsage_vectordb"},
		"Should fall back without a subsystem":  {"", "build_info", "woodsage_build_info"},
		"Should leave prefixed names untouched": {"http", "woodsage_uptime_seconds", "woodsage_uptime_seconds"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, MetricNameWithSubsystem(tc.subsystem, tc.name))
		})
	}
}
