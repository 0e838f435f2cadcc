package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegisterWithAddsServiceLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegisterWith(reg, "auth")

	TokensIssuedTotal.WithLabelValues("magic_link", "success").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "auth_tokens_issued_total" {
			continue
		}
		require.Len(t, mf.GetMetric(), 1)
		labels := map[string]string{}
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		assert.Equal(t, map[string]string{"kind": "magic_link", "result": "success", "service": "auth"}, labels)
		assert.Equal(t, 1.0, mf.GetMetric()[0].GetCounter().GetValue())
		found = true
	}
	assert.True(t, found)
}
