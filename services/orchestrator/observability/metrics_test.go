// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics(t *testing.T) {
	m := InitMetrics()
	require.NotNil(t, m)
	assert.Same(t, m, DefaultMetrics)

	m.RequestsTotal.WithLabelValues("success").Inc()
	m.RequestsTotal.WithLabelValues("success").Inc()
	m.RequestsTotal.WithLabelValues("error").Inc()
	assert.InDelta(t, 2, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("success")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("error")), 1e-9)

	m.RiskLevelTotal.WithLabelValues("high").Inc()
	assert.InDelta(t, 1, testutil.ToFloat64(m.RiskLevelTotal.WithLabelValues("high")), 1e-9)

	m.NodeSoftFailuresTotal.WithLabelValues("coach").Inc()
	assert.InDelta(t, 1, testutil.ToFloat64(m.NodeSoftFailuresTotal.WithLabelValues("coach")), 1e-9)
}
