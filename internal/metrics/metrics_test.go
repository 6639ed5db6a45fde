package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func TestObserveAndServe(t *testing.T) {
	m := New()
	m.ObserveIngest("prediction", 4, map[string]int{"not_sports": 2})
	m.ObserveCycle(true, time.Unix(1736539200, 0))
	m.ObserveCycle(false, time.Now())
	m.Opportunities.WithLabelValues("PM_NO_vs_EXCHANGE_BACK").Inc()

	assert.InDelta(t, 4, testutil.ToFloat64(m.Ingested.WithLabelValues("prediction")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Skipped.WithLabelValues("prediction", "not_sports")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Cycles.WithLabelValues("error")), 1e-9)
	assert.InDelta(t, 1736539200, testutil.ToFloat64(m.LastCycle), 1e-9)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "arbengine_opportunities_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestObserveOpportunities(t *testing.T) {
	m := New()
	m.ObserveOpportunities([]domain.Opportunity{
		{Direction: domain.DirectionYesLay, WorstCase: 0.89},
		{Direction: domain.DirectionNoBack, WorstCase: 0.17},
	})
	assert.InDelta(t, 0.89, testutil.ToFloat64(m.BestWorstCase), 1e-12)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Opportunities.WithLabelValues(string(domain.DirectionYesLay))), 1e-9)

	m.ObserveOpportunities(nil)
	assert.InDelta(t, 0, testutil.ToFloat64(m.BestWorstCase), 1e-12)
}
