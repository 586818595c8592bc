package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) []*dto.Metric {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()
		}
	}
	return nil
}

func labelsOf(m *dto.Metric) map[string]string {
	out := map[string]string{}
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func TestCollector_RecordEntity(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEntity(true, "")
	c.RecordEntity(true, "")
	c.RecordEntity(false, "fetch")

	ms := gather(t, reg, "availbox_entities_polled_total")
	require.Len(t, ms, 2)
	got := map[string]float64{}
	for _, m := range ms {
		l := labelsOf(m)
		got[l["result"]+"/"+l["kind"]] = m.GetCounter().GetValue()
	}
	require.Equal(t, map[string]float64{"success/none": 2, "failure/fetch": 1}, got)
}

func TestCollector_RecordPersistBatchRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPersist(3, 1, 4)
	c.RecordPersist(0, 2, 2)
	c.RecordBatch(true)
	c.RecordBatch(false)
	c.RecordRun(17, 2*time.Second)

	require.Equal(t, 3.0, gather(t, reg, "availbox_records_created_total")[0].GetCounter().GetValue())
	require.Equal(t, 3.0, gather(t, reg, "availbox_records_updated_total")[0].GetCounter().GetValue())
	require.Equal(t, 6.0, gather(t, reg, "availbox_history_entries_total")[0].GetCounter().GetValue())
	require.Len(t, gather(t, reg, "availbox_batches_total"), 2)
	require.Equal(t, 17.0, gather(t, reg, "availbox_last_run_candidates")[0].GetGauge().GetValue())
	require.Equal(t, uint64(1), gather(t, reg, "availbox_run_duration_seconds")[0].GetHistogram().GetSampleCount())
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordBatch(true)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `availbox_batches_total{result="ok"} 1`)
}
