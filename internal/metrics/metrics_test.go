package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	RecordTick("TESTUSDT", "ok")
	RecordTick("TESTUSDT", "ok")
	RecordRejection("TESTUSDT", "")
	RecordTradeClosed("TESTUSDT", "STOP_LOSS", -10)

	assert.InDelta(t, 2, testutil.ToFloat64(ticksTotal.WithLabelValues("TESTUSDT", "ok")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(rejectionsTotal.WithLabelValues("TESTUSDT", "OTHER")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(tradesClosedTotal.WithLabelValues("TESTUSDT", "STOP_LOSS")), 1e-9)
}

func TestSetAccount(t *testing.T) {
	SetAccount("GAUGEUSDT", 1010, 10, 1, 0)

	assert.InDelta(t, 1010, testutil.ToFloat64(balance.WithLabelValues("GAUGEUSDT")), 1e-9)
	assert.InDelta(t, 10, testutil.ToFloat64(dailyPnL.WithLabelValues("GAUGEUSDT")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(openPositions.WithLabelValues("GAUGEUSDT")), 1e-9)
}

func TestObserveHTTP(t *testing.T) {
	ObserveHTTP("TRACE", 418, 0)

	assert.InDelta(t, 1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("TRACE", "418")), 1e-9)
}
