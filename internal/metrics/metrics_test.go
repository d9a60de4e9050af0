package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRecordEventIncrementsLabeledCounter(t *testing.T) {
	before := testutil.ToFloat64(EventsProcessed.WithLabelValues("frontend"))
	RecordEvent("frontend")
	after := testutil.ToFloat64(EventsProcessed.WithLabelValues("frontend"))
	assert.Equal(t, before+1, after)
}

func TestRecordPluginDeathIncrementsByPluginAndOutcome(t *testing.T) {
	before := testutil.ToFloat64(PluginTaskDeaths.WithLabelValues("steam", "self-reported"))
	RecordPluginDeath("steam", "self-reported")
	after := testutil.ToFloat64(PluginTaskDeaths.WithLabelValues("steam", "self-reported"))
	assert.Equal(t, before+1, after)
}

func TestServeWithEmptyAddrIsNoopAndShutdownSafe(t *testing.T) {
	s := Serve(zerolog.Nop(), "")
	assert.NoError(t, s.Shutdown(context.Background()))
}
