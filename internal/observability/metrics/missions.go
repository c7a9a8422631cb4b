// Package metrics emits standardised mission lifecycle metrics.
package metrics

import (
	"time"

	obserrors "github.com/driftline/driftline/internal/observability/errors"
	"github.com/driftline/driftline/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
	ResultDropped = "dropped"
)

// MissionMetric captures details about a mission lifecycle event for metric emission.
type MissionMetric struct {
	Stage      string // "drift_worker" or "results_processor"
	Transition string // "processing", "completed", "failed", "dropped"
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitMissionLifecycle emits standardised mission lifecycle metrics.
func EmitMissionLifecycle(sink statsd.Sink, in MissionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"stage":      in.Stage,
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("mission.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("mission.duration", in.Duration, cloneTags(tags))
	}
}

func cloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
