// Package metrics defines the Prometheus metrics exported by posetrack.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Frame scheduling metrics
	FramePassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posetrack_frame_passes_total",
			Help: "Frame-phase callbacks handled by the scheduler, by phase and pass kind",
		},
		[]string{"phase", "kind"},
	)

	FramePassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posetrack_frame_pass_duration_seconds",
			Help:    "Time spent in a scheduler update pass",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		},
		[]string{"kind"},
	)

	RegisteredSources = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "posetrack_registered_sources",
			Help: "Sources currently registered with the scheduler",
		},
		[]string{"kind"},
	)

	// Source metrics
	PoseUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posetrack_pose_updates_total",
			Help: "Pose source updates that pulled a new sample",
		},
		[]string{"role"},
	)

	PoseChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posetrack_pose_changes_total",
			Help: "Pose source updates whose transform changed beyond tolerance",
		},
		[]string{"role"},
	)

	SkeletonChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posetrack_skeleton_changes_total",
			Help: "Skeleton updates where at least one bone moved beyond tolerance",
		},
		[]string{"role"},
	)

	BackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posetrack_backend_errors_total",
			Help: "Backend fetches that failed and were treated as no data",
		},
		[]string{"kind", "role"},
	)

	// Recorder metrics
	RecorderFlushedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posetrack_recorder_flushed_total",
			Help: "Rows written by the session recorder",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		FramePassesTotal,
		FramePassDuration,
		RegisteredSources,
		PoseUpdatesTotal,
		PoseChangesTotal,
		SkeletonChangesTotal,
		BackendErrorsTotal,
		RecorderFlushedTotal,
	)
}
