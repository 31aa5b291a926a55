package core

import "time"

// StageMetrics aggregates outcomes of one pipeline run. Metrics reset when a run starts.
type StageMetrics struct {
	ItemsProcessed    int
	ItemsFailed       int
	ItemsIndexed      int // Items whose slices were persisted
	ItemsSkipped      int // Items not forwarded to a later stage
	StartTime         time.Time
	PeakActiveWorkers int
	AvgTimePerItem    time.Duration
}

// StageProgress counts outcomes of a single stage.
type StageProgress struct {
	Stage     Stage
	Total     int
	Processed int
	Failed    int
}

// PipelineState is a point-in-time snapshot of a pipeline.
type PipelineState struct {
	RunID        string
	IsRunning    bool
	IsPaused     bool
	CurrentStage Stage
	Metrics      StageMetrics
}
