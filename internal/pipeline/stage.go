package pipeline

// Stage is a step of one image's pipeline.
type Stage string

const (
	StageProbing     Stage = "probing"
	StagePlanning    Stage = "planning"
	StageReconciling Stage = "reconciling"
	StageTranscoding Stage = "transcoding"
	StageRestatting  Stage = "restatting"
	StageSummarizing Stage = "summarizing"
	StageDone        Stage = "done"
)
