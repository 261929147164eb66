package logging

const (
	// FieldComponent names the subsystem emitting a record.
	FieldComponent = "component"
	// FieldStage is the per-image pipeline stage.
	FieldStage = "stage"
	// FieldImage is the source image path.
	FieldImage = "image"
	// FieldRunID identifies one optimization run.
	FieldRunID = "run_id"
	// FieldEventType tags records that describe a discrete event.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)
