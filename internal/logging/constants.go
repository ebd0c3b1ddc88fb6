package logging

// Standardized field names for structured logging.
const (
	FieldProfile     = "profile"
	FieldCategory    = "category"
	FieldKeyword     = "keyword"
	FieldDescription = "description"
	FieldRow         = "row"
	FieldProvider    = "provider"
	FieldJobID       = "job_id"
	FieldStatus      = "status"
	FieldOperation   = "operation"
	FieldReason      = "reason"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
	FieldCount       = "count"
	FieldBackend     = "backend"
	FieldSink        = "sink"
	FieldFilename    = "filename"
	FieldInputFile   = "input_file"
	FieldOutputFile  = "output_file"
)
