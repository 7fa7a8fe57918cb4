package logger

import "time"

// Standard field key constants for structured logging.
const (
	FieldComponent   = "component"
	FieldComposition = "composition_id"
	FieldExecution   = "execution_id"
	FieldPattern     = "pattern"
	FieldPipeline    = "pipeline"
	FieldLayer       = "layer"
	FieldAttempt     = "attempt"
	FieldStatus      = "status"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("done", logger.Fields("pipeline", "asr", "attempt", 2))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for a pipeline that failed.
func ErrorFields(pipelineID string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldPipeline: pipelineID,
		FieldError:    err.Error(),
	}
}

// DurationFields creates fields for a timed pipeline invocation.
func DurationFields(pipelineID string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldPipeline: pipelineID,
		FieldDuration: d.Milliseconds(),
	}
}
