// Package logger provides structured logging for the composition engine,
// backed by zerolog.
//
// Composers obtain component-tagged sub-loggers so every record carries the
// composer pattern and execution id alongside the message:
//
//	log := logger.NewDefault("composekit").WithComponent("parallel")
//	log.Info("pipeline completed", logger.Fields(
//	    logger.FieldPipeline, "face-detect",
//	    logger.FieldDuration, elapsed.Milliseconds(),
//	))
package logger
