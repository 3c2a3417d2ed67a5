/*
Package log provides structured logging for the Master using zerolog.

It wraps zerolog to provide JSON or console-formatted logging with
component-specific child loggers, configurable levels, and helper
functions for the common cases. All logs carry timestamps and can be
filtered by severity.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("master starting")

	allocatorLog := log.WithComponent("allocator")
	allocatorLog.Info().Int("bin_index", 3).Msg("container packed")

	log.Logger.Error().
		Err(err).
		Str("worker_id", workerID).
		Msg("dispatch failed")

# Context loggers

  - WithComponent: tag logs with the originating subsystem
    (allocator, profiler, predictor, lookup, messagequeue)
  - WithWorker: tag logs with the target worker's address
  - WithImage: tag logs with the container image under discussion
  - WithContainer: tag logs with a container ID
  - WithBin: tag logs with the bin index a packing decision touched

# Levels

Debug is for packing/dispatch tracing during development. Info is the
default production level — container placed, worker registered, scale
decision taken. Warn covers recoverable conditions (a dispatch retry, a
worker missing its last heartbeat). Error covers operation failures
that need investigation. Fatal exits the process and is reserved for
startup failures.
*/
package log
