/*
Package log provides structured logging for ridge using zerolog.

A package-level Logger is initialized once via Init and is safe for
concurrent use from every package. Levels are debug/info/warn/error/fatal;
output is either JSON (production) or a human-readable console format
(development).

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("ridge controller starting")

	orchLog := log.WithComponent("orchestrator")
	orchLog.Info().Str("cluster_id", clusterID).Str("stage", string(stage)).Msg("stage started")

	log.Logger.Error().Err(err).Str("job_id", job.ID).Msg("stage failed")

# Conventions

Always attach err via .Err(err) rather than formatting it into the message
string. Component loggers (WithComponent) exist so orchestrator, runner,
and core log lines can be filtered independently without threading a
logger through every call.
*/
package log
