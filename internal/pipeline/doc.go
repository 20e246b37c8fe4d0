// Package pipeline defines the lifecycle contract every redditor automation
// implements and the registry used to look pipelines up by name.
//
// A pipeline is built from a Definition with a Config, then driven through
// Setup, Execute and Cleanup by a Runner:
//
//	def, ok := reg.Get("digest")
//	if !ok {
//		// absent lookups are the caller's to handle
//	}
//	p, err := def.Build(pipeline.Config{"subreddit": "golang"})
//	if err != nil {
//		return err // *ConfigurationError when required keys are missing
//	}
//	res, err := runner.Run(ctx, p)
//
// Cleanup runs exactly once per Run, including when Setup or Execute fail
// or Execute panics. Execution failures are returned as *ExecutionError and
// unwrap to the pipeline's own error.
package pipeline
