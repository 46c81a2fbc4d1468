// Package worker implements the render worker lifecycle and Redis Streams integration.
//
// The worker reads render jobs from a Redis stream consumer group, renders them with
// the configured engine and publishes the output to a result stream.
//
// A job is a JSON document in the "data" field of the stream entry:
//
//	{
//	  "execution_id": "exec-42",
//	  "node_id": "summary",
//	  "engine": "directive",
//	  "template_name": "summary",
//	  "attributes": {"user": {"name": "ada"}}
//	}
//
// "template" carries inline template text and takes precedence over "template_name".
// When "attributes" is absent they are loaded from the state store by execution id.
// Failed jobs are published to RESULT_STREAM + ".errors".
//
// "kind" selects the job and defaults to "render". Store jobs keep the
// template and state stores filled:
//
//	{"kind": "template_put", "template_name": "summary", "template": "..."}
//	{"kind": "template_delete", "template_name": "summary"}
//	{"kind": "state_put", "execution_id": "exec-42", "attributes": {...}}
//
// Example usage:
//
//	worker := worker.NewWorker(cfg, redisClient, service, templates, states, logger)
//	if err := worker.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer worker.Stop()
//
// Health checks are provided via a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8083, redisClient, templates, compiler, logger)
//	healthServer.Start()
//	defer healthServer.Stop()
package worker
