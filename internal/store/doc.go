// Package store provides persistence for render attributes and named templates.
//
// StateStore keeps the attribute map of an execution as JSON in Redis, so render
// jobs can reference attributes by execution id instead of carrying them inline.
//
// TemplateStore keeps named templates. Three backends are available:
//   - Memory - in-process map, for tests and single-worker setups
//   - SQLite - file-backed, pure-Go driver
//   - Redis - shared by every worker connected to the same Redis
//
// Example usage:
//
//	templates, err := store.NewSQLite("/var/lib/compilex/templates.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer templates.Close()
//
//	_ = templates.Put(ctx, "greeting", "Hello {{ name or 'guest' }}")
//	body, err := templates.Get(ctx, "greeting")
package store
