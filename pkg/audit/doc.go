// Package audit records one structured event per tenant-scoped request and
// hands it to a pluggable storage backend without blocking the request.
//
// # Architecture
//
//   - Event – the access record: organization code, resolution source, acting
//     user, decision, reason, bypass marker, terminal phase, client IP and
//     elapsed time.
//   - Recorder – buffered background writer. Record never blocks; events that
//     do not fit in the buffer are dropped and counted in Stats.
//   - Storage – bulk persistence. MemoryStorage and LogStorage live here,
//     mongostore and searchstore in subpackages.
//
// # Usage
//
//	rec := audit.NewRecorder(mongostore.New(db.Collection("tenant_audit")), audit.Options{},
//		audit.WithLogger(log),
//		audit.WithHasher(audit.NewSHA256Hasher()),
//	)
//	defer rec.Close(context.Background())
//
//	rec.Record(ctx, audit.Event{
//		Source: "url",
//		UserID: audit.Anonymous,
//		Phase:  "denied",
//		Reason: "no_membership",
//	})
//
// # Error Handling
//
// Storage failures are logged and counted, never propagated to the caller.
// TryRecord reports ErrBufferFull, ErrRecorderClosed or ErrEventValidation
// for callers that want to know why an event was not queued.
package audit
