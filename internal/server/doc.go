// Package server exposes the download scheduler over HTTP for the serve command.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] and [Recover] are the two the serve command installs.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally and dispatches on method,
// so one path can carry GET, POST and DELETE handlers.
//
// # Task API
//
// [API] mounts these routes over an [Engine]:
//
//	GET    /health
//	GET    /api/tasks
//	POST   /api/tasks             body {url, format, quality, force}, answers 202
//	DELETE /api/tasks?url=
//	GET    /api/tasks/item?url=
//	POST   /api/tasks/cancel?url=
//	POST   /api/tasks/retry?url=[&missing=1]
//	POST   /api/tasks/clear
//	GET    /api/history[?status=&platform=]
//
// Failures answer with a JSON [models.ErrorResponse] and a status derived from the error kind.
//
// # Progress Streaming
//
// [EventsHandler] serves GET /api/events as server-sent events. A [Broadcaster] fans the
// scheduler's update channel out to every open stream.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
