// Package api is the HTTP shell around the job store and worker manager.
//
// Routes are registered on a gorilla/mux router:
//
//	POST /videos                 multipart upload (fields "video" and "title")
//	GET  /videos                 job records, optionally filtered by ?status=
//	GET  /videos/{id}/info       one job record
//	GET  /videos/{id}/log        {"log": "<processing log>"}
//	GET  /videos/{id}/thumbnail  thumbnail.jpg
//	GET  /videos/{id}/{file}     any packaged file (manifest, segments)
//	GET  /health                 worker status
//	GET  /metrics                Prometheus exposition (when enabled)
//
// Uploads are streamed to disk, never buffered in memory. A record is created
// only after the whole file arrived, then the manager is notified.
package api
