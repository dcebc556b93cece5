// Package observability builds the structured zap loggers shared by the server and the
// ingestion CLI.
package observability
