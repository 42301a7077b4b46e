// Package observability sets up structured logging and OpenTelemetry tracing
// for the ticketing chatbot.
package observability
