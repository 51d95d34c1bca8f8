// Package instrumentation provides OpenTelemetry metrics and tracing for
// the auth library. All instruments are created through no-op providers
// unless instrumentation is explicitly enabled, so the zero-configuration
// cost is negligible.
package instrumentation
