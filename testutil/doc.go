// Package testutil provides scripted pipeline processors for composer
// tests: deterministic outputs, failure injection, artificial latency, and
// invocation recording.
package testutil
