// Package errors defines error types for siteos.
//
// Transport-boundary violations (rejected origins, unmatched instances, unmatched
// correlation ids) never surface as errors; they are dropped by the receiver. The types
// here cover caller-facing contract violations and lifecycle failures. All error types
// support unwrapping and can be checked using errors.Is, errors.As, and errors.AsType.
package errors
