// Package upstream provides typed access to the exchange REST API.
//
// All calls accept a context, pass through a client-side rate limiter, and
// surface failures as *Error with a closed Kind so callers can decide
// retry/drop policy without inspecting status codes.
package upstream
