// Package engage implements the marketing engagement core: the per-user
// fixed-window rate limiter, the last-write-wins stage tracking, the reply
// selector, and the dispatcher that ties them together per inbound event.
//
// The package is transport-agnostic: it consumes Events and produces Replies;
// the Telegram adapter owns delivery.
package engage
