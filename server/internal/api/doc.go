// Package api implements the HTTP interface of subtrack-server.
//
// New(store, reaper, metrics) returns an http.Handler that serves:
//
//	GET  /                             "Subscription Server is Running."
//	GET  /add_uid?uid=&time=&type=     register or replace a UID
//	GET  /add_uid?uid=&permanent=true
//	GET  /get_time/{uid}               remaining-time breakdown
//	POST /sweep                        run one expiry sweep now
//
// Errors are JSON {"error": "..."}: 400 with "missing uid",
// "missing time or type", "missing or invalid time" or "invalid type" for bad input,
// 500 when the snapshot could not be written, 405 for the wrong method.
// An unknown UID is not an error; get_time answers with the 999-day sentinel.
//
// JSON payloads are defined in pkg/types. No external HTTP framework is used.
package api
