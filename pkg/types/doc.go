// Package types defines the JSON payloads exchanged between subtrack-server
// and its clients. Both the HTTP API and subtrackctl encode and decode these.
package types
