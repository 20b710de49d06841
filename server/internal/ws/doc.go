// Package ws implements the WebSocket countdown stream for subtrack-server.
//
// Each connection watches a single UID taken from the request path
// (/ws/remaining/{uid}). The hub sends the UID's remaining-time breakdown
// immediately on connect, then again on every tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "remaining",
//	  "data":  { /* same schema as GET /get_time/{uid} */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level.
package ws
