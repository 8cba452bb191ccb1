// Package gateway implements a Discord gateway session.
//
// Connection flow:
//
//	GET /gateway/bot (url + session start budget)
//	  -> dial url?v=10&encoding=json&compress=zlib-stream
//	  <- HELLO {heartbeat_interval}
//	  -> HEARTBEAT (immediately, then every interval)
//	  -> IDENTIFY, or RESUME when a prior session id + sequence are known
//	  <- DISPATCH READY / RESUMED
//
// Binary frames are chunks of a single zlib stream that spans the whole
// connection; a message is complete when a chunk ends with 00 00 FF FF.
//
// Close codes decide what happens next: 4007 and 4009 resume, authentication,
// sharding and intent failures are fatal, anything else reconnects with a fresh
// IDENTIFY.
package gateway
