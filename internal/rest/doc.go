// Package rest provides the rate-limited Discord REST client.
//
// Base URL: https://discord.com/api/v{version}
//
// Every request is routed to a Bucket keyed by "METHOD:path" (query string
// stripped, so paginated calls share a bucket). Requests in one bucket run
// strictly one at a time in FIFO order; different buckets run concurrently.
//
// Rate limit headers consumed:
//   - X-RateLimit-Limit, X-RateLimit-Remaining
//   - X-RateLimit-Reset (epoch seconds), X-RateLimit-Reset-After (seconds)
//   - X-RateLimit-Bucket, X-RateLimit-Scope
//   - X-RateLimit-Global + Retry-After (global pause)
//
// A 429 response is absorbed: the client waits retry_after plus a fixed offset
// and retries the call inline, bypassing the bucket queue.
package rest
