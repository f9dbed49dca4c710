// Package plausible provides middleware that proxies Plausible Analytics traffic
// through the host application.
//
// The Interceptor inspects every request that passes through it:
// - requests for the configured local script path are relayed to the provider
//   script CDN and the script is streamed back verbatim
// - requests for /api/event have their JSON body rewritten into the provider
//   event schema, optionally enriched by an EventCallback, and relayed to the
//   provider event ingestion endpoint
// - everything else is handed to the next handler untouched
//
// Script relay failures are logged and the request falls through to the next
// handler, event relay failures always end the request with a 500.
package plausible
