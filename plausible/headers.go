package plausible

import (
	"net"
	"net/http"
	"sort"
	"strings"
)

const (
	ForwardedForHeaderKey = "X-Forwarded-For"
	UserAgentHeaderKey    = "User-Agent"
	ContentTypeHeaderKey  = "Content-Type"
)

// hopHeaders are connection scoped and never copied from an upstream
// response onto the response written to the client
var hopHeaders = []string{
	"connection",
	"proxy-connection",
	"keep-alive",
	"proxy-authenticate",
	"proxy-authorization",
	"te",
	"trailer",
	"transfer-encoding",
	"upgrade",
}

// HeaderField is a single header key value pair
type HeaderField struct {
	Key   string
	Value string
}

// BuildRequestHeaders returns the headers sent on every call to the provider,
// the client ip and user agent first followed by any extra headers
func BuildRequestHeaders(userAgent, remoteIP string, extra ...HeaderField) []HeaderField {
	headers := make([]HeaderField, 0, 2+len(extra))

	headers = append(headers,
		HeaderField{Key: ForwardedForHeaderKey, Value: remoteIP},
		HeaderField{Key: UserAgentHeaderKey, Value: userAgent},
	)

	return append(headers, extra...)
}

// MergeHeaders lower-cases the keys of both lists and merges incoming
// on top of existing, so that an incoming value replaces any existing value
// for the same key regardless of the casing either side used.
// The result holds exactly one entry per key, ordered by first appearance.
func MergeHeaders(existing, incoming []HeaderField) []HeaderField {
	merged := make([]HeaderField, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))

	put := func(field HeaderField) {
		key := strings.ToLower(field.Key)

		if i, found := index[key]; found {
			merged[i].Value = field.Value
			return
		}

		index[key] = len(merged)
		merged = append(merged, HeaderField{Key: key, Value: field.Value})
	}

	for _, field := range existing {
		put(field)
	}

	for _, field := range incoming {
		put(field)
	}

	return merged
}

// HeaderFields flattens h into a list of fields sorted by key,
// a key with multiple values yields one field per value
func HeaderFields(h http.Header) []HeaderField {
	keys := make([]string, 0, len(h))
	for key := range h {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]HeaderField, 0, len(keys))
	for _, key := range keys {
		for _, value := range h[key] {
			fields = append(fields, HeaderField{Key: key, Value: value})
		}
	}

	return fields
}

// applyHeaders sets each field on the request header
func applyHeaders(h http.Header, fields []HeaderField) {
	for _, field := range fields {
		h.Set(field.Key, field.Value)
	}
}

// mergeResponseHeaders merges the upstream response headers (minus hop-by-hop
// headers) onto the headers already staged on the client response
func mergeResponseHeaders(w http.ResponseWriter, upstream http.Header) {
	upstreamFields := make([]HeaderField, 0, len(upstream))
	for _, field := range HeaderFields(upstream) {
		if isHopHeader(field.Key) {
			continue
		}
		upstreamFields = append(upstreamFields, field)
	}

	merged := MergeHeaders(HeaderFields(w.Header()), upstreamFields)

	staged := w.Header()
	for key := range staged {
		delete(staged, key)
	}

	applyHeaders(staged, merged)
}

func isHopHeader(key string) bool {
	key = strings.ToLower(key)
	for _, hop := range hopHeaders {
		if key == hop {
			return true
		}
	}
	return false
}

// ResolveRemoteIP returns the value of the first of headers present on the
// request, falling back to the request's peer address
func ResolveRemoteIP(r *http.Request, headers []string) string {
	for _, header := range headers {
		if value := r.Header.Get(header); value != "" {
			return value
		}
	}

	return peerAddress(r.RemoteAddr)
}

// peerAddress strips the port from a host:port remote address
func peerAddress(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
