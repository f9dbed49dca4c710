package plausible

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	EventPath = "/api/event"
	// EventFailureMessage is the body of the 500 response written when the event relay fails
	EventFailureMessage = "plausible_proxy failed to POST /api/event"
)

// InboundEvent is the event body posted by the Plausible script.
// Recognized keys are kept as raw JSON so that they are relayed verbatim,
// a key that is absent relays as null.
type InboundEvent struct {
	Name     json.RawMessage
	URL      json.RawMessage
	Domain   json.RawMessage
	Referrer json.RawMessage
	// Fields holds every decoded key, including ones the relay doesn't recognize
	Fields map[string]json.RawMessage
}

// DecodeInboundEvent decodes a raw event body, returning error (if any)
// if body is not a JSON object
func DecodeInboundEvent(body []byte) (InboundEvent, error) {
	var fields map[string]json.RawMessage

	if err := json.Unmarshal(body, &fields); err != nil {
		return InboundEvent{}, err
	}

	return InboundEvent{
		Name:     fields["n"],
		URL:      fields["u"],
		Domain:   fields["d"],
		Referrer: fields["r"],
		Fields:   fields,
	}, nil
}

// StringField returns the value of key if it is present and a JSON string
func (e InboundEvent) StringField(key string) (string, bool) {
	raw, found := e.Fields[key]
	if !found {
		return "", false
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}

	return value, true
}

// PayloadModifiers are additions to the outbound event body returned by an EventCallback
type PayloadModifiers struct {
	Props map[string]any
}

// EventCallback is invoked for every relayed event with the inbound request,
// the decoded event and the resolved client ip. An error fails the relay.
type EventCallback func(r *http.Request, event InboundEvent, remoteIP string) (PayloadModifiers, error)

// DefaultEventCallback leaves the outbound event unmodified
func DefaultEventCallback(*http.Request, InboundEvent, string) (PayloadModifiers, error) {
	return PayloadModifiers{}, nil
}

// OutboundEvent is the event body expected by the provider event endpoint
type OutboundEvent struct {
	Name     json.RawMessage `json:"name"`
	URL      json.RawMessage `json:"url"`
	Domain   json.RawMessage `json:"domain"`
	Referrer json.RawMessage `json:"referrer"`
	Props    map[string]any  `json:"props,omitempty"`
}

// NewOutboundEvent maps event onto the provider schema and attaches
// the props of modifiers when there are any
func NewOutboundEvent(event InboundEvent, modifiers PayloadModifiers) OutboundEvent {
	return OutboundEvent{
		Name:     event.Name,
		URL:      event.URL,
		Domain:   event.Domain,
		Referrer: event.Referrer,
		Props:    modifiers.Props,
	}
}

// relayEvent forwards the event posted on r to the provider and writes the
// provider response, on any failure it writes a 500 instead.
// The request is never handed on to the rest of the pipeline.
func (i *Interceptor) relayEvent(w http.ResponseWriter, r *http.Request) {
	resp, err := i.postEvent(r)
	if err != nil {
		i.logger.Error().
			Err(err).
			Str("url", i.eventURL).
			Msg(EventFailureMessage)

		w.Header().Set(ContentTypeHeaderKey, "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(EventFailureMessage))

		return
	}
	defer resp.Body.Close()

	i.writeUpstreamResponse(w, resp, i.eventURL)
}

// postEvent reads, transforms and posts the event body of r,
// returning the provider response and error (if any)
func (i *Interceptor) postEvent(r *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, relayError("read event body", ErrMalformedRequestBody, err)
	}

	event, err := DecodeInboundEvent(body)
	if err != nil {
		return nil, relayError("decode event body", ErrMalformedRequestBody, err)
	}

	remoteIP := ResolveRemoteIP(r, i.remoteIPHeaders)

	modifiers, err := i.invokeCallback(r, event, remoteIP)
	if err != nil {
		return nil, relayError("event callback", ErrCallback, err)
	}

	payload, err := json.Marshal(NewOutboundEvent(event, modifiers))
	if err != nil {
		return nil, relayError("encode event body", ErrCallback, err)
	}

	i.logger.Trace().
		Str("remote_ip", remoteIP).
		Bytes("payload", payload).
		Msg("relaying event")

	headers := BuildRequestHeaders(r.UserAgent(), remoteIP,
		HeaderField{Key: ContentTypeHeaderKey, Value: "application/json"},
	)

	return i.send(r.Context(), http.MethodPost, i.eventURL, headers, bytes.NewReader(payload))
}

// invokeCallback runs the event callback, converting a panic into an error
func (i *Interceptor) invokeCallback(r *http.Request, event InboundEvent, remoteIP string) (modifiers PayloadModifiers, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("callback panicked: %v", recovered)
		}
	}()

	return i.eventCallback(r, event, remoteIP)
}

// send performs one call to the provider
func (i *Interceptor) send(ctx context.Context, method, url string, headers []HeaderField, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, relayError("build upstream request", ErrUpstreamTransport, err)
	}

	applyHeaders(req.Header, headers)

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, relayError(fmt.Sprintf("%s %s", method, url), ErrUpstreamTransport, err)
	}

	return resp, nil
}
