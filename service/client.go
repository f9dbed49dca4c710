package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/DockYard/plausible-proxy/plausible"
)

// ProxyServiceClient provides a client for making requests
// through the proxy service the way the Plausible script does
type ProxyServiceClient struct {
	*http.Client
	config ProxyServiceClientConfig
}

// ProxyServiceClientConfig wraps values used to
// create a new ProxyServiceClient
type ProxyServiceClientConfig struct {
	ProxyServiceHostname string
	LocalScriptPath      string
	UserAgent            string
}

// Event is the event body the Plausible script posts
type Event struct {
	Name     string `json:"n"`
	URL      string `json:"u"`
	Domain   string `json:"d"`
	Referrer string `json:"r,omitempty"`
}

// NewProxyServiceClient creates a new ProxyServiceClient
// using the provided config, returning the client and error (if any)
func NewProxyServiceClient(config ProxyServiceClientConfig) (*ProxyServiceClient, error) {
	if config.ProxyServiceHostname == "" {
		return nil, fmt.Errorf("proxy service hostname must not be empty")
	}

	if config.LocalScriptPath == "" {
		config.LocalScriptPath = plausible.DefaultLocalScriptPath
	}

	return &ProxyServiceClient{
		Client: &http.Client{},
		config: config,
	}, nil
}

// GetScript fetches the analytics script through the proxy service
func (c *ProxyServiceClient) GetScript(ctx context.Context) ([]byte, error) {
	request, err := CreateRequest(ctx, http.MethodGet, c.config.ProxyServiceHostname+c.config.LocalScriptPath, nil)
	if err != nil {
		return nil, err
	}

	return Call(*c, request)
}

// SendEvent posts event to the proxy service event endpoint
func (c *ProxyServiceClient) SendEvent(ctx context.Context, event Event) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(&event); err != nil {
		return err
	}

	request, err := CreateRequest(ctx, http.MethodPost, c.config.ProxyServiceHostname+plausible.EventPath, &buf)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "text/plain")

	_, err = Call(*c, request)

	return err
}

// GetServicecheck calls `ServicecheckPath`, returning error (if any)
// if the proxy service is not in service
func (c *ProxyServiceClient) GetServicecheck(ctx context.Context) error {
	request, err := CreateRequest(ctx, http.MethodGet, c.config.ProxyServiceHostname+ServicecheckPath, nil)
	if err != nil {
		return err
	}

	_, err = Call(*c, request)

	return err
}

// RequestError provides additional details about the failed request.
type RequestError struct {
	message    string
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface for RequestError.
func (err *RequestError) Error() string {
	return err.message
}

// NewError creates a new RequestError
func NewError(message, url string, statusCode int) error {
	return &RequestError{message: message, URL: url, StatusCode: statusCode}
}

// CreateRequest isolates duplicate code in creating http requests.
func CreateRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return req, &RequestError{
			URL:     path,
			message: err.Error(),
		}
	}
	return req, nil
}

// Call makes an http request to the proxy service
// returning the response body and error (if any)
func Call(client ProxyServiceClient, request *http.Request) ([]byte, error) {
	if client.config.UserAgent != "" {
		request.Header.Set("User-Agent", client.config.UserAgent)
	}

	response, err := client.Do(request)

	if err != nil {
		return nil, &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}

	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}

	if !(response.StatusCode >= 200 && response.StatusCode <= 299) {
		requestURL := request.URL.String()
		return body, &RequestError{
			StatusCode: response.StatusCode,
			URL:        requestURL,
			Body:       string(body),
			message:    fmt.Sprintf("request to %s error server http error %d", requestURL, response.StatusCode),
		}
	}

	return body, nil
}
