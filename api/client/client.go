package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/vocdoni/selfpoll-relay/api"
	"github.com/vocdoni/selfpoll-relay/log"
)

const (
	// HTTPGET is the method string used for calling Request()
	HTTPGET = http.MethodGet
	// HTTPPOST is the method string used for calling Request()
	HTTPPOST = http.MethodPost
	// HTTPPUT is the method string used for calling Request()
	HTTPPUT = http.MethodPut
	// HTTPDELETE is the method string used for calling Request()
	HTTPDELETE = http.MethodDelete

	errCodeNot200 = "API error"

	// DefaultRetries is the number of attempts of a GET request whose
	// connection fails.
	DefaultRetries = 3
	// DefaultTimeout is the default timeout for the HTTP client. Admission
	// requests wait for the transaction to be mined.
	DefaultTimeout = 3 * time.Minute

	retryDelay = 500 * time.Millisecond
)

// HTTPclient is the relay API HTTP client.
type HTTPclient struct {
	c     *http.Client
	host  *url.URL
	token string
}

// New connects to the API host and returns the handle
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	c := &HTTPclient{
		c:    &http.Client{Timeout: DefaultTimeout},
		host: hostURL,
	}
	data, status, err := c.Request(HTTPGET, nil, nil, api.PingEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	log.Debugw("http client created", "host", hostURL.String())
	return c, nil
}

// SetSessionToken configures the bearer token sent on every request, as
// required by the restricted endpoints.
func (c *HTTPclient) SetSessionToken(token string) {
	c.token = token
}

// Request sends a request to the endpoint built by joining urlPath. A non nil
// jsonBody is sent as JSON, params holds query key/value pairs. It returns
// the response body and status code. Only GET requests are retried: a state
// changing request may already have been relayed to the chain.
func (c *HTTPclient) Request(method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	var body []byte
	if jsonBody != nil {
		var err error
		if body, err = json.Marshal(jsonBody); err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}

	u := *c.host
	u.Path = path.Join(u.Path, path.Join(urlPath...))
	if len(params) > 0 {
		values := url.Values{}
		for i := 0; i+1 < len(params); i += 2 {
			values.Set(params[i], params[i+1])
		}
		u.RawQuery = values.Encode()
	}
	log.Debugw("http client request", "type", method, "url", u.String(), "bytes", len(body))

	attempts := 1
	if method == HTTPGET {
		attempts = DefaultRetries
	}
	var (
		resp *http.Response
		err  error
	)
	for i := 1; i <= attempts; i++ {
		if resp, err = c.do(method, u.String(), body); err == nil {
			break
		}
		log.Warnw("http request failed", "error", err.Error(), "attempt", i, "attempts", attempts)
		if i < attempts {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("http request ultimately failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (c *HTTPclient) do(method, target string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.c.Do(req)
}
