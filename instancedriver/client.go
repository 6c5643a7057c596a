package instancedriver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const (
	apiVersionPrefix    = "/api/v1"
	apiParametersPath   = "/parameters"
	apiDesiredPlayPath  = "/desired-play-state"
	apiPowerChannelPath = "/power/:channel"
)

// Client is the control-plane contract a FixedInstanceActor drives: set
// parameters, set desired play state, and (for instances acting as a
// power source) set a PDU channel. Grounded on the teacher's
// agent.Agent interface (harpoon-agent/lib/agent.go), narrowed to the
// operations spec.md §6 names.
type Client interface {
	SetParameters(params JsonObject) error
	SetDesiredPlayState(desired DesiredInstancePlayState) error
	SetPowerChannel(channel string, on bool) error
	// SetBaseURL updates the driver endpoint in place, per
	// NotifyInstanceDriverUrl (spec.md §4.2).
	SetBaseURL(baseURL string)
	BaseURL() string
}

// httpClient is the production Client, grounded directly on the
// teacher's remoteAgent: a thin wrapper around net/http issuing JSON
// PUT requests and decoding a uniform error envelope.
type httpClient struct {
	base url.URL
}

var _ Client = &httpClient{}

// NewHTTPClient constructs a driver client against baseURL. An invalid
// URL is reported immediately rather than on first use, matching the
// teacher's newRemoteAgent.
func NewHTTPClient(baseURL string) (*httpClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("instance driver client: %w", err)
	}
	return &httpClient{base: *u}, nil
}

func (c *httpClient) BaseURL() string { return c.base.String() }

func (c *httpClient) SetBaseURL(baseURL string) {
	if u, err := url.Parse(baseURL); err == nil {
		c.base = *u
	}
}

func (c *httpClient) SetParameters(params JsonObject) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(params); err != nil {
		return fmt.Errorf("encoding parameters: %w", err)
	}
	u := c.base
	u.Path = apiVersionPrefix + apiParametersPath
	return c.do(http.MethodPut, u.String(), &body, http.StatusAccepted)
}

func (c *httpClient) SetDesiredPlayState(desired DesiredInstancePlayState) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(desired); err != nil {
		return fmt.Errorf("encoding desired play state: %w", err)
	}
	u := c.base
	u.Path = apiVersionPrefix + apiDesiredPlayPath
	return c.do(http.MethodPut, u.String(), &body, http.StatusAccepted)
}

func (c *httpClient) SetPowerChannel(channel string, on bool) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(map[string]bool{"on": on}); err != nil {
		return fmt.Errorf("encoding power channel command: %w", err)
	}
	u := c.base
	u.Path = apiVersionPrefix + "/power/" + channel
	return c.do(http.MethodPut, u.String(), &body, http.StatusAccepted)
}

func (c *httpClient) do(method, url string, body *bytes.Buffer, okStatus int) error {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("constructing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("driver unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == okStatus || resp.StatusCode == http.StatusOK {
		return nil
	}

	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("driver returned HTTP %s and an unparseable error body", resp.Status)
	}
	return fmt.Errorf("%s (HTTP %d)", errResp.Error, errResp.StatusCode)
}

type errorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
}
