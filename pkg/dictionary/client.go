package dictionary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultHost is the RapidAPI host of the word-graph dictionary.
	DefaultHost = "twinword-word-graph-dictionary.p.rapidapi.com"
	// DefaultURL is the definition endpoint.
	DefaultURL = "https://" + DefaultHost + "/definition/"

	maxResponseSize = 1 << 20
)

// ErrLookupFailure marks a failed request or an unparseable response, as
// opposed to a response that simply has no definitions.
var ErrLookupFailure = errors.New("dictionary lookup failed")

// Client queries the word-graph dictionary definition endpoint.
type Client struct {
	URL    string
	Host   string
	APIKey string
	HTTP   *http.Client
}

// NewClient creates a client for the default endpoint with a bounded timeout.
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		URL:    DefaultURL,
		Host:   DefaultHost,
		APIKey: apiKey,
		HTTP:   &http.Client{Timeout: timeout},
	}
}

type definitionResponse struct {
	Entry      string   `json:"entry"`
	Meaning    *Meaning `json:"meaning"`
	ResultCode string   `json:"result_code"`
	ResultMsg  string   `json:"result_msg"`
}

// Lookup fetches the definitions for stem. The stem is lower-cased before the
// request. An Entry with no definitions is a successful lookup; transport,
// status and decoding problems return an error wrapping ErrLookupFailure.
func (c *Client) Lookup(ctx context.Context, stem string) (Entry, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: bad endpoint: %v", ErrLookupFailure, err)
	}
	q := u.Query()
	q.Set("entry", strings.ToLower(stem))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrLookupFailure, err)
	}
	req.Header.Set("x-rapidapi-key", c.APIKey)
	req.Header.Set("x-rapidapi-host", c.Host)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrLookupFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Entry{}, fmt.Errorf("%w: %q returned status %s", ErrLookupFailure, stem, resp.Status)
	}

	var body definitionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return Entry{}, fmt.Errorf("%w: decode %q: %v", ErrLookupFailure, stem, err)
	}
	if body.Meaning == nil {
		return Entry{}, fmt.Errorf("%w: no meaning for %q (%s %s)", ErrLookupFailure, stem, body.ResultCode, body.ResultMsg)
	}
	return ParseMeaning(*body.Meaning), nil
}
