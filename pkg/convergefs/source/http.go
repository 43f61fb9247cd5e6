package source

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// HTTPClient consumes the listing and fetch RPCs of a remote listing
// service over HTTP. The service itself is an external collaborator; this
// is only the thin consumer side, one client per origin.
type HTTPClient struct {
	base   string // http://host:port
	client *http.Client
}

// NewHTTPClient returns a client bound to one origin ("host:port").
func NewHTTPClient(origin string) *HTTPClient {
	return &HTTPClient{
		base:   "http://" + origin,
		client: http.DefaultClient,
	}
}

// List calls the listing RPC and returns the raw newline-delimited body.
func (c *HTTPClient) List(req ListRequest) (string, error) {
	q := url.Values{}
	q.Set("path", req.Path)
	q.Set("links", string(req.LinkMode))
	q.Set("recurse", strconv.FormatBool(req.Recurse))
	for _, pattern := range req.Ignore {
		q.Add("ignore", pattern)
	}
	body, err := c.get("/list?" + q.Encode())
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Fetch calls the content RPC for a single path.
func (c *HTTPClient) Fetch(p string) ([]byte, error) {
	q := url.Values{}
	q.Set("path", p)
	return c.get("/content?" + q.Encode())
}

func (c *HTTPClient) get(pathAndQuery string) ([]byte, error) {
	resp, err := c.client.Get(c.base + pathAndQuery)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %s", c.base, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
