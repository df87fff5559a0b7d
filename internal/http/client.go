package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/juju/ratelimit"
)

// Options configures a Client.
type Options struct {
	// UserAgent is sent with every request.
	UserAgent string

	// HeaderTimeout bounds the wait for response headers. The body of a
	// transfer is not subject to any timeout.
	HeaderTimeout time.Duration

	// RateLimit caps transfer bodies in bytes per second. Zero disables it.
	RateLimit int64

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// Client wraps HTTP operations for model file downloads.
//
// Example usage:
//
//	client := NewClient(Options{UserAgent: "model-downloader"})
//
//	resp, err := client.OpenRange(ctx, fileURL, 0)
//	if err != nil {
//	    return err
//	}
//	defer resp.Body.Close()
//	io.Copy(file, resp.Body)
type Client struct {
	httpClient *http.Client
	userAgent  string
	bucket     *ratelimit.Bucket
}

// NewClient creates a new HTTP client.
//
// The client is configured with:
//   - 30 second response header timeout unless overridden
//   - "model-downloader" User-Agent unless overridden
//   - a token bucket shared by all transfers when RateLimit is set
func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "model-downloader"
	}
	if opts.HeaderTimeout <= 0 {
		opts.HeaderTimeout = 30 * time.Second
	}

	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = opts.HeaderTimeout
		transport = t
	}

	c := &Client{
		httpClient: &http.Client{Transport: transport},
		userAgent:  opts.UserAgent,
	}
	if opts.RateLimit > 0 {
		c.bucket = ratelimit.NewBucketWithRate(float64(opts.RateLimit), opts.RateLimit)
	}
	return c
}

// ProgressWriter wraps a writer to track download progress.
//
// Written may be preset to the number of bytes already on disk when a
// transfer continues from an offset.
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes, or -1 when unknown.
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Response is an open transfer body.
type Response struct {
	// Body streams the file contents starting at Offset.
	Body io.ReadCloser

	// Offset is the byte position of the first byte of Body. It equals the
	// requested offset for a partial response and 0 when the server sent
	// the whole file instead.
	Offset int64

	// Total is the full size of the file, or -1 when the server did not say.
	Total int64
}

// Get performs a GET request and returns the response body as bytes.
//
// Use this for small documents such as a remote catalog. Model files are
// streamed with OpenRange instead.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// GetFileSize returns the size of a file at the given URL via HEAD request.
//
// Returns an error if:
//   - The request fails
//   - The response status is not 200 OK
//   - The server doesn't return a Content-Length header
func (c *Client) GetFileSize(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("no Content-Length header for %s", url)
	}

	return resp.ContentLength, nil
}

// OpenRange starts a GET request for url beginning at offset.
//
// When offset is positive a Range header is sent. A 206 response continues
// at offset; a 200 response means the server ignored the range and Body
// starts at byte 0. The caller owns Body and must close it.
func (c *Client) OpenRange(ctx context.Context, url string, offset int64) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	out := &Response{Body: resp.Body, Total: -1}
	switch resp.StatusCode {
	case http.StatusOK:
		out.Total = resp.ContentLength
	case http.StatusPartialContent:
		start, total, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if !ok || start != offset {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected Content-Range %q for offset %d", resp.Header.Get("Content-Range"), offset)
		}
		out.Offset = start
		out.Total = total
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: range starting at %d not satisfiable", resp.StatusCode, offset)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if c.bucket != nil {
		out.Body = limitedBody{Reader: ratelimit.Reader(resp.Body, c.bucket), Closer: resp.Body}
	}
	return out, nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

// parseContentRange parses "bytes start-end/total". Total is -1 for "*".
func parseContentRange(v string) (start, total int64, ok bool) {
	v, found := strings.CutPrefix(v, "bytes ")
	if !found {
		return 0, 0, false
	}
	span, size, found := strings.Cut(v, "/")
	if !found {
		return 0, 0, false
	}
	first, _, found := strings.Cut(span, "-")
	if !found {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if size == "*" {
		return start, -1, true
	}
	total, err = strconv.ParseInt(size, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return start, total, true
}
