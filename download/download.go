package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

// Response is the part of an http response that imgfetch cares about.
type Response struct {
	ContentType string // Empty if the server did not send one.
	Body        []byte
}

// TransportError indicates that a GET did not produce a usable response:
// the request could not be sent, timed out, or came back with a non-2xx
// status.
type TransportError struct {
	URL        string
	StatusCode int // 0 if no response was received.
	Err        error
}

// Error omits the url; callers report it alongside the error.
func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// stripURL removes a *url.Error wrapper, which only repeats the operation and
// the url.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

// GetBody performs an http GET with url=u using the suppplied client and
// header. The caller must close the returned response body.
func GetBody(ctx context.Context, hc *http.Client, u string, header http.Header) (*http.Response, error) {
	log.Debugf("get: %s", u)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, &TransportError{URL: u, Err: stripURL(err)}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rsp, err := hc.Do(req)
	if err != nil {
		return nil, &TransportError{URL: u, Err: fmt.Errorf("failed to send request: %w", stripURL(err))}
	}

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		rsp.Body.Close()
		return nil, &TransportError{
			URL:        u,
			StatusCode: rsp.StatusCode,
			Err:        fmt.Errorf("error status: %s", rsp.Status),
		}
	}

	return rsp, nil
}

// Get calls GetBody(), then reads the full response. The whole exchange,
// including reading the body, is bounded by the given timeout. A timeout <= 0
// means no timeout beyond the one carried by ctx.
func Get(ctx context.Context, hc *http.Client, u string, header http.Header, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	rsp, err := GetBody(ctx, hc, u, header)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()

	b, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, &TransportError{
			URL:        u,
			StatusCode: rsp.StatusCode,
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return &Response{
		ContentType: rsp.Header.Get("Content-Type"),
		Body:        b,
	}, nil
}
