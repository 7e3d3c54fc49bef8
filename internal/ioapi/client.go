// Package ioapi implements catalog.Client over the HTTP curriculum API.
// This is an impure I/O package that implements contracts
// defined in pkg/.
package ioapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clasier/catdb/pkg/catalog"
	"github.com/clasier/catdb/pkg/config"
	"github.com/clasier/catdb/pkg/tree"
	"github.com/gnames/gnfmt"
	"github.com/sethvargo/go-retry"
)

// client implements catalog.Client.
type client struct {
	baseURL string
	token   string
	retries int
	backoff time.Duration
	http    *http.Client
	enc     gnfmt.Encoder
}

// New creates a curriculum API client. Every request is bounded by
// cfg.Timeout.
func New(cfg config.APIConfig) catalog.Client {
	return &client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
		retries: cfg.Retries,
		backoff: 250 * time.Millisecond,
		http:    &http.Client{Timeout: cfg.Timeout},
		enc:     gnfmt.GNjson{},
	}
}

// ListValues implements catalog.Client.
func (c *client) ListValues(
	ctx context.Context,
	field string,
) (tree.Node, error) {
	return c.get(ctx, "list_of_values", "fieldname", field)
}

// CourseListings implements catalog.Client.
func (c *client) CourseListings(
	ctx context.Context,
	subject string,
) (tree.Node, error) {
	return c.get(ctx, "courses", "subject", subject)
}

// OfferingMetadata implements catalog.Client.
func (c *client) OfferingMetadata(
	ctx context.Context,
	term, courseID string,
) (tree.Node, error) {
	return c.get(ctx, "classes", "strm", term, "crse_id", courseID)
}

// CourseDetails implements catalog.Client.
func (c *client) CourseDetails(
	ctx context.Context,
	courseID, offerNumber string,
) (tree.Node, error) {
	return c.get(ctx,
		"courses", "crse_id", courseID, "crse_offer_nbr", offerNumber)
}

// statusErr marks a non-2xx response.
type statusErr struct {
	code int
}

func (e statusErr) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

// retryable reports if a failed request may succeed on a later attempt.
func retryable(err error) bool {
	var se statusErr
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

func (c *client) get(ctx context.Context, parts ...string) (tree.Node, error) {
	path := c.path(parts...)
	slog.Debug("API request", "path", path)

	var body []byte
	backoff := retry.WithMaxRetries(
		uint64(c.retries), retry.NewExponential(c.backoff),
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		body, err = c.fetch(ctx, path)
		if err != nil && retryable(err) && ctx.Err() == nil {
			slog.Debug("API request failed, retrying",
				"path", path, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		var se statusErr
		if errors.As(err, &se) {
			return tree.Absent, StatusError(path, se.code)
		}
		return tree.Absent, RequestError(path, err)
	}

	var res any
	if err = c.enc.Decode(body, &res); err != nil {
		return tree.Absent, DecodeError(path, err)
	}
	return tree.New(res), nil
}

func (c *client) fetch(ctx context.Context, path string) ([]byte, error) {
	u := c.baseURL + path
	if c.token != "" {
		u += "?" + url.Values{"access_token": {c.token}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error carries the full URL with the token
		var ue *url.Error
		if errors.As(err, &ue) {
			return nil, ue.Err
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain for connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, statusErr{code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// path builds an escaped request path. The access token is never part of
// it, so paths are safe to log.
func (c *client) path(parts ...string) string {
	var sb strings.Builder
	for _, v := range parts {
		sb.WriteString("/")
		sb.WriteString(url.PathEscape(v))
	}
	return sb.String()
}
