// Package qrcode builds image URLs for the external QR service and downloads the
// rendered PNG so the web app can offer it as a file.
package qrcode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultEndpoint   = "https://api.qrserver.com/v1/create-qr-code/"
	DefaultSize       = 300
	DefaultColor      = "D42426"
	DefaultBackground = "ffffff"
	DefaultMargin     = 10
	DownloadFilename  = "presente-natal-qrcode.png"

	maxImageBytes = 2 << 20
)

// ErrUpstream wraps failures of the QR service after retries are exhausted.
var ErrUpstream = errors.New("qrcode: upstream failure")

type Client struct {
	endpoint   string
	size       int
	color      string
	background string
	margin     int
	retries    uint64
	interval   time.Duration
	http       *resty.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if strings.TrimSpace(endpoint) != "" {
			c.endpoint = strings.TrimSpace(endpoint)
		}
	}
}

func WithSize(px int) Option {
	return func(c *Client) {
		if px > 0 {
			c.size = px
		}
	}
}

// WithColors sets foreground and background as hex without '#'.
func WithColors(fg, bg string) Option {
	return func(c *Client) {
		if fg = strings.TrimPrefix(strings.TrimSpace(fg), "#"); fg != "" {
			c.color = fg
		}
		if bg = strings.TrimPrefix(strings.TrimSpace(bg), "#"); bg != "" {
			c.background = bg
		}
	}
}

func WithMargin(px int) Option {
	return func(c *Client) {
		if px >= 0 {
			c.margin = px
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithRetries sets how many times a failed download is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = uint64(n)
		}
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		size:       DefaultSize,
		color:      DefaultColor,
		background: DefaultBackground,
		margin:     DefaultMargin,
		retries:    3,
		interval:   200 * time.Millisecond,
		http:       resty.New().SetTimeout(5 * time.Second),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.http.SetHeader("Accept", "image/png")
	return c
}

// ImageURL returns the service URL rendering target as a QR image.
func (c *Client) ImageURL(target string) string {
	dim := strconv.Itoa(c.size)
	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(c.endpoint)
	b.WriteString(sep)
	b.WriteString("size=" + dim + "x" + dim)
	b.WriteString("&data=" + url.QueryEscape(target))
	b.WriteString("&color=" + url.QueryEscape(c.color))
	b.WriteString("&bgcolor=" + url.QueryEscape(c.background))
	b.WriteString("&margin=" + strconv.Itoa(c.margin))
	return b.String()
}

// Fetch downloads the PNG for target, retrying transient failures with exponential
// backoff. 4xx responses are not retried.
func (c *Client) Fetch(ctx context.Context, target string) ([]byte, error) {
	if strings.TrimSpace(target) == "" {
		return nil, errors.New("qrcode: target is required")
	}
	imageURL := c.ImageURL(target)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.interval
	exp.Multiplier = 2
	exp.MaxInterval = 2 * time.Second
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, c.retries), ctx)

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		resp, err := c.http.R().SetContext(ctx).Get(imageURL)
		if err != nil {
			return err
		}
		status := resp.StatusCode()
		switch {
		case status == http.StatusOK:
		case status >= 400 && status < 500 && status != http.StatusTooManyRequests:
			return backoff.Permanent(fmt.Errorf("status %d", status))
		default:
			return fmt.Errorf("status %d", status)
		}
		data := resp.Body()
		if len(data) == 0 {
			return errors.New("empty body")
		}
		if len(data) > maxImageBytes {
			return backoff.Permanent(fmt.Errorf("image exceeds %d bytes", maxImageBytes))
		}
		body = data
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("qr download retry",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return body, nil
}
