package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/anime-shed/plant-classifier-go/pkg/models"
)

// maxErrorBody bounds how much of a failed response is kept for logs.
const maxErrorBody = 512

// Field is a plain text multipart field.
type Field struct {
	Name  string
	Value string
}

// StatusError reports a non-2xx answer from an upstream service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status code %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status code %d: %s", e.StatusCode, e.Body)
}

// Options tune the shared HTTP client.
type Options struct {
	Timeout     time.Duration
	InsecureTLS bool
	UserAgent   string
}

// Client posts multipart forms to the classifier and feedback services.
// It makes exactly one attempt per call.
type Client struct {
	client    *http.Client
	userAgent string
}

// NewClient creates an upstream client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Plant-Classifier-Web/1.0"
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,

		// Two upstreams, one request each at a time per session
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 8192,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureTLS,
		},
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		userAgent: opts.UserAgent,
	}
}

// NewClientWithHTTP wraps an existing http.Client, mostly for tests.
func NewClientWithHTTP(c *http.Client) *Client {
	return &Client{client: c, userAgent: "Plant-Classifier-Web/1.0"}
}

// PostMultipart sends fields plus the image under fileField to endpoint.
// A non-2xx status is returned as *StatusError with the body consumed;
// on success the caller owns resp.Body.
func (c *Client) PostMultipart(ctx context.Context, endpoint, fileField string, img *models.Image, fields ...Field) (*http.Response, error) {
	body, contentType, err := EncodeMultipart(fileField, img, fields...)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}

// EncodeMultipart builds a multipart/form-data body. Text fields are
// written first, then the file part when img is non-nil.
func EncodeMultipart(fileField string, img *models.Image, fields ...Field) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for _, f := range fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.Name, err)
		}
	}

	if img != nil {
		name := img.Name
		if name == "" {
			name = "upload"
		}
		ct := img.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(fileField), escapeQuotes(name)))
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
