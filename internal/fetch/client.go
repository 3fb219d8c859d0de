package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// MaxBody bounds every upstream payload we are willing to buffer.
const MaxBody = 4 << 20

var ErrPayloadTooLarge = errors.New("payload too large")

// Response is the raw outcome of a GET: status code and body bytes.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Getter is the transport capability used by every adapter.
type Getter interface {
	Get(ctx context.Context, url string, timeout time.Duration) (Response, error)
}

type Options struct {
	RetryMax  int
	UserAgent string
	Logger    *logrus.Logger
}

type Client struct {
	http      *retryablehttp.Client
	userAgent string
}

func NewClient(opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = opts.RetryMax
	rc.Logger = nil
	if opts.Logger != nil {
		rc.Logger = leveled{opts.Logger}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "commune-insights/1.0"
	}
	return &Client{http: rc, userAgent: ua}
}

// Get issues one GET bounded by timeout. A zero timeout leaves ctx untouched.
func (c *Client) Get(ctx context.Context, url string, timeout time.Duration) (Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json, text/html;q=0.9, */*;q=0.8")
	req.Header.Set("user-agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	body, err := ioReadAllLimit(resp.Body, MaxBody)
	if err != nil {
		return Response{Status: resp.StatusCode}, err
	}
	return Response{Status: resp.StatusCode, Body: body}, nil
}

// GetText returns the body of a 2xx response as a string.
func GetText(ctx context.Context, g Getter, url string, timeout time.Duration) (string, error) {
	resp, err := g.Get(ctx, url, timeout)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &StatusError{URL: url, Status: resp.Status}
	}
	return string(resp.Body), nil
}

// GetJSON decodes the body of a 2xx response into out.
func GetJSON(ctx context.Context, g Getter, url string, timeout time.Duration, out any) error {
	resp, err := g.Get(ctx, url, timeout)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &StatusError{URL: url, Status: resp.Status}
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.Status)
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, ErrPayloadTooLarge
	}
	return b, nil
}

// leveled routes retryablehttp's logging through logrus at debug level.
type leveled struct{ l *logrus.Logger }

func (x leveled) Error(msg string, kv ...interface{}) { x.l.WithFields(fields(kv)).Debug(msg) }
func (x leveled) Info(msg string, kv ...interface{})  { x.l.WithFields(fields(kv)).Debug(msg) }
func (x leveled) Debug(msg string, kv ...interface{}) { x.l.WithFields(fields(kv)).Debug(msg) }
func (x leveled) Warn(msg string, kv ...interface{})  { x.l.WithFields(fields(kv)).Debug(msg) }

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			f[k] = kv[i+1]
		}
	}
	return f
}
