package spam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidKey is returned when the service rejects the configured key
var ErrInvalidKey = errors.New("akismet key is not valid")

// AkismetClient talks to the Akismet REST API
type AkismetClient struct {
	key      string
	blog     string
	endpoint string
	http     *http.Client
	log      zerolog.Logger

	mu       sync.Mutex
	verified bool
}

// NewAkismetClient creates a client for the given key and site url
func NewAkismetClient(key, blog, endpoint string, timeout time.Duration, log zerolog.Logger) *AkismetClient {
	return &AkismetClient{
		key:      key,
		blog:     blog,
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
		log:      log.With().Str("component", "akismet").Logger(),
	}
}

// VerifyKey checks the key once; later calls return immediately after a success
func (c *AkismetClient) VerifyKey(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verified {
		return nil
	}

	body, _, err := c.post(ctx, "/verify-key", url.Values{
		"key":  {c.key},
		"blog": {c.blog},
	})
	if err != nil {
		return err
	}
	if body != "valid" {
		return ErrInvalidKey
	}

	c.verified = true
	c.log.Info().Str("blog", c.blog).Msg("Akismet key verified")
	return nil
}

// CheckComment asks Akismet whether sub is spam
func (c *AkismetClient) CheckComment(ctx context.Context, sub Submission) (Result, error) {
	if err := c.VerifyKey(ctx); err != nil {
		return Junk, err
	}

	form := url.Values{
		"api_key":              {c.key},
		"blog":                 {c.blog},
		"user_ip":              {sub.IP},
		"user_agent":           {sub.UserAgent},
		"comment_type":         {"comment"},
		"comment_author":       {sub.Author},
		"comment_author_email": {sub.Email},
		"comment_content":      {sub.Content},
	}
	if sub.URL != "" {
		form.Set("permalink", c.blog+sub.URL)
	}

	body, header, err := c.post(ctx, "/comment-check", form)
	if err != nil {
		return Junk, err
	}

	switch body {
	case "true":
		c.log.Debug().Str("ip", sub.IP).Msg("Akismet flagged comment")
		return Junk, nil
	case "false":
		return Ham, nil
	default:
		return Junk, fmt.Errorf("unexpected akismet response %q: %s", body, header.Get("X-akismet-debug-help"))
	}
}

func (c *AkismetClient) post(ctx context.Context, path string, form url.Values) (string, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "threaded-comments-api/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("akismet %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", nil, fmt.Errorf("akismet %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("akismet %s: status %d", path, resp.StatusCode)
	}
	return strings.TrimSpace(string(raw)), resp.Header, nil
}
