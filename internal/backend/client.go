package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/five82/quad/internal/campus"
)

const (
	defaultUserAgent = "quad/0.1"
	requestTimeout   = 10 * time.Second
	tokenTTL         = 5 * time.Minute
	tokenIssuer      = "quad"
)

// ErrMissingCredentials is returned by NewClient when the student id or token
// secret is empty.
var ErrMissingCredentials = errors.New("backend credentials missing")

// Credentials identify the student to the portal API.
type Credentials struct {
	StudentID string
	Secret    string // HS256 signing key shared with the API gateway
}

// Client talks to the portal HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	creds     Credentials
	now       func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient builds a Client for the API at baseURL.
func NewClient(baseURL string, creds Credentials) (*Client, error) {
	if strings.TrimSpace(creds.StudentID) == "" || strings.TrimSpace(creds.Secret) == "" {
		return nil, ErrMissingCredentials
	}
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
		creds:     creds,
		now:       time.Now,
	}, nil
}

// UpdateGrade writes the grade and returns the stored copy.
func (c *Client) UpdateGrade(ctx context.Context, grade campus.Grade) (campus.Grade, error) {
	var out campus.Grade
	endpoint := c.endpoint("api", "grades", grade.ID)
	if err := c.do(ctx, http.MethodPut, endpoint, grade, &out); err != nil {
		return campus.Grade{}, err
	}
	return out, nil
}

// CheckoutBook lends the book to the authenticated student.
func (c *Client) CheckoutBook(ctx context.Context, book campus.LibraryBook) (campus.LibraryBook, error) {
	return c.bookAction(ctx, book, "checkout")
}

// ReturnBook ends the loan.
func (c *Client) ReturnBook(ctx context.Context, book campus.LibraryBook) (campus.LibraryBook, error) {
	return c.bookAction(ctx, book, "return")
}

// RenewBook extends the loan.
func (c *Client) RenewBook(ctx context.Context, book campus.LibraryBook) (campus.LibraryBook, error) {
	return c.bookAction(ctx, book, "renew")
}

func (c *Client) bookAction(ctx context.Context, book campus.LibraryBook, action string) (campus.LibraryBook, error) {
	var out campus.LibraryBook
	endpoint := c.endpoint("api", "library", "books", book.ID, action)
	if err := c.do(ctx, http.MethodPost, endpoint, book, &out); err != nil {
		return campus.LibraryBook{}, err
	}
	return out, nil
}

// bearer returns a cached token, minting a new one shortly before expiry.
func (c *Client) bearer() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.token != "" && now.Add(30*time.Second).Before(c.expires) {
		return c.token, nil
	}
	expires := now.Add(tokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   c.creds.StudentID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.creds.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	c.token, c.expires = signed, expires
	return signed, nil
}

type apiError struct {
	Error string `json:"error"`
}

// endpoint joins segments onto the base URL, escaping each one so an id
// containing a slash stays a single segment.
func (c *Client) endpoint(segments ...string) *url.URL {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	root := *c.baseURL
	root.Path, root.RawPath = "/", ""
	return root.JoinPath(escaped...)
}

func (c *Client) do(ctx context.Context, method string, reqURL *url.URL, body, dest any) error {

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	token, err := c.bearer()
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := strings.TrimSpace(apiErr.Error)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	case resp.StatusCode >= 400:
		return fmt.Errorf("api %s returned status %d", reqURL.EscapedPath(), resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("backend url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse backend url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
