// Package leetcode wraps the upstream endpoints the tracker reads from: the
// paginated submissions dump, the GraphQL API, and the problem catalog.
package leetcode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	submissionsPath = "/api/submissions/"
	problemsAllPath = "/api/problems/all/"
	graphqlPath     = "/graphql/"

	usernameCacheTTL = 60 * time.Second
)

// Client captures the HTTP calls the tracker issues toward LeetCode. The
// session and csrf values are the cookie pair of a logged-in browser session;
// the dump endpoint rejects requests without them.
type Client struct {
	httpClient *http.Client
	baseURL    string
	session    string
	csrfToken  string

	mu                sync.Mutex
	cachedUsername    string
	usernameFetchedAt time.Time
}

// NewClient configures a client with sane defaults.
func NewClient(baseURL, session, csrfToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		csrfToken:  csrfToken,
	}
}

// UnixTime decodes a unix-seconds timestamp that upstream serves either as a
// number (dump API) or as a string (GraphQL API).
type UnixTime int64

func (t *UnixTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = 0
		return nil
	}
	// Some GraphQL deployments serve fractional seconds.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	*t = UnixTime(int64(f))
	return nil
}

// Submission mirrors one entry of the submissions dump payload.
type Submission struct {
	Timestamp     UnixTime `json:"timestamp"`
	StatusDisplay string   `json:"status_display"`
	TitleSlug     string   `json:"title_slug"`
	Title         string   `json:"title"`
}

// Slug prefers the canonical slug and falls back to the display title, which
// is all older dump payloads carry.
func (s Submission) Slug() string {
	if s.TitleSlug != "" {
		return s.TitleSlug
	}
	return s.Title
}

// SubmissionsDump wraps one page of the offset-paginated dump endpoint.
type SubmissionsDump struct {
	Submissions []Submission `json:"submissions_dump"`
	HasNext     bool         `json:"has_next"`
}

// SubmissionsPage fetches one page of the submissions dump.
func (c *Client) SubmissionsPage(ctx context.Context, offset, limit int) (SubmissionsDump, error) {
	endpoint := c.baseURL + submissionsPath
	query := make(url.Values)
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return SubmissionsDump{}, err
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SubmissionsDump{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return SubmissionsDump{}, &StatusError{Endpoint: "submissions API", StatusCode: resp.StatusCode}
	}
	var dump SubmissionsDump
	if err := json.NewDecoder(resp.Body).Decode(&dump); err != nil {
		return SubmissionsDump{}, fmt.Errorf("decode submissions dump: %w", err)
	}
	return dump, nil
}

// CatalogEntry pairs a problem slug with its difficulty level.
type CatalogEntry struct {
	Slug  string
	Level int
}

type catalogPayload struct {
	StatStatusPairs []struct {
		Stat struct {
			QuestionTitleSlug string `json:"question__title_slug"`
		} `json:"stat"`
		Difficulty struct {
			Level int `json:"level"`
		} `json:"difficulty"`
	} `json:"stat_status_pairs"`
}

// ProblemCatalog fetches the full problem list. The payload is large; callers
// cache the slugs they care about.
func (c *Client) ProblemCatalog(ctx context.Context) ([]CatalogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+problemsAllPath, nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Endpoint: "problems API", StatusCode: resp.StatusCode}
	}
	var payload catalogPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode problem catalog: %w", err)
	}

	entries := make([]CatalogEntry, 0, len(payload.StatStatusPairs))
	for _, pair := range payload.StatStatusPairs {
		if pair.Stat.QuestionTitleSlug == "" {
			continue
		}
		entries = append(entries, CatalogEntry{
			Slug:  pair.Stat.QuestionTitleSlug,
			Level: pair.Difficulty.Level,
		})
	}
	return entries, nil
}

// CurrentUsername resolves the logged-in user via the userStatus query. The
// result is cached briefly on the client so repeated builds within the same
// minute do not re-query.
func (c *Client) CurrentUsername(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.cachedUsername != "" && time.Since(c.usernameFetchedAt) < usernameCacheTTL {
		name := c.cachedUsername
		c.mu.Unlock()
		return name, nil
	}
	c.mu.Unlock()

	data, err := c.graphql(ctx, userStatusQuery, nil)
	if err != nil {
		c.forgetUsername()
		return "", err
	}
	var payload struct {
		UserStatus struct {
			Username string `json:"username"`
		} `json:"userStatus"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		c.forgetUsername()
		return "", fmt.Errorf("decode user status: %w", err)
	}
	if payload.UserStatus.Username == "" {
		c.forgetUsername()
		return "", ErrNoUsername
	}

	c.mu.Lock()
	c.cachedUsername = payload.UserStatus.Username
	c.usernameFetchedAt = time.Now()
	c.mu.Unlock()
	return payload.UserStatus.Username, nil
}

func (c *Client) forgetUsername() {
	c.mu.Lock()
	c.cachedUsername = ""
	c.usernameFetchedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Client) decorate(req *http.Request) {
	if c.session != "" || c.csrfToken != "" {
		var cookies []string
		if c.session != "" {
			cookies = append(cookies, "LEETCODE_SESSION="+c.session)
		}
		if c.csrfToken != "" {
			cookies = append(cookies, "csrftoken="+c.csrfToken)
		}
		req.Header.Set("Cookie", strings.Join(cookies, "; "))
	}
	if c.csrfToken != "" {
		req.Header.Set("x-csrftoken", c.csrfToken)
	}
	req.Header.Set("x-requested-with", "XMLHttpRequest")
}
