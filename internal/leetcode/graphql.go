package leetcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// acceptedStatusCode is the numeric status value the status-filtered query
// variant uses for accepted submissions.
const acceptedStatusCode = 10

const userStatusQuery = `
	query userStatus {
		userStatus {
			username
		}
	}`

const recentAcceptedQuery = `
	query recentAcSubmissionList($username: String!) {
		recentAcSubmissionList(username: $username) {
			title
			titleSlug
			timestamp
		}
	}`

// The three submissionList shapes, tried in priority order. Deployments
// differ on whether the query takes an explicit username, nothing, or a
// numeric status filter.
var submissionListVariants = []submissionListVariant{
	{
		source: "graphql_submission_list_username",
		query: `
			query submissionList($offset: Int!, $limit: Int!, $lastKey: String, $username: String!) {
				submissionList(offset: $offset, limit: $limit, lastKey: $lastKey, username: $username) {
					lastKey
					hasNext
					submissions {
						title
						titleSlug
						timestamp
						statusDisplay
					}
				}
			}`,
		variables: func(username string, offset, limit int, lastKey string) map[string]any {
			return map[string]any{"username": username, "offset": offset, "limit": limit, "lastKey": nilIfEmpty(lastKey)}
		},
	},
	{
		source: "graphql_submission_list_default",
		query: `
			query submissionList($offset: Int!, $limit: Int!, $lastKey: String) {
				submissionList(offset: $offset, limit: $limit, lastKey: $lastKey) {
					lastKey
					hasNext
					submissions {
						title
						titleSlug
						timestamp
						statusDisplay
					}
				}
			}`,
		variables: func(_ string, offset, limit int, lastKey string) map[string]any {
			return map[string]any{"offset": offset, "limit": limit, "lastKey": nilIfEmpty(lastKey)}
		},
	},
	{
		source: "graphql_submission_list_status",
		query: `
			query submissionList($offset: Int!, $limit: Int!, $lastKey: String, $status: Int) {
				submissionList(offset: $offset, limit: $limit, lastKey: $lastKey, status: $status) {
					lastKey
					hasNext
					submissions {
						title
						titleSlug
						timestamp
						statusDisplay
					}
				}
			}`,
		variables: func(_ string, offset, limit int, lastKey string) map[string]any {
			return map[string]any{"offset": offset, "limit": limit, "lastKey": nilIfEmpty(lastKey), "status": acceptedStatusCode}
		},
	},
}

type submissionListVariant struct {
	source    string
	query     string
	variables func(username string, offset, limit int, lastKey string) map[string]any
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GraphQLSubmission mirrors one submission entry of a GraphQL payload.
// Both camelCase and snake_case field spellings occur in the wild.
type GraphQLSubmission struct {
	Title              string   `json:"title"`
	TitleSlug          string   `json:"titleSlug"`
	TitleSlugSnake     string   `json:"title_slug"`
	Timestamp          UnixTime `json:"timestamp"`
	StatusDisplay      string   `json:"statusDisplay"`
	StatusDisplaySnake string   `json:"status_display"`
}

// Slug prefers the camelCase slug, then snake_case, then the title.
func (s GraphQLSubmission) Slug() string {
	if s.TitleSlug != "" {
		return s.TitleSlug
	}
	if s.TitleSlugSnake != "" {
		return s.TitleSlugSnake
	}
	return s.Title
}

// Status returns whichever status spelling the payload carried.
func (s GraphQLSubmission) Status() string {
	if s.StatusDisplay != "" {
		return s.StatusDisplay
	}
	return s.StatusDisplaySnake
}

// SubmissionListPage wraps one page of the GraphQL submissionList query.
type SubmissionListPage struct {
	LastKey     string              `json:"lastKey"`
	HasNext     bool                `json:"hasNext"`
	Submissions []GraphQLSubmission `json:"submissions"`
}

// SubmissionList fetches one page of the submission list, trying each query
// variant in priority order until one returns a structurally valid page. The
// returned source names the variant that answered. A null submissionList is
// success-empty: an empty page with no continuation, not an error.
func (c *Client) SubmissionList(ctx context.Context, username string, offset, limit int, lastKey string) (SubmissionListPage, string, error) {
	var failures []string
	for _, variant := range submissionListVariants {
		data, err := c.graphql(ctx, variant.query, variant.variables(username, offset, limit, lastKey))
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", variant.source, err))
			continue
		}
		var payload struct {
			SubmissionList json.RawMessage `json:"submissionList"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", variant.source, err))
			continue
		}
		if len(payload.SubmissionList) == 0 || string(payload.SubmissionList) == "null" {
			return SubmissionListPage{}, variant.source, nil
		}
		var page SubmissionListPage
		if err := json.Unmarshal(payload.SubmissionList, &page); err != nil {
			failures = append(failures, fmt.Sprintf("%s: unexpected payload", variant.source))
			continue
		}
		return page, variant.source, nil
	}
	return SubmissionListPage{}, "", fmt.Errorf("graphql submissionList variants failed: %s", strings.Join(failures, " | "))
}

// RecentAccepted fetches the short unpaginated list of recent accepted
// submissions. This is the degraded fallback path.
func (c *Client) RecentAccepted(ctx context.Context, username string) ([]GraphQLSubmission, error) {
	data, err := c.graphql(ctx, recentAcceptedQuery, map[string]any{"username": username})
	if err != nil {
		return nil, err
	}
	var payload struct {
		RecentAcSubmissionList []GraphQLSubmission `json:"recentAcSubmissionList"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode recent accepted list: %w", err)
	}
	return payload.RecentAcSubmissionList, nil
}

func (c *Client) graphql(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	if variables == nil {
		variables = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+graphqlPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Endpoint: "GraphQL", StatusCode: resp.StatusCode}
	}

	var payload struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(payload.Errors) > 0 {
		return nil, &GraphQLError{Message: payload.Errors[0].Message}
	}
	if len(payload.Data) == 0 {
		return json.RawMessage("{}"), nil
	}
	return payload.Data, nil
}
