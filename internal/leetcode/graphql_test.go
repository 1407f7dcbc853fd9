package leetcode

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphqlStub answers /graphql/ according to a per-request script keyed on
// the shape of the incoming query.
func graphqlStub(t *testing.T, respond func(req graphqlRequest) (string, int)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != graphqlPath {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req graphqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		body, status := respond(req)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "session", "csrf", 5*time.Second)
}

func TestSubmissionListFirstVariantAnswers(t *testing.T) {
	client := graphqlStub(t, func(req graphqlRequest) (string, int) {
		if _, ok := req.Variables["username"]; !ok {
			t.Errorf("first variant should carry a username, got %v", req.Variables)
		}
		return `{"data": {"submissionList": {
			"lastKey": "key-1",
			"hasNext": true,
			"submissions": [{"titleSlug": "two-sum", "statusDisplay": "Accepted", "timestamp": "1717570000"}]
		}}}`, http.StatusOK
	})

	page, source, err := client.SubmissionList(context.Background(), "alice", 0, 20, "")
	if err != nil {
		t.Fatalf("submission list: %v", err)
	}
	if source != "graphql_submission_list_username" {
		t.Fatalf("source = %q", source)
	}
	if page.LastKey != "key-1" || !page.HasNext || len(page.Submissions) != 1 {
		t.Fatalf("page = %+v", page)
	}
	if page.Submissions[0].Slug() != "two-sum" || page.Submissions[0].Status() != "Accepted" {
		t.Fatalf("submission = %+v", page.Submissions[0])
	}
}

func TestSubmissionListFallsThroughVariants(t *testing.T) {
	// The username variant is rejected at the GraphQL level; the default
	// variant answers.
	client := graphqlStub(t, func(req graphqlRequest) (string, int) {
		if _, ok := req.Variables["username"]; ok {
			return `{"errors": [{"message": "Unknown argument username"}]}`, http.StatusOK
		}
		return `{"data": {"submissionList": {
			"lastKey": "",
			"hasNext": false,
			"submissions": [{"title_slug": "two-sum", "status_display": "Accepted", "timestamp": "1717570000"}]
		}}}`, http.StatusOK
	})

	page, source, err := client.SubmissionList(context.Background(), "alice", 0, 20, "")
	if err != nil {
		t.Fatalf("submission list: %v", err)
	}
	if source != "graphql_submission_list_default" {
		t.Fatalf("source = %q", source)
	}
	// Snake_case spellings decode through the fallback fields.
	if page.Submissions[0].Slug() != "two-sum" || page.Submissions[0].Status() != "Accepted" {
		t.Fatalf("submission = %+v", page.Submissions[0])
	}
}

func TestSubmissionListNullIsSuccessEmpty(t *testing.T) {
	client := graphqlStub(t, func(graphqlRequest) (string, int) {
		return `{"data": {"submissionList": null}}`, http.StatusOK
	})

	page, source, err := client.SubmissionList(context.Background(), "alice", 0, 20, "")
	if err != nil {
		t.Fatalf("submission list: %v", err)
	}
	if source != "graphql_submission_list_username" {
		t.Fatalf("source = %q", source)
	}
	if page.HasNext || page.LastKey != "" || len(page.Submissions) != 0 {
		t.Fatalf("page = %+v, want empty terminal page", page)
	}
}

func TestSubmissionListAllVariantsFail(t *testing.T) {
	client := graphqlStub(t, func(graphqlRequest) (string, int) {
		return `{"errors": [{"message": "nope"}]}`, http.StatusOK
	})

	_, _, err := client.SubmissionList(context.Background(), "alice", 0, 20, "")
	if err == nil {
		t.Fatal("expected an error when every variant fails")
	}
	if !strings.Contains(err.Error(), "graphql submissionList variants failed") {
		t.Fatalf("err = %v", err)
	}
	for _, variantSource := range []string{
		"graphql_submission_list_username",
		"graphql_submission_list_default",
		"graphql_submission_list_status",
	} {
		if !strings.Contains(err.Error(), variantSource) {
			t.Errorf("error does not name %s: %v", variantSource, err)
		}
	}
}

func TestSubmissionListHTTPErrorClassification(t *testing.T) {
	client := graphqlStub(t, func(graphqlRequest) (string, int) {
		return ``, http.StatusForbidden
	})

	_, _, err := client.SubmissionList(context.Background(), "alice", 0, 20, "")
	if err == nil {
		t.Fatal("expected an error")
	}
	// Every variant saw the same 403, but the joined message is not a
	// *StatusError; classification happens per underlying call.
	if IsAuthError(err) {
		t.Fatal("the aggregated variant error must not classify as auth")
	}
}

func TestRecentAccepted(t *testing.T) {
	client := graphqlStub(t, func(req graphqlRequest) (string, int) {
		if req.Variables["username"] != "alice" {
			t.Errorf("variables = %v", req.Variables)
		}
		return `{"data": {"recentAcSubmissionList": [
			{"titleSlug": "two-sum", "timestamp": "1717570000"},
			{"titleSlug": "lru-cache", "timestamp": "1717569000"}
		]}}`, http.StatusOK
	})

	submissions, err := client.RecentAccepted(context.Background(), "alice")
	if err != nil {
		t.Fatalf("recent accepted: %v", err)
	}
	if len(submissions) != 2 || submissions[0].Slug() != "two-sum" {
		t.Fatalf("submissions = %+v", submissions)
	}
}

func TestGraphQLErrorsArray(t *testing.T) {
	client := graphqlStub(t, func(graphqlRequest) (string, int) {
		return `{"errors": [{"message": "rate limited"}]}`, http.StatusOK
	})

	_, err := client.RecentAccepted(context.Background(), "alice")
	var gqlErr *GraphQLError
	if !errors.As(err, &gqlErr) {
		t.Fatalf("err = %v, want *GraphQLError", err)
	}
	if gqlErr.Message != "rate limited" {
		t.Fatalf("message = %q", gqlErr.Message)
	}
}
