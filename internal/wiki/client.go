package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for wiki interactions.
var (
	// ErrPageExists indicates a create hit an existing page at the same path.
	ErrPageExists = errors.New("page already exists")

	// ErrPageNotFound indicates no page exists at the given path.
	ErrPageNotFound = errors.New("page not found")

	// ErrRequestFailed indicates a transport or server failure.
	ErrRequestFailed = errors.New("wiki request failed")
)

// Page is the payload for create/update mutations.
type Page struct {
	Title       string
	Path        string
	Content     string
	Description string
	Tags        []string
	Locale      string
	IsPublished bool
	IsPrivate   bool
}

// PageRef identifies an existing page.
type PageRef struct {
	ID    int    `json:"id"`
	Path  string `json:"path"`
	Title string `json:"title"`
}

// Client talks to a Wiki.js GraphQL endpoint with bearer-token auth.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing or custom timeouts).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a wiki client for the given base URL and API token.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: strings.TrimSuffix(baseURL, "/") + "/graphql",
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// graphqlRequest is the wire format of a GraphQL POST.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the wire format of a GraphQL reply.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do executes one GraphQL operation and decodes the data field into out.
func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d: %s", ErrRequestFailed, resp.StatusCode, body)
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrRequestFailed, err)
	}
	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrRequestFailed, gqlResp.Errors[0].Message)
	}

	if out != nil {
		if err := json.Unmarshal(gqlResp.Data, out); err != nil {
			return fmt.Errorf("%w: decoding data: %v", ErrRequestFailed, err)
		}
	}
	return nil
}

// responseResult is Wiki.js's mutation outcome envelope.
type responseResult struct {
	Succeeded bool   `json:"succeeded"`
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
}

// wikiErrPageDuplicateCreate is Wiki.js's error code for a create at an
// occupied path.
const wikiErrPageDuplicateCreate = 6002

// isConflict reports whether a mutation outcome means "path already taken".
func (r responseResult) isConflict() bool {
	return r.ErrorCode == wikiErrPageDuplicateCreate ||
		strings.Contains(strings.ToLower(r.Message), "already exists")
}

const createPageQuery = `mutation ($content: String!, $description: String!, $editor: String!, $isPublished: Boolean!, $isPrivate: Boolean!, $locale: String!, $path: String!, $tags: [String]!, $title: String!) {
  pages {
    create(content: $content, description: $description, editor: $editor, isPublished: $isPublished, isPrivate: $isPrivate, locale: $locale, path: $path, tags: $tags, title: $title) {
      responseResult { succeeded errorCode message }
      page { id path }
    }
  }
}`

// CreatePage creates a new page. Returns ErrPageExists when the path is
// already occupied, so callers can fall back to an update.
func (c *Client) CreatePage(ctx context.Context, p Page) error {
	var out struct {
		Pages struct {
			Create struct {
				ResponseResult responseResult `json:"responseResult"`
			} `json:"create"`
		} `json:"pages"`
	}

	if err := c.do(ctx, createPageQuery, pageVars(p), &out); err != nil {
		return err
	}

	result := out.Pages.Create.ResponseResult
	if !result.Succeeded {
		if result.isConflict() {
			return fmt.Errorf("%s: %w", p.Path, ErrPageExists)
		}
		return fmt.Errorf("%w: create %s: %s", ErrRequestFailed, p.Path, result.Message)
	}
	return nil
}

const updatePageQuery = `mutation ($id: Int!, $content: String!, $description: String!, $editor: String!, $isPublished: Boolean!, $isPrivate: Boolean!, $locale: String!, $path: String!, $tags: [String]!, $title: String!) {
  pages {
    update(id: $id, content: $content, description: $description, editor: $editor, isPublished: $isPublished, isPrivate: $isPrivate, locale: $locale, path: $path, tags: $tags, title: $title) {
      responseResult { succeeded errorCode message }
    }
  }
}`

// UpdatePage rewrites an existing page identified by id.
func (c *Client) UpdatePage(ctx context.Context, id int, p Page) error {
	vars := pageVars(p)
	vars["id"] = id

	var out struct {
		Pages struct {
			Update struct {
				ResponseResult responseResult `json:"responseResult"`
			} `json:"update"`
		} `json:"pages"`
	}

	if err := c.do(ctx, updatePageQuery, vars, &out); err != nil {
		return err
	}

	result := out.Pages.Update.ResponseResult
	if !result.Succeeded {
		return fmt.Errorf("%w: update %s: %s", ErrRequestFailed, p.Path, result.Message)
	}
	return nil
}

const singleByPathQuery = `query ($path: String!, $locale: String!) {
  pages {
    singleByPath(path: $path, locale: $locale) { id path title }
  }
}`

// FetchPageID looks up the id of the page at path, for upserts after a
// create conflict.
func (c *Client) FetchPageID(ctx context.Context, path, locale string) (int, error) {
	var out struct {
		Pages struct {
			SingleByPath *PageRef `json:"singleByPath"`
		} `json:"pages"`
	}

	if err := c.do(ctx, singleByPathQuery, map[string]any{"path": path, "locale": locale}, &out); err != nil {
		return 0, err
	}
	if out.Pages.SingleByPath == nil || out.Pages.SingleByPath.ID == 0 {
		return 0, fmt.Errorf("%s: %w", path, ErrPageNotFound)
	}
	return out.Pages.SingleByPath.ID, nil
}

const listPagesQuery = `query {
  pages {
    list(orderBy: TITLE) { id path title }
  }
}`

// ListPages returns all pages visible to the API token.
func (c *Client) ListPages(ctx context.Context) ([]PageRef, error) {
	var out struct {
		Pages struct {
			List []PageRef `json:"list"`
		} `json:"pages"`
	}

	if err := c.do(ctx, listPagesQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.Pages.List, nil
}

// pageVars builds the shared mutation variables for a page payload.
func pageVars(p Page) map[string]any {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"content":     p.Content,
		"description": p.Description,
		"editor":      "markdown",
		"isPublished": p.IsPublished,
		"isPrivate":   p.IsPrivate,
		"locale":      p.Locale,
		"path":        p.Path,
		"tags":        tags,
		"title":       p.Title,
	}
}
