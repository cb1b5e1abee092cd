// Package todos is a Go client for the todos-api HTTP surface. Reads go
// through the REST listing; writes go through the GraphQL mutation because
// the REST surface is read-only.
package todos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultHTTPTimeout is applied to clients created without a custom resty client.
const DefaultHTTPTimeout = 15 * time.Second

// Todo mirrors the server's todo representation.
type Todo struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	User   *User  `json:"user,omitempty"`
}

// User is the optional owner of a todo.
type User struct {
	Name string `json:"name"`
}

// APIError represents a REST error body or the first GraphQL error.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("todos api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("todos api error (%d): %s", e.StatusCode, e.Message)
}

// Client wraps the HTTP interactions with the todos API.
type Client struct {
	http *resty.Client
}

// NewClient instantiates a client. When rc is nil a default resty client with
// DefaultHTTPTimeout is used.
func NewClient(baseURL string, rc *resty.Client) *Client {
	if rc == nil {
		rc = resty.New().SetTimeout(DefaultHTTPTimeout)
	}
	rc.SetBaseURL(strings.TrimRight(baseURL, "/"))
	rc.SetHeader("Accept", "application/json")
	return &Client{http: rc}
}

type restError struct {
	Error APIError `json:"error"`
}

// ListTodos fetches all todos via GET /todos.
func (c *Client) ListTodos(ctx context.Context) ([]Todo, error) {
	var (
		todos   []Todo
		errBody restError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&todos).
		SetError(&errBody).
		Get("/todos")
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	if resp.IsError() {
		apiErr := errBody.Error
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(resp.String())
		}
		return nil, &apiErr
	}
	if todos == nil {
		todos = []Todo{}
	}
	return todos, nil
}

// AddTodo appends a todo through the addTodo mutation.
func (c *Client) AddTodo(ctx context.Context, name string) (Todo, error) {
	var data struct {
		AddTodo Todo `json:"addTodo"`
	}
	err := c.graphql(ctx, `mutation AddTodo($name: String!) { addTodo(name: $name) { name status user { name } } }`,
		map[string]any{"name": name}, &data)
	if err != nil {
		return Todo{}, err
	}
	return data.AddTodo, nil
}

// GetTodosGraphQL fetches all todos through the getTodos query.
func (c *Client) GetTodosGraphQL(ctx context.Context) ([]Todo, error) {
	var data struct {
		GetTodos []Todo `json:"getTodos"`
	}
	if err := c.graphql(ctx, `query { getTodos { name status user { name } } }`, nil, &data); err != nil {
		return nil, err
	}
	return data.GetTodos, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code string `json:"code"`
		} `json:"extensions"`
	} `json:"errors"`
}

func (c *Client) graphql(ctx context.Context, query string, vars map[string]any, out any) error {
	var body graphQLResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(graphQLRequest{Query: query, Variables: vars}).
		SetResult(&body).
		SetError(&body).
		Post("/graphql")
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	if len(body.Errors) > 0 {
		return &APIError{
			StatusCode: resp.StatusCode(),
			Code:       body.Errors[0].Extensions.Code,
			Message:    body.Errors[0].Message,
		}
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
