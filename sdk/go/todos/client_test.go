package todos

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todos-api/internal/api"
	"todos-api/internal/todo"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	server, err := api.NewServer(":0", todo.NewService(todo.NewMemoryStore(todo.DefaultSeed()...)))
	require.NoError(t, err)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClientAgainstServer(t *testing.T) {
	t.Run("Should list the seeded todos", func(t *testing.T) {
		client := NewClient(newBackend(t).URL, nil)
		todos, err := client.ListTodos(context.Background())
		require.NoError(t, err)
		require.Len(t, todos, 2)
		assert.Equal(t, "Make breakfast", todos[0].Name)
		assert.Equal(t, "INCOMPLETE", todos[0].Status)
	})

	t.Run("Should add through GraphQL and read it back both ways", func(t *testing.T) {
		client := NewClient(newBackend(t).URL+"/", nil)
		ctx := context.Background()

		added, err := client.AddTodo(ctx, "Buy milk")
		require.NoError(t, err)
		assert.Equal(t, Todo{Name: "Buy milk", Status: "INCOMPLETE"}, added)

		viaREST, err := client.ListTodos(ctx)
		require.NoError(t, err)
		viaGraphQL, err := client.GetTodosGraphQL(ctx)
		require.NoError(t, err)
		assert.Equal(t, viaREST, viaGraphQL)
		require.Len(t, viaREST, 3)
		assert.Equal(t, "Buy milk", viaREST[2].Name)
	})

	t.Run("Should surface validation failures as API errors", func(t *testing.T) {
		client := NewClient(newBackend(t).URL, nil)
		_, err := client.AddTodo(context.Background(), "")

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "VALIDATION_FAILED", apiErr.Code)
		assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	})
}

func TestClientDecodesRESTErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":"STORE_UNAVAILABLE","message":"todo store unavailable"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).ListTodos(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "STORE_UNAVAILABLE", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "todo store unavailable")
}
