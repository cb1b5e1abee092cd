package main

import (
	"context"
	"fmt"
	"log"
	"net/http/httptest"
	"time"

	"todos-api/internal/api"
	"todos-api/internal/todo"
	"todos-api/sdk/go/todos"
)

// main 启动一个内存后端，并演示 SDK 的读写流程。
func main() {
	server, err := api.NewServer(":0", todo.NewService(todo.NewMemoryStore(todo.DefaultSeed()...)))
	if err != nil {
		log.Fatalf("create server: %v", err)
	}
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := todos.NewClient(srv.URL, nil)
	added, err := client.AddTodo(ctx, "Buy milk")
	if err != nil {
		log.Fatalf("add todo: %v", err)
	}
	fmt.Printf("added %q (%s)\n", added.Name, added.Status)

	list, err := client.ListTodos(ctx)
	if err != nil {
		log.Fatalf("list todos: %v", err)
	}
	for i, item := range list {
		fmt.Printf("%d. %s [%s]\n", i+1, item.Name, item.Status)
	}
}
