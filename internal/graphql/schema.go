package graphql

import (
	"context"

	"github.com/graphql-go/graphql"

	xerrors "todos-api/internal/errors"
	"todos-api/internal/todo"
)

// Service 是解析器依赖的业务能力，由 todo.Service 实现。
type Service interface {
	GetTodos(ctx context.Context) (*todo.Result, error)
	AddTodo(ctx context.Context, name string) (*todo.Result, error)
}

// ErrorHook 在解析器返回错误时被调用，用于告警与日志。
type ErrorHook func(ctx context.Context, field string, err error)

var statusEnum = graphql.NewEnum(graphql.EnumConfig{
	Name:        "Status",
	Description: "Completion state of a todo.",
	Values: graphql.EnumValueConfigMap{
		string(todo.StatusUnknown):    &graphql.EnumValueConfig{Value: todo.StatusUnknown},
		string(todo.StatusIncomplete): &graphql.EnumValueConfig{Value: todo.StatusIncomplete},
		string(todo.StatusInProgress): &graphql.EnumValueConfig{Value: todo.StatusInProgress},
		string(todo.StatusDone):       &graphql.EnumValueConfig{Value: todo.StatusDone},
	},
})

var userType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"name": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				if u, ok := p.Source.(*todo.User); ok && u != nil {
					return u.Name, nil
				}
				return nil, nil
			},
		},
	},
})

var todoType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Todo",
	Fields: graphql.Fields{
		"name": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return sourceTodo(p).Name, nil
			},
		},
		"status": &graphql.Field{
			Type: graphql.NewNonNull(statusEnum),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return sourceTodo(p).Status, nil
			},
		},
		"user": &graphql.Field{
			Type: userType,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				item := sourceTodo(p)
				if item.User == nil {
					return nil, nil
				}
				return item.User, nil
			},
		},
	},
})

func sourceTodo(p graphql.ResolveParams) todo.Todo {
	switch v := p.Source.(type) {
	case todo.Todo:
		return v
	case *todo.Todo:
		if v != nil {
			return *v
		}
	}
	return todo.Todo{}
}

// NewSchema 基于业务服务构造 GraphQL schema。
func NewSchema(svc Service, hook ErrorHook) (graphql.Schema, error) {
	if svc == nil {
		return graphql.Schema{}, xerrors.New(xerrors.CodeInitializationFailure, "GraphQL 依赖的服务未初始化")
	}
	fail := func(ctx context.Context, field string, err error) error {
		if hook != nil {
			hook(ctx, field, err)
		}
		return codedError{err: err}
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"getTodos": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(todoType))),
				Description: "All todos in insertion order.",
				Resolve: func(p graphql.ResolveParams) (any, error) {
					result, err := svc.GetTodos(p.Context)
					if err != nil {
						return nil, fail(p.Context, "getTodos", err)
					}
					return result.Todos, nil
				},
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addTodo": &graphql.Field{
				Type:        graphql.NewNonNull(todoType),
				Description: "Append a todo with the default status.",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					name, _ := p.Args["name"].(string)
					result, err := svc.AddTodo(p.Context, name)
					if err != nil {
						return nil, fail(p.Context, "addTodo", err)
					}
					return *result.Todo, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}

// codedError 让 graphql-go 在响应中输出 extensions.code。
type codedError struct {
	err error
}

func (e codedError) Error() string {
	if coded, ok := xerrors.From(e.err); ok {
		return coded.Message()
	}
	return e.err.Error()
}

func (e codedError) Unwrap() error { return e.err }

// Extensions 实现 gqlerrors.ExtendedError。
func (e codedError) Extensions() map[string]any {
	return map[string]any{"code": string(xerrors.CodeOf(e.err))}
}
