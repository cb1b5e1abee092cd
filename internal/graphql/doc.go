// Package graphql exposes the todo service through a GraphQL schema with a
// getTodos query and an addTodo mutation. Resolvers run synchronously on the
// request context and report coded errors under errors[].extensions.code.
package graphql
