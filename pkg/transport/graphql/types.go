package graphql

import (
	"encoding/json"

	"github.com/saturnines/unraid-connect/pkg/errors"
)

// Request is a GraphQL operation. A nil Variables map is sent as {}.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// Response is the GraphQL response envelope.
type Response struct {
	Data   json.RawMessage       `json:"data,omitempty"`
	Errors []errors.GraphQLError `json:"errors,omitempty"`
}

// HasData reports whether the envelope carried a non-null data member.
func (r Response) HasData() bool {
	return len(r.Data) > 0 && string(r.Data) != "null"
}
