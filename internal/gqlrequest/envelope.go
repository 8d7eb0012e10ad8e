package gqlrequest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Envelope stores normalized request payload data used for GraphQL analysis.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	VariablesRaw  json.RawMessage

	DocumentSizeBytes int
}

// DecodeEnvelope extracts GraphQL payload fields from an HTTP request and rewinds
// the body so downstream handlers can read it again.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, fmt.Errorf("request is nil")
	}

	env := Envelope{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
	}

	switch {
	case r.Method == http.MethodGet:
		params := r.URL.Query()
		env.Query = params.Get("query")
		env.OperationName = params.Get("operationName")
	case r.Method == http.MethodPost && r.Body != nil:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return env, err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err := env.decodeBody(body); err != nil {
			return env, err
		}
	}

	env.DocumentSizeBytes = len(env.Query)
	return env, nil
}

func (env *Envelope) decodeBody(body []byte) error {
	if mediaTypeOf(env.ContentType) == "application/graphql" {
		env.Query = string(body)
		return nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	var payload struct {
		Query         string          `json:"query"`
		OperationName string          `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return err
	}

	env.Query = payload.Query
	env.OperationName = payload.OperationName
	if vars := bytes.TrimSpace(payload.Variables); len(vars) > 0 && !bytes.Equal(vars, []byte("null")) {
		env.VariablesRaw = append(json.RawMessage(nil), payload.Variables...)
	}
	return nil
}

func mediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		return strings.TrimSpace(contentType)
	}
	return mediaType
}
