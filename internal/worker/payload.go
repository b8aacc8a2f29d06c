package worker

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/thebtf/faqlearn/internal/settings"
)

// Request body schemas.
const (
	schemaReview        = "review.schema.json"
	schemaBulkReview    = "bulk_review.schema.json"
	schemaFeedback      = "feedback.schema.json"
	schemaChatTrigger   = "chat_trigger.schema.json"
	schemaTicketTrigger = "ticket_trigger.schema.json"
	schemaJobSchedule   = "job_schedule.schema.json"
)

// ErrBadRequest marks a request that failed decoding or schema validation.
var ErrBadRequest = errors.New("bad request")

//go:embed schemas/*.schema.json
var payloadFS embed.FS

var (
	payloadOnce    sync.Once
	payloadSchemas map[string]*jsonschema.Schema
	payloadErr     error
)

func loadPayloadSchemas() (map[string]*jsonschema.Schema, error) {
	payloadOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		entries, err := payloadFS.ReadDir("schemas")
		if err != nil {
			payloadErr = err
			return
		}
		out := make(map[string]*jsonschema.Schema, len(entries))
		for _, e := range entries {
			raw, err := payloadFS.ReadFile(path.Join("schemas", e.Name()))
			if err != nil {
				payloadErr = err
				return
			}
			if err := compiler.AddResource(e.Name(), bytes.NewReader(raw)); err != nil {
				payloadErr = fmt.Errorf("add schema %s: %w", e.Name(), err)
				return
			}
		}
		for _, e := range entries {
			schema, err := compiler.Compile(e.Name())
			if err != nil {
				payloadErr = fmt.Errorf("compile schema %s: %w", e.Name(), err)
				return
			}
			out[e.Name()] = schema
		}
		payloadSchemas = out
	})
	return payloadSchemas, payloadErr
}

// decodeBody validates the request body against the named schema and decodes it into dst.
func decodeBody(r *http.Request, schemaName string, dst interface{}) error {
	schemas, err := loadPayloadSchemas()
	if err != nil {
		return err
	}
	schema, ok := schemas[schemaName]
	if !ok {
		return fmt.Errorf("no schema %s", schemaName)
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrBadRequest, err)
	}
	value, err := settings.DecodeStrict(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrBadRequest, err)
	}
	if err := schema.Validate(value); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("%w: %s", ErrBadRequest, validationMessage(ve))
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// validationMessage returns the innermost cause, which names the offending field.
func validationMessage(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
