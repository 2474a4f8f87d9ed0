package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

/*
Conn represents a connection to an OpenAI-compatible chat completion API.
The same type serves OpenAI itself and DeepSeek; the base URL and model
decide which endpoint a conn talks to.
*/
type Conn struct {
	client *openai.Client
	name   string
	model  string
	reqOps []option.RequestOption
}

type ConnOptionFn func(*Conn)

/*
NewConn creates a new API connection with the given options. Without options
it talks to OpenAI with credentials from the environment.
*/
func NewConn(opts ...ConnOptionFn) *Conn {
	conn := &Conn{
		name:  "openai",
		model: openai.ChatModelGPT4o,
	}

	for _, fn := range opts {
		fn(conn)
	}

	conn.client = openai.NewClient(conn.reqOps...)
	return conn
}

/*
WithName sets the provider name used in cache keys and audit entries.
*/
func WithName(name string) ConnOptionFn {
	return func(c *Conn) {
		c.name = name
	}
}

/*
WithModel sets the chat model requested for completions.
*/
func WithModel(model string) ConnOptionFn {
	return func(c *Conn) {
		c.model = model
	}
}

/*
WithBaseURL points the conn at an OpenAI-compatible endpoint such as
DeepSeek.
*/
func WithBaseURL(url string) ConnOptionFn {
	return func(c *Conn) {
		c.reqOps = append(c.reqOps, option.WithBaseURL(url))
	}
}

/*
WithAPIKey sets an explicit API key instead of the environment default.
*/
func WithAPIKey(key string) ConnOptionFn {
	return func(c *Conn) {
		c.reqOps = append(c.reqOps, option.WithAPIKey(key))
	}
}

/*
Name returns the provider name.
*/
func (conn *Conn) Name() string {
	return conn.name
}

/*
Suggest sends a prompt to the API and returns the generated optimization
suggestion. It configures the request with the prompt's schema so the
response is guaranteed to decode.
*/
func (conn *Conn) Suggest(ctx context.Context, prompt *Prompt) (*Suggestion, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        openai.F("optimization_suggestion"),
		Description: openai.F("A single optimization suggestion for a PostgreSQL statement"),
		Schema:      openai.F(prompt.schema),
		Strict:      openai.Bool(true),
	}

	chat, err := conn.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.system),
			openai.UserMessage(prompt.user),
		}),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONSchemaParam{
				Type:       openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
				JSONSchema: openai.F(schemaParam),
			},
		),
		Model: openai.F(conn.model),
	})
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	var suggestion Suggestion
	if err = json.Unmarshal([]byte(chat.Choices[0].Message.Content), &suggestion); err != nil {
		return nil, fmt.Errorf("failed to decode suggestion: %w", err)
	}

	return &suggestion, nil
}
