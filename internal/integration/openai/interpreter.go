// Package openai interprets free-text chat messages as comparison requests
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

// Commands the interpreter may return
const (
	CommandCompare      = "CompareKomm"
	CommandReport       = "ReportKomm"
	CommandGeneralQuery = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName string `json:"command_name" jsonschema_description:"The command to execute: CompareKomm, ReportKomm or GeneralQuery"`
	Komm1       string `json:"komm1" jsonschema_description:"Four digit municipality number of the first municipality, or empty"`
	Komm2       string `json:"komm2" jsonschema_description:"Four digit municipality number of the second municipality, or empty"`
	UserMessage string `json:"user_message" jsonschema_description:"A message to show back to the user in their original language"`
}

// Interpreter turns a chat message into a command.
type Interpreter interface {
	InterpretCompareQuery(ctx context.Context, userMessage string) (*AgentResponse, error)
}

type interpreter struct {
	client openai.Client
	schema interface{}
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// NewInterpreter creates an OpenAI backed Interpreter.
func NewInterpreter(apiKey string, opts ...option.RequestOption) (Interpreter, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &interpreter{
		client: openai.NewClient(opts...),
		schema: GenerateSchema[AgentResponse](),
	}, nil
}

const systemPrompt = `You are the assistant of Kommunekamp, a service that compares two Norwegian municipalities
(kommuner) on breweries, foot trails, rain and the share of young inhabitants.

Your job is to parse the user's request.

Behavior:
1. If the user wants to compare two municipalities:
   - command_name = "CompareKomm", or "ReportKomm" if they ask for a PDF or report
   - komm1 and komm2: the four digit municipality numbers (e.g. Oslo = 0301, Bergen = 4601,
     Trondheim = 5001, Stavanger = 1103). Leave a field empty if you are not sure of the number.
   - user_message: a one-line confirmation in the user's language.
2. Anything else (greetings, questions about the service, nonsense):
   - command_name = "GeneralQuery"
   - komm1 = "", komm2 = ""
   - user_message: a short reply in the user's language, mentioning /compare when helpful.

Reply in the language the user used. Output strictly in JSON.`

// InterpretCompareQuery sends a message to the OpenAI agent and returns the structured response.
func (s *interpreter) InterpretCompareQuery(ctx context.Context, userMessage string) (*AgentResponse, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing command, municipality numbers and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: respFormat,
		Model:          openai.ChatModelGPT4o,
	})
	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}

	var agentResp AgentResponse
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &agentResp); err != nil {
		log.Error().Err(err).Str("raw", chat.Choices[0].Message.Content).Msg("Failed to unmarshal OpenAI response")
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}

	return &agentResp, nil
}
