package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Commands the agent may return
const (
	CommandGetSiteStatus = "GetSiteStatus"
	CommandGetReservoir  = "GetReservoir"
	CommandGeneralQuery  = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName string `json:"command_name" jsonschema_description:"The command to execute: GetSiteStatus, GetReservoir or GeneralQuery"`
	SiteID      string `json:"site_id" jsonschema_description:"The USGS site number the user asked about, if applicable"`
	UserMessage string `json:"user_message" jsonschema_description:"A message to show back to the user in their original language"`
}

// KnownSite is a gauge the agent can refer to
type KnownSite struct {
	ID   string
	Name string
}

// OpenAIService defines the interface for interacting with the OpenAI agent.
type OpenAIService interface {
	InterpretUserQuery(ctx context.Context, userMessage string, sites []KnownSite, reservoirs []string) (*AgentResponse, error)
}

// openAIServiceImpl implements the OpenAIService interface.
type openAIServiceImpl struct {
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

// NewOpenAIService creates and initializes a new OpenAIService.
func NewOpenAIService(apiKey string, opts ...option.RequestOption) (OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	schema := GenerateSchema[AgentResponse]()

	return &openAIServiceImpl{
		client: client,
		schema: schema,
	}, nil
}

func systemPrompt(sites []KnownSite, reservoirs []string) string {
	var b strings.Builder
	for _, s := range sites {
		fmt.Fprintf(&b, "- %s: %s\n", s.ID, s.Name)
	}

	return fmt.Sprintf(`You answer questions for a river conditions kiosk covering southwest Ohio and southeast Indiana.

Known USGS gauge sites:
%s
Known reservoirs: %s

Behavior:
1. If the user asks about a specific river or gauge from the list:
   - command_name = "GetSiteStatus"
   - site_id = the matching site number; if unsure leave it empty.
   - user_message: a short confirmation in the user's language.
2. If the user asks about a reservoir or lake (elevation, inflow, outflow, storage, rain at the lake):
   - command_name = "GetReservoir"
   - site_id = ""
   - user_message: a short confirmation in the user's language.
3. Anything else (greetings, small talk):
   - command_name = "GeneralQuery"
   - site_id = ""
   - user_message: a brief helpful reply in the user's language.

Output **strictly** in JSON.`, b.String(), strings.Join(reservoirs, ", "))
}

// InterpretUserQuery sends a message to the OpenAI agent and returns the structured response.
func (s *openAIServiceImpl) InterpretUserQuery(ctx context.Context, userMessage string, sites []KnownSite, reservoirs []string) (*AgentResponse, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing command, site id, and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(sites, reservoirs)),
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

	return ParseAgentResponse(chat.Choices[0].Message.Content)
}

// ParseAgentResponse decodes the agent's JSON reply
func ParseAgentResponse(content string) (*AgentResponse, error) {
	var agentResp AgentResponse
	if err := json.Unmarshal([]byte(content), &agentResp); err != nil {
		log.Printf("Failed to unmarshal OpenAI response: %s\nRaw response: %s", err, content)
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}

	switch agentResp.CommandName {
	case CommandGetSiteStatus, CommandGetReservoir, CommandGeneralQuery:
	default:
		log.Printf("Warning: unknown command '%s' from OpenAI, treating as general query", agentResp.CommandName)
		agentResp.CommandName = CommandGeneralQuery
	}
	return &agentResp, nil
}
