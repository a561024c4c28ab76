package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIServiceRequiresKey(t *testing.T) {
	_, err := NewOpenAIService("")
	assert.Error(t, err)
}

func TestParseAgentResponse(t *testing.T) {
	resp, err := ParseAgentResponse(`{"command_name": "GetSiteStatus", "site_id": "03276000", "user_message": "Checking Buck Creek"}`)
	require.NoError(t, err)
	assert.Equal(t, CommandGetSiteStatus, resp.CommandName)
	assert.Equal(t, "03276000", resp.SiteID)

	resp, err = ParseAgentResponse(`{"command_name": "DeleteEverything", "site_id": "", "user_message": "no"}`)
	require.NoError(t, err)
	assert.Equal(t, CommandGeneralQuery, resp.CommandName)

	_, err = ParseAgentResponse(`not json`)
	assert.Error(t, err)
}

func TestSystemPromptListsSites(t *testing.T) {
	prompt := systemPrompt([]KnownSite{{ID: "03276000", Name: "Buck Creek"}}, []string{"Brookville Lake"})
	assert.Contains(t, prompt, "- 03276000: Buck Creek")
	assert.Contains(t, prompt, "Known reservoirs: Brookville Lake")
}

func TestInterpretUserQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req map[string]any
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gpt-4o", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant",
				"content": "{\"command_name\":\"GetReservoir\",\"site_id\":\"\",\"user_message\":\"Looking up Brookville Lake\"}"}}]
		}`)
	}))
	defer server.Close()

	svc, err := NewOpenAIService("test-key", option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)

	resp, err := svc.InterpretUserQuery(context.Background(), "how full is brookville?", nil, []string{"Brookville Lake"})
	require.NoError(t, err)
	assert.Equal(t, CommandGetReservoir, resp.CommandName)
	assert.Equal(t, "Looking up Brookville Lake", resp.UserMessage)
}
