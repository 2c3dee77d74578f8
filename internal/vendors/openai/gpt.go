package openai

import (
	"fmt"
	"net/http"
	"os"

	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

var GptDefault = ChatGPT{
	Model:       "gpt-4.1-mini",
	Temperature: 1.0,
	TopP:        1.0,
	URL:         ChatURL,
}

// ChatGPT streams completions from an OpenAI compatible chat completions
// endpoint.
type ChatGPT struct {
	Model            string  `json:"model"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	MaxTokens        *int    `json:"max_tokens"` // Use a pointer to allow null value
	PresencePenalty  float64 `json:"presence_penalty"`
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	URL              string  `json:"url"`

	client *http.Client
	apiKey string
	debug  bool
}

// Setup reads the api key from OPENAI_API_KEY.
func (g *ChatGPT) Setup() error {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("environment variable '%v' not set", "OPENAI_API_KEY")
	}
	g.apiKey = apiKey
	if g.client == nil {
		g.client = &http.Client{}
	}
	if g.URL == "" {
		g.URL = ChatURL
	}
	g.debug = misc.Truthy(os.Getenv("DEBUG")) || misc.Truthy(os.Getenv("DEBUG_OPENAI"))
	return nil
}
