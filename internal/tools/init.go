package tools

import (
	"net/http"

	"github.com/baalimago/agentloop/internal/memory"
)

// Dependencies of the default tools. Secrets are passed in here, the tools
// never read the environment.
type Dependencies struct {
	StripeAPIKey string
	// NewGateway defaults to NewStripeGateway.
	NewGateway GatewayFactory
	HTTPClient *http.Client
	// Memories enables the memorize tool if set.
	Memories *memory.Store
}

// Init returns a registry holding the default tools.
func Init(d Dependencies) *Registry {
	r := NewRegistry()
	r.Set(ResponseSpec, NewResponse)
	r.Set(PaymentSpec, NewPayment(d.StripeAPIKey, d.NewGateway))
	var client httpDoer
	if d.HTTPClient != nil {
		client = d.HTTPClient
	}
	r.Set(WebsiteTextSpec, NewWebsiteText(client))
	r.Set(DynamicPromptSpec, NewDynamicPrompt)
	if d.Memories != nil {
		r.Set(MemorizeSpec, NewMemorize(d.Memories))
	}
	return r
}
