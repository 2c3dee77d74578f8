package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/baalimago/agentloop/internal/scratch"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// LastPaymentIntent holds the id of the payment intent created by the latest
// payment attempt. It's unset once an attempt fails.
var LastPaymentIntent = scratch.NewKey[string]("payment.last_intent")

var PaymentSpec = Specification{
	Name:        "payment",
	Description: "Create a Stripe payment intent. Amounts are in the smallest currency unit, e.g. cents.",
	Inputs: InputSchema{
		Type: "object",
		Properties: map[string]ParameterObject{
			"amount": {
				Type:        "integer",
				Description: "Amount to charge in the smallest currency unit.",
			},
			"currency": {
				Type:        "string",
				Description: "Three letter ISO currency code, e.g. 'usd'.",
			},
			"description": {
				Type:        "string",
				Description: "What the payment is for.",
			},
			"customer_id": {
				Type:        "string",
				Description: "Stripe id of the customer to charge.",
			},
			"payment_method": {
				Type:        "string",
				Description: "Stripe id of the payment method to use.",
			},
			"api_key": {
				Type:        "string",
				Description: "Stripe secret key. Leave out to use the configured key.",
			},
		},
		Required: []string{"amount", "currency"},
	},
}

type PaymentRequest struct {
	Amount        int64
	Currency      string
	Description   string
	CustomerID    string
	PaymentMethod string
}

type PaymentIntent struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
}

// PaymentGateway creates payment intents.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req PaymentRequest) (PaymentIntent, error)
}

// GatewayFactory returns a gateway authenticated with apiKey.
type GatewayFactory func(apiKey string) PaymentGateway

type stripeGateway struct {
	sc *client.API
}

// NewStripeGateway returns a gateway backed by the Stripe API.
func NewStripeGateway(apiKey string) PaymentGateway {
	return &stripeGateway{sc: client.New(apiKey, nil)}
}

func (s *stripeGateway) CreatePaymentIntent(ctx context.Context, req PaymentRequest) (PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if req.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethod)
	}
	pi, err := s.sc.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
			return PaymentIntent{}, fmt.Errorf("%v (code: %v)", stripeErr.Msg, stripeErr.Code)
		}
		return PaymentIntent{}, err
	}
	return PaymentIntent{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
	}, nil
}

type paymentTool struct {
	Base
	apiKey     string
	newGateway GatewayFactory
}

// NewPayment returns the factory of the payment tool. apiKey is used unless
// the model passes one explicitly.
func NewPayment(apiKey string, newGateway GatewayFactory) Factory {
	if newGateway == nil {
		newGateway = NewStripeGateway
	}
	return func(b Base) Tool {
		return &paymentTool{Base: b, apiKey: apiKey, newGateway: newGateway}
	}
}

func (p *paymentTool) Execute(ctx context.Context, args Args) Response {
	intent, err := p.pay(ctx, args)
	if err != nil {
		scratch.Delete(p.Host.Data(), LastPaymentIntent)
		return Response{Message: fmt.Sprintf("Payment processing error: %v", err)}
	}
	scratch.Set(p.Host.Data(), LastPaymentIntent, intent.ID)
	return Response{
		Message: fmt.Sprintf("Payment intent created: %v (status: %v, amount: %v %v)",
			intent.ID, intent.Status, intent.Amount, intent.Currency),
	}
}

func (p *paymentTool) pay(ctx context.Context, args Args) (PaymentIntent, error) {
	amount, err := args.Int64("amount")
	if err != nil {
		return PaymentIntent{}, err
	}
	if amount <= 0 {
		return PaymentIntent{}, fmt.Errorf("amount must be positive, got: %v", amount)
	}
	apiKey := args.String("api_key")
	if apiKey == "" {
		apiKey = p.apiKey
	}
	if apiKey == "" {
		return PaymentIntent{}, errors.New("no api key configured")
	}
	return p.newGateway(apiKey).CreatePaymentIntent(ctx, PaymentRequest{
		Amount:        amount,
		Currency:      args.String("currency"),
		Description:   args.String("description"),
		CustomerID:    args.String("customer_id"),
		PaymentMethod: args.String("payment_method"),
	})
}
