package payment

import (
	"context"
	"errors"
	"net/http"

	"estate-market-backend/internal/logger"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const serviceName = "stripe"

// intentAPI is the part of the Stripe client used here.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type StripeGateway struct {
	intents intentAPI
}

// NewStripeGateway builds a gateway on a dedicated Stripe client.
func NewStripeGateway(secretKey string) *StripeGateway {
	sc := client.New(secretKey, nil)
	return &StripeGateway{intents: sc.PaymentIntents}
}

func newStripeGatewayWith(api intentAPI) *StripeGateway {
	return &StripeGateway{intents: api}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	logger.ExternalServiceCall(serviceName, "CreateIntent", "amount_minor", amountMinor, "currency", currency)
	pi, err := g.intents.New(params)
	if err != nil {
		err = wrapStripeError("create_intent", err)
		logger.ExternalServiceResult(serviceName, "CreateIntent", err)
		return nil, err
	}
	logger.ExternalServiceResult(serviceName, "CreateIntent", nil, "intent_id", pi.ID)
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	logger.ExternalServiceCall(serviceName, "CancelIntent", "intent_id", id)
	_, err := g.intents.Cancel(id, params)
	if err != nil {
		err = wrapStripeError("cancel_intent", err)
	}
	logger.ExternalServiceResult(serviceName, "CancelIntent", err, "intent_id", id)
	return err
}

func wrapStripeError(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		// Transport failure before a response was read.
		return &ProviderError{Op: op, Retryable: true, Err: err}
	}

	if se.Code == stripe.ErrorCodePaymentIntentUnexpectedState {
		return &ProviderError{Op: op, Code: string(se.Code), StatusCode: se.HTTPStatusCode, Err: ErrIntentSettled}
	}

	retryable := se.HTTPStatusCode == http.StatusTooManyRequests ||
		se.HTTPStatusCode >= http.StatusInternalServerError ||
		se.HTTPStatusCode == 0
	return &ProviderError{
		Op:         op,
		Code:       string(se.Code),
		StatusCode: se.HTTPStatusCode,
		Retryable:  retryable,
		Err:        errors.New(se.Msg),
	}
}
