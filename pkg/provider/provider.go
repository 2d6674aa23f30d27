package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrUnavailable means no response was obtained, so the outcome of the call is unknown.
var ErrUnavailable = errors.New("card provider unavailable")

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Body       json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     logrus.FieldLogger
}

func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	st := gobreaker.Settings{
		Name:        "CardProvider",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// client errors are answers, not an unhealthy provider
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"name": name, "from": from.String(), "to": to.String()}).
				Warn("circuit breaker state changed")
		},
	}

	return &Client{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(st),
		log:     log,
	}
}

// FlexString accepts both JSON strings and numbers, the provider mixes them.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = FlexString(strings.Trim(string(b), `"`))
	return nil
}

func (f FlexString) String() string { return string(f) }

// envelope is the provider's usual {"data": ...} wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, headers map[string]string) (json.RawMessage, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.client.R().SetContext(ctx).SetHeaders(headers)
		if body != nil {
			req.SetBody(body)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if resp.IsError() {
			return nil, newAPIError(resp.StatusCode(), resp.Body())
		}
		return json.RawMessage(resp.Body()), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.log.WithFields(logrus.Fields{"method": method, "path": path}).WithError(err).Warn("provider call failed")
		return nil, err
	}
	return out.(json.RawMessage), nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status), Body: body}
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		switch {
		case env.Error != "":
			apiErr.Message = env.Error
		case env.Message != "":
			apiErr.Message = env.Message
		}
	}
	return apiErr
}

type CardholderRequest struct {
	Name         string `json:"name"`
	FirstName    string `json:"first_name"`
	MidName      string `json:"mid_name"`
	LastName     string `json:"last_name"`
	Gender       int    `json:"gender"`
	DateOfBirth  string `json:"date_of_birth"`
	EmailAddress string `json:"email_address"`
	Purpose      string `json:"purpose"`
}

// CreateCardholder returns the provider id of the new cardholder.
func (c *Client) CreateCardholder(ctx context.Context, req CardholderRequest, idempotencyKey string) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, "/cards/holder", req, map[string]string{"Idempotency-Key": idempotencyKey})
	if err != nil {
		return "", err
	}
	var env struct {
		Data struct {
			ID FlexString `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Data.ID.String() == "" {
		return "", fmt.Errorf("cardholder response carries no id: %s", string(raw))
	}
	return env.Data.ID.String(), nil
}

type Card struct {
	ID           FlexString      `json:"id"`
	CardNumber   string          `json:"card_number"`
	MaskedNumber string          `json:"masked_number"`
	CVV          string          `json:"card_cvv"`
	ExpMonth     FlexString      `json:"card_exp_month"`
	ExpYear      FlexString      `json:"card_exp_year"`
	Balance      decimal.Decimal `json:"balance"`
	State        string          `json:"state"`
	Brand        string          `json:"brand"`
}

func (c Card) Expiry() string {
	return fmt.Sprintf("%s/%s", c.ExpMonth, c.ExpYear)
}

func (c *Client) CreateCard(ctx context.Context, cardholderID, purpose, idempotencyKey string) (*Card, error) {
	raw, err := c.do(ctx, http.MethodPost, "/cards/create",
		map[string]string{"cardholder_id": cardholderID, "purpose": purpose},
		map[string]string{"Idempotency-Key": idempotencyKey})
	if err != nil {
		return nil, err
	}
	var env struct {
		Data struct {
			Card Card `json:"card"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse card response: %w", err)
	}
	if env.Data.Card.ID == "" {
		return nil, fmt.Errorf("card response carries no card: %s", string(raw))
	}
	return &env.Data.Card, nil
}

// FundResult keeps the provider's body verbatim so it can be handed back to the caller.
type FundResult struct {
	Raw json.RawMessage
}

// FundCard credits amount to the card, sent as an exact two-decimal number. The idempotency
// key lets the provider collapse retried calls carrying the same intent into one funding.
func (c *Client) FundCard(ctx context.Context, cardID string, amount decimal.Decimal, idempotencyKey string) (*FundResult, error) {
	raw, err := c.do(ctx, http.MethodPost, "/cards/"+url.PathEscape(cardID)+"/fund",
		map[string]interface{}{"amount": json.Number(amount.StringFixed(2))},
		map[string]string{"Idempotency-Key": idempotencyKey})
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		raw = nil
	}
	return &FundResult{Raw: raw}, nil
}

func (c *Client) GetCard(ctx context.Context, cardID string) (*Card, error) {
	raw, err := c.do(ctx, http.MethodGet, "/cards/details/"+url.PathEscape(cardID), nil, nil)
	if err != nil {
		return nil, err
	}
	var env struct {
		Data Card `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse card details: %w", err)
	}
	return &env.Data, nil
}

func (c *Client) DeleteCard(ctx context.Context, cardID, idempotencyKey string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cards/"+url.PathEscape(cardID), nil, map[string]string{"Idempotency-Key": idempotencyKey})
	return err
}

type CardTransaction struct {
	ID          FlexString      `json:"id"`
	Merchant    string          `json:"merchant"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	DateCreated string          `json:"date_created"`
}

func (c *Client) CardTransactions(ctx context.Context, cardID string) ([]CardTransaction, error) {
	raw, err := c.do(ctx, http.MethodGet, "/cards/transactions/"+url.PathEscape(cardID), nil, nil)
	if err != nil {
		return nil, err
	}
	var env struct {
		Data []CardTransaction `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse card transactions: %w", err)
	}
	return env.Data, nil
}
