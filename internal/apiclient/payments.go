package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// PaymentInit asks the API to open a hosted checkout for an order.
type PaymentInit struct {
	OrderID   domain.ID `json:"order_id"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	TxRef     string    `json:"tx_ref"`
	ReturnURL string    `json:"return_url"`
}

// PaymentSession is the hosted checkout opened by the API.
type PaymentSession struct {
	CheckoutURL string `json:"checkout_url"`
	TxRef       string `json:"tx_ref"`
}

// PaymentVerification is the API's view of a payment after the hosted page returned.
type PaymentVerification struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Payment  struct {
		Order  domain.ID `json:"order"`
		Status string    `json:"status"`
		TxRef  string    `json:"tx_ref"`
	} `json:"payment"`
}

// InitializePayment opens a hosted checkout.
func (c *Client) InitializePayment(ctx context.Context, init PaymentInit) (PaymentSession, error) {
	var session PaymentSession
	if err := c.do(ctx, http.MethodPost, "/payments/initialize/", nil, init, &session); err != nil {
		return PaymentSession{}, err
	}
	return session, nil
}

// VerifyPayment asks the API whether the payment behind txRef settled.
func (c *Client) VerifyPayment(ctx context.Context, txRef string) (PaymentVerification, error) {
	var verification PaymentVerification
	if err := c.do(ctx, http.MethodGet, "/payments/verify/"+url.PathEscape(txRef)+"/", nil, nil, &verification); err != nil {
		return PaymentVerification{}, err
	}
	return verification, nil
}
