package domain

import "time"

// AuthSession is the persisted sign-in state.
type AuthSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// Authenticated reports whether an access token is held.
func (s AuthSession) Authenticated() bool {
	return s.AccessToken != ""
}

// PendingPayment is the reconciliation marker written before redirecting to the hosted checkout.
type PendingPayment struct {
	TxRef     string `json:"tx_ref"`
	OrderID   ID     `json:"order_id"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// CreatedAt converts the millisecond timestamp.
func (p PendingPayment) CreatedAt() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}
