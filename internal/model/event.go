package model

import (
	"github.com/shopspring/decimal"
)

// UnknownSender is recorded when a receipt does not name the payer.
const UnknownSender = "Unknown"

// UnknownError is reported when a failed forward carries no usable message.
const UnknownError = "Unknown error"

// Payment is a receipt extracted from notification text.
type Payment struct {
	Amount decimal.Decimal
	Sender string
}

// FormattedAmount returns the amount with exactly two fraction digits.
func (p Payment) FormattedAmount() string {
	return p.Amount.StringFixed(2)
}

// PaymentEvent is one entry in the event history. Events are values; nothing
// mutates them after Outcome.Event stamps the timestamp.
type PaymentEvent struct {
	Amount       string  `json:"amount"`
	Sender       string  `json:"sender"`
	Timestamp    int64   `json:"timestamp"` // unix milliseconds, unique within a log
	DonationID   *string `json:"donationId"`
	Success      bool    `json:"isSuccess"`
	ErrorMessage *string `json:"errorMessage"`
}

// Outcome is the result of a forward attempt (or a local add) before it is
// stamped into the history.
type Outcome struct {
	Amount       string
	Sender       string
	DonationID   *string
	Success      bool
	ErrorMessage *string
}

// Succeeded reports a forward the API accepted. An empty donationID is
// recorded as absent.
func Succeeded(p Payment, donationID string) Outcome {
	o := Outcome{Amount: p.FormattedAmount(), Sender: p.Sender, Success: true}
	if donationID != "" {
		o.DonationID = &donationID
	}
	return o
}

// Failed reports a rejected or broken forward.
func Failed(p Payment, message string) Outcome {
	if message == "" {
		message = UnknownError
	}
	return Outcome{Amount: p.FormattedAmount(), Sender: p.Sender, ErrorMessage: &message}
}

// Local reports an event that was recorded without a forward attempt.
func Local(p Payment) Outcome {
	return Outcome{Amount: p.FormattedAmount(), Sender: p.Sender, Success: true}
}

// Event stamps the outcome with its insertion time.
func (o Outcome) Event(timestamp int64) PaymentEvent {
	return PaymentEvent{
		Amount:       o.Amount,
		Sender:       o.Sender,
		Timestamp:    timestamp,
		DonationID:   o.DonationID,
		Success:      o.Success,
		ErrorMessage: o.ErrorMessage,
	}
}
