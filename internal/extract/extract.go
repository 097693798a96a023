// Package extract turns payment notification text into receipts.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fundsync-dev/fundsync/internal/model"
)

var (
	amountPattern = regexp.MustCompile(`(?:Rs\.?|₹)\s*(\d+(?:,\d+)*(?:\.\d{1,2})?)`)
	senderPattern = regexp.MustCompile(`from\s+([\w\s]+)`)
)

const receivedMarker = "received"

// Extractor finds the amount and payer in a "payment received" notification.
// It holds no state besides its logger and is safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

// New returns an Extractor. A nil logger means slog.Default().
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract returns the receipt described by text, or false when text is not a
// receipt or carries no usable amount. A missing payer name is not a miss:
// the sender becomes model.UnknownSender.
func (e *Extractor) Extract(text string) (model.Payment, bool) {
	if !strings.Contains(strings.ToLower(text), receivedMarker) {
		return model.Payment{}, false
	}

	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		e.logger.Debug("no amount in receipt", "text", text)
		return model.Payment{}, false
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		e.logger.Warn("unparseable amount in receipt", "amount", m[1], "error", err)
		return model.Payment{}, false
	}

	sender := model.UnknownSender
	if nm := senderPattern.FindStringSubmatch(text); nm != nil {
		if name := strings.TrimSpace(nm[1]); name != "" {
			sender = name
		}
	}
	if sender == model.UnknownSender {
		e.logger.Debug("no sender in receipt, using default", "text", text)
	}

	return model.Payment{Amount: amount, Sender: sender}, true
}
