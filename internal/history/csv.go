package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fundsync-dev/fundsync/internal/model"
)

// Header is the CSV header for an exported history.
const Header = "time,amount,sender,status,donation_id,error"

const (
	numFields     = 6
	timeFormat    = "2006-01-02T15:04:05.000Z07:00"
	colTime       = 0
	colAmount     = 1
	colSender     = 2
	colStatus     = 3
	colDonationID = 4
	colError      = 5

	statusOK     = "ok"
	statusFailed = "failed"
)

// MarshalEvent converts an event to a CSV row. Times are rendered in UTC.
func MarshalEvent(e model.PaymentEvent) []string {
	row := make([]string, numFields)
	row[colTime] = time.UnixMilli(e.Timestamp).UTC().Format(timeFormat)
	row[colAmount] = e.Amount
	row[colSender] = e.Sender
	row[colStatus] = statusOK
	if !e.Success {
		row[colStatus] = statusFailed
	}
	if e.DonationID != nil {
		row[colDonationID] = *e.DonationID
	}
	if e.ErrorMessage != nil {
		row[colError] = *e.ErrorMessage
	}
	return row
}

// WriteCSV writes events, with header, in the order given.
func WriteCSV(w io.Writer, events []model.PaymentEvent) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, e := range events {
		if err := cw.Write(MarshalEvent(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
