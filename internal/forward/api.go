package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/fundsync-dev/fundsync/internal/model"
)

const skipAlert = "no"

type donationRequest struct {
	Name       string      `json:"name"`
	Message    string      `json:"message"`
	Identifier string      `json:"identifier"`
	Amount     json.Number `json:"amount"`
	Currency   string      `json:"currency"`
	SkipAlert  string      `json:"skip_alert"`
}

type donationResponse struct {
	DonationID donationID `json:"donation_id"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// donationID accepts the identifier as either a JSON string or number.
type donationID string

func (d *donationID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = donationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("donation_id: %w", err)
	}
	*d = donationID(n.String())
	return nil
}

func (f *Forwarder) exchange(ctx context.Context, code string) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	tok, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		f.logger.Error("failed to exchange authorization code", "error", err)
		return
	}

	creds := model.Credentials{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if err := f.creds.Save(creds); err != nil {
		f.logger.Error("failed to save credentials", "error", err)
		return
	}
	f.logger.Info("obtained access token")
}

// send posts one donation. Every failure mode becomes a failed Outcome; a 401
// also clears the stored credentials.
func (f *Forwarder) send(ctx context.Context, token string, p model.Payment, message string) model.Outcome {
	payload := donationRequest{
		Name:       p.Sender,
		Message:    message,
		Identifier: f.newID(),
		Amount:     json.Number(p.FormattedAmount()),
		Currency:   f.cfg.Currency,
		SkipAlert:  skipAlert,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return f.transportFailure(p, fmt.Errorf("marshaling donation: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.BaseURL+"/donations", bytes.NewReader(body))
	if err != nil {
		return f.transportFailure(p, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	f.logger.Debug("sending donation", "payload", string(body))
	resp, err := f.client.Do(req)
	if err != nil {
		return f.transportFailure(p, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return f.transportFailure(p, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var dr donationResponse
		if len(bytes.TrimSpace(respBody)) > 0 {
			if err := json.Unmarshal(respBody, &dr); err != nil {
				return f.transportFailure(p, fmt.Errorf("decoding response: %w", err))
			}
		}
		f.logger.Info("donation sent", "name", p.Sender, "amount", p.FormattedAmount(), "donation_id", string(dr.DonationID))
		return model.Succeeded(p, string(dr.DonationID))
	}

	msg := model.UnknownError
	var er errorResponse
	if json.Unmarshal(respBody, &er) == nil && er.Message != "" {
		msg = er.Message
	}
	f.logger.Error("donation rejected", "status", resp.StatusCode, "message", msg, "body", string(respBody))

	if resp.StatusCode == http.StatusUnauthorized {
		cleared, err := f.creds.ClearIf(token)
		switch {
		case err != nil:
			f.logger.Error("failed to clear credentials", "error", err)
		case cleared:
			f.logger.Warn("access token rejected, credentials cleared")
		default:
			f.logger.Info("access token rejected, keeping newer credentials")
		}
	}
	return model.Failed(p, msg)
}

func (f *Forwarder) transportFailure(p model.Payment, err error) model.Outcome {
	f.logger.Error("error sending donation", "name", p.Sender, "error", err)
	return model.Failed(p, err.Error())
}
