// Package notify sends operator-triggered expiry alerts through the
// inventory service's /send-alert endpoint.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/railtrack-insight/trackwatch/pkg/inventory"
	"github.com/railtrack-insight/trackwatch/pkg/whttp"
	"github.com/tidwall/sjson"
)

type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "Email"
)

// ParseChannel accepts "sms" or "email" in any case.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sms":
		return ChannelSMS, nil
	case "email", "e-mail":
		return ChannelEmail, nil
	}
	return "", fmt.Errorf("unknown alert channel %q (expected SMS or Email)", s)
}

// Message renders the alert text for an item.
func Message(item inventory.Item, ch Channel) string {
	return fmt.Sprintf("%s Alert: Component %s (%s) expires soon. Rail Pole: %s", ch, item.LotNumber, item.ItemType, item.RailPoleNumber)
}

// Delivery describes one send attempt.
type Delivery struct {
	ItemKey        string    `json:"item_key"`
	LotNumber      string    `json:"lot_number"`
	ItemType       string    `json:"item_type"`
	RailPoleNumber string    `json:"rail_pole_number"`
	Channel        Channel   `json:"channel"`
	Message        string    `json:"message"`
	SentAt         time.Time `json:"sent_at"`
	StatusCode     int       `json:"status_code,omitempty"`
	Ack            string    `json:"ack,omitempty"`
}

// Notifier posts alerts to the service. Each Send is a single request;
// failures are returned to the caller and never retried here.
type Notifier struct {
	baseURL string
	http    *retryablehttp.Client
	now     func() time.Time
}

// NewNotifier sends through a single-attempt copy of httpClient. The
// caller's client keeps its own retry setting.
func NewNotifier(baseURL string, httpClient *retryablehttp.Client) *Notifier {
	return &Notifier{baseURL: strings.TrimRight(baseURL, "/"), http: singleAttempt(httpClient), now: time.Now}
}

func singleAttempt(c *retryablehttp.Client) *retryablehttp.Client {
	out := retryablehttp.NewClient()
	out.HTTPClient = c.HTTPClient
	out.Logger = c.Logger
	out.RetryWaitMin = c.RetryWaitMin
	out.RetryWaitMax = c.RetryWaitMax
	out.RequestLogHook = c.RequestLogHook
	out.ResponseLogHook = c.ResponseLogHook
	out.CheckRetry = c.CheckRetry
	out.Backoff = c.Backoff
	out.ErrorHandler = c.ErrorHandler
	out.RetryMax = 0
	return out
}

// Send delivers one alert for item over ch.
func (n *Notifier) Send(ctx context.Context, item inventory.Item, ch Channel) (Delivery, error) {
	d := Delivery{
		ItemKey:        item.Key(),
		LotNumber:      item.LotNumber,
		ItemType:       item.ItemType,
		RailPoleNumber: item.RailPoleNumber,
		Channel:        ch,
		Message:        Message(item, ch),
		SentAt:         n.now().UTC(),
	}

	body, err := buildBody(item, ch, d.Message)
	if err != nil {
		return d, err
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: http.MethodPost,
		URL:    n.baseURL + "/send-alert",
		Body:   body,
	}, n.http)
	if err != nil {
		return d, fmt.Errorf("sending %s alert for %s: %w", ch, item.LotNumber, err)
	}
	d.StatusCode = res.StatusCode
	d.Ack = strings.TrimSpace(res.BodyString)
	if !res.IsSuccess() {
		return d, fmt.Errorf("sending %s alert for %s failed: %s", ch, item.LotNumber, res.ErrorSummary())
	}
	return d, nil
}

// buildBody embeds the item exactly as the inventory service returned it,
// falling back to the decoded fields when no raw JSON is available.
func buildBody(item inventory.Item, ch Channel, message string) ([]byte, error) {
	raw := item.Raw
	if raw == "" {
		b, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		raw = string(b)
	}
	body, err := sjson.SetRaw(`{}`, "item", raw)
	if err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "alertType", string(ch)); err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "message", message); err != nil {
		return nil, err
	}
	return []byte(body), nil
}
