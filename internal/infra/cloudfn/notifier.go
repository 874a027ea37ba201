package cloudfn

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lead-gate-service/internal/app"
	"lead-gate-service/internal/domain"
	"github.com/go-resty/resty/v2"
)

// Notifier posts counselor emails to the universal notification Cloud
// Function. The caller pre-formats the whole body; this adapter only ships
// it.
type Notifier struct {
	client *resty.Client
	url    string
}

func NewNotifier(url string, timeout time.Duration) *Notifier {
	return &Notifier{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

type notifyRequest struct {
	Recipients []string `json:"recipients"`
	EmailBody  string   `json:"emailBody"`
	Subject    string   `json:"subject"`
}

func (n *Notifier) Notify(ctx context.Context, notification app.Notification) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(notifyRequest{
			Recipients: notification.Recipients,
			EmailBody:  notification.Body,
			Subject:    notification.Subject,
		}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("notify request: %w", err)
	}

	var body struct {
		Success bool `json:"success"`
	}
	if resp.IsSuccess() {
		if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Success {
			return nil
		}
	}
	return fmt.Errorf("notify status %d: %w", resp.StatusCode(), domain.ErrProviderRejected)
}
