package push

import (
	"fmt"

	"heartlink-backend/internal/config"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
)

// Notifier delivers message notifications to offline receivers over APNs.
type Notifier struct {
	client *apns2.Client
	topic  string
}

// NewNotifier loads the p12 certificate and builds the APNs client.
func NewNotifier(cfg *config.APNSConfig) (*Notifier, error) {
	cert, err := certificate.FromP12File(cfg.CertPath, cfg.CertPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &Notifier{client: client, topic: cfg.Topic}, nil
}

// NotifyNewMessage sends a "new message" alert to a device token.
func (n *Notifier) NotifyNewMessage(deviceToken, senderName, text string) error {
	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       n.topic,
		Payload: []byte(fmt.Sprintf(
			`{"aps":{"alert":{"title":%q,"body":%q},"sound":"default"}}`,
			senderName, text,
		)),
	}

	res, err := n.client.Push(notification)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("notification rejected: %s", res.Reason)
	}
	return nil
}
