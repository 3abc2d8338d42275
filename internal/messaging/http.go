package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type HTTPSender struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (h HTTPSender) Send(ctx context.Context, msg Message) error {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 15 * time.Second}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/messages", bytes.NewBuffer(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("messaging service error: %s", resp.Status)
	}
	return nil
}
