package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Message struct {
	Content string `json:"content"`
}

// Messager posts operational messages to a Discord webhook.
type Messager struct {
	BaseURL string
	Name    string

	notify bool
	client *http.Client
}

func NewMessager(baseURL, name string, notify bool) *Messager {
	return &Messager{
		BaseURL: baseURL,
		Name:    name,
		notify:  notify && baseURL != "",
		client:  http.DefaultClient,
	}
}

func (b *Messager) send(ctx context.Context, content string) error {
	if !b.notify {
		return nil
	}

	data, err := json.Marshal(Message{Content: fmt.Sprintf("[%s] %s", b.Name, content)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	// discord answers 204 when wait=false
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("error sending message")
	}

	return nil
}

func (b *Messager) Notify(ctx context.Context, message string) error {
	return b.send(ctx, message)
}

func (b *Messager) NotifyWarning(ctx context.Context, errorMessage error) error {
	return b.send(ctx, "warning: "+errorMessage.Error())
}

func (b *Messager) NotifyError(ctx context.Context, errorMessage error) error {
	return b.send(ctx, "error: "+errorMessage.Error())
}
