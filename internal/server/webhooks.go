package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"recruitline/internal/batch"
	"recruitline/internal/config"
)

const defaultWebhookTimeout = 5 * time.Second

type webhookNotifier struct {
	hooks []config.Webhook
	log   logrus.FieldLogger
}

// attachWebhooks posts the summary of every completed batch to hooks. A
// processor is wired once; the hooks of later calls for the same processor
// are ignored.
func attachWebhooks(p *batch.Processor, hooks []config.Webhook, log logrus.FieldLogger) bool {
	n := &webhookNotifier{hooks: hooks, log: log}
	return p.Subscribe("webhooks", n.notify)
}

func (n *webhookNotifier) notify(s batch.Summary) {
	for _, hook := range n.hooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		go func(hook config.Webhook) {
			if err := postSummary(context.Background(), hook, s); err != nil {
				n.log.WithError(err).WithFields(logrus.Fields{"url": hook.URL, "batch_id": s.ID}).Warn("webhook delivery failed")
			}
		}(hook)
	}
}

type webhookPayload struct {
	Event string        `json:"event"`
	TS    string        `json:"ts"`
	Batch batch.Summary `json:"batch"`
}

func postSummary(ctx context.Context, hook config.Webhook, s batch.Summary) error {
	data, err := json.Marshal(webhookPayload{
		Event: "batch.completed",
		TS:    time.Now().UTC().Format(time.RFC3339),
		Batch: s,
	})
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Recruitline-Event", "batch.completed")
	req.Header.Set("X-Recruitline-Delivery", s.ID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Recruitline-Secret", hook.Secret)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
