package stream

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/storage"

	"github.com/miradorstack/mirador-engage/internal/azure"
)

// AzureQueueConfig configures the storage queue publisher.
type AzureQueueConfig struct {
	Credentials azure.Credentials
	QueuePrefix string
}

// queueAPI is the slice of the queue service the publisher needs.
type queueAPI interface {
	Ensure(name string) error
	Put(name, text string) error
}

// AzureQueuePublisher writes base64-encoded messages to one storage queue per
// subject. Queues are created on first use.
type AzureQueuePublisher struct {
	api    queueAPI
	prefix string
	logger *slog.Logger

	mu    sync.Mutex
	ready map[string]bool
}

// NewAzureQueuePublisher authenticates against the storage account.
func NewAzureQueuePublisher(cfg AzureQueueConfig, logger *slog.Logger) (*AzureQueuePublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := azure.NewClient(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	svc := client.GetQueueService()
	return newAzureQueuePublisher(&storageQueues{svc: &svc}, cfg.QueuePrefix, logger), nil
}

func newAzureQueuePublisher(api queueAPI, prefix string, logger *slog.Logger) *AzureQueuePublisher {
	if prefix == "" {
		prefix = "engage"
	}
	return &AzureQueuePublisher{api: api, prefix: prefix, logger: logger, ready: make(map[string]bool)}
}

// Publish enqueues payload on the queue for subject.
func (p *AzureQueuePublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := QueueName(p.prefix, subject)
	if err := p.ensure(name); err != nil {
		return err
	}
	if err := p.api.Put(name, base64.StdEncoding.EncodeToString(payload)); err != nil {
		return fmt.Errorf("azure queue %s: put message: %w", name, err)
	}
	return nil
}

// Close is a no-op; the storage client is stateless HTTP.
func (p *AzureQueuePublisher) Close() error { return nil }

func (p *AzureQueuePublisher) ensure(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready[name] {
		return nil
	}
	if err := p.api.Ensure(name); err != nil {
		return fmt.Errorf("azure queue %s: create: %w", name, err)
	}
	p.ready[name] = true
	p.logger.Info("azure queue ready", slog.String("queue", name))
	return nil
}

// QueueName maps a subject to a valid storage queue name: lowercase letters,
// digits and single dashes, 3 to 63 characters.
func QueueName(prefix, subject string) string {
	raw := strings.ToLower(prefix + "-" + subject)
	var b strings.Builder
	lastDash := true
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	name := strings.TrimRight(b.String(), "-")
	for len(name) < 3 {
		name += "q"
	}
	if len(name) > 63 {
		name = strings.TrimRight(name[:63], "-")
	}
	return name
}

type storageQueues struct {
	svc *storage.QueueServiceClient
}

func (s *storageQueues) Ensure(name string) error {
	q := s.svc.GetQueueReference(name)
	exists, err := q.Exists()
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return q.Create(nil)
}

func (s *storageQueues) Put(name, text string) error {
	return s.svc.GetQueueReference(name).GetMessageReference(text).Put(nil)
}
