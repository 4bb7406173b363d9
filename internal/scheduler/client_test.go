package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

type stubSchedulerConfig struct {
	redisURL    string
	tlsInsecure bool
	queue       string
	concurrency int
}

func (c stubSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c stubSchedulerConfig) GetRedisTLSInsecure() bool { return c.tlsInsecure }
func (c stubSchedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c stubSchedulerConfig) GetAsynqConcurrency() int  { return c.concurrency }

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@localhost:6379/2", false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opt.Addr != "localhost:6379" {
		t.Errorf("addr = %s", opt.Addr)
	}
	if opt.Password != "secret" {
		t.Errorf("password = %s", opt.Password)
	}
	if opt.DB != 2 {
		t.Errorf("db = %d", opt.DB)
	}
	if opt.TLSConfig != nil {
		t.Errorf("unexpected TLS config for plain redis URL")
	}
}

func TestRedisClientOptTLSInsecure(t *testing.T) {
	opt, err := redisClientOpt("redis://localhost:6379", true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Errorf("insecure TLS config not applied")
	}
}

func TestRedisClientOptRejectsBadURL(t *testing.T) {
	if _, err := redisClientOpt("not-a-url", false); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(stubSchedulerConfig{}); err == nil {
		t.Fatal("expected error when redis url missing")
	}
}

func TestEnqueueOutboxDue(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(stubSchedulerConfig{redisURL: "redis://" + mr.Addr(), queue: "notifications"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	err = client.EnqueueOutboxDue(context.Background(), NotificationOutboxDuePayload{
		OutboxID: uuid.NewString(),
		LeadID:   uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if len(mr.Keys()) == 0 {
		t.Error("no task data written to redis")
	}
}
