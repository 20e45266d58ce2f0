// Package events relays recorded activity to NATS through a bounded worker queue.
package events

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/headless-pm/cloudtask/internal/models"
)

// Sender delivers one encoded message.
type Sender interface {
	Send(subject string, data []byte) error
}

type job struct {
	subject string
	data    []byte
	retry   int
}

type Options struct {
	Prefix     string
	Workers    int
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
}

func (o *Options) defaults() {
	if o.Prefix == "" {
		o.Prefix = "cloudtask"
	}
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1000
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
}

type Relay struct {
	sender  Sender
	opts    Options
	logger  *log.Logger
	jobs    chan job
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

func NewRelay(sender Sender, opts Options, logger *log.Logger) *Relay {
	opts.defaults()
	return &Relay{
		sender: sender,
		opts:   opts,
		logger: logger.WithPrefix("events"),
		jobs:   make(chan job, opts.QueueSize),
	}
}

func (r *Relay) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.logger.Info("relay started", "workers", r.opts.Workers, "prefix", r.opts.Prefix)
}

// Stop drains the queue and waits for in-flight sends. Retries scheduled after Stop are dropped.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.jobs)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("relay stopped")
}

// Subject is <prefix>.activity.<entity>, e.g. cloudtask.activity.task.
func (r *Relay) Subject(entry models.ActivityLog) string {
	return r.opts.Prefix + ".activity." + strings.ToLower(string(entry.EntityType))
}

// Publish queues entry for delivery. It never blocks; a full queue drops the entry.
func (r *Relay) Publish(entry models.ActivityLog) {
	data, err := json.Marshal(entry)
	if err != nil {
		r.logger.Error("failed to encode activity", "id", entry.ID, "err", err)
		return
	}
	r.enqueue(job{subject: r.Subject(entry), data: data})
}

func (r *Relay) enqueue(j job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return false
	}
	select {
	case r.jobs <- j:
		return true
	default:
		r.logger.Warn("relay queue full, dropping event", "subject", j.subject)
		return false
	}
}

func (r *Relay) worker() {
	defer r.wg.Done()
	for j := range r.jobs {
		r.process(j)
	}
}

func (r *Relay) process(j job) {
	err := r.sender.Send(j.subject, j.data)
	if err == nil {
		r.logger.Debug("event published", "subject", j.subject)
		return
	}

	r.logger.Warn("failed to publish event", "subject", j.subject, "retry", j.retry, "err", err)
	if j.retry >= r.opts.MaxRetries {
		r.logger.Error("giving up on event", "subject", j.subject)
		return
	}
	j.retry++
	time.Sleep(r.opts.RetryDelay * time.Duration(j.retry))
	r.enqueue(j)
}
