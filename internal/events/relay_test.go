package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headless-pm/cloudtask/internal/models"
)

type recordingSender struct {
	mu       sync.Mutex
	failures int
	subjects []string
	payloads [][]byte
}

func (s *recordingSender) Send(subject string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("not connected")
	}
	s.subjects = append(s.subjects, subject)
	s.payloads = append(s.payloads, data)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subjects)
}

func quietLogger() *log.Logger { return log.New(&bytes.Buffer{}) }

func TestRelayPublishes(t *testing.T) {
	sender := &recordingSender{}
	r := NewRelay(sender, Options{Prefix: "test", Workers: 1}, quietLogger())
	r.Start()

	r.Publish(models.ActivityLog{ID: 1, Action: models.ActionCreate, EntityType: models.EntityTask, EntityID: 5})
	r.Stop()

	require.Equal(t, 1, sender.count())
	assert.Equal(t, "test.activity.task", sender.subjects[0])

	var got models.ActivityLog
	require.NoError(t, json.Unmarshal(sender.payloads[0], &got))
	assert.Equal(t, uint(5), got.EntityID)
}

func TestRelayRetries(t *testing.T) {
	sender := &recordingSender{failures: 2}
	r := NewRelay(sender, Options{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond}, quietLogger())
	r.Start()
	defer r.Stop()

	r.Publish(models.ActivityLog{EntityType: models.EntityProject})
	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "cloudtask.activity.project", sender.subjects[0])
}

func TestRelayIgnoresPublishWhenStopped(t *testing.T) {
	sender := &recordingSender{}
	r := NewRelay(sender, Options{}, quietLogger())
	r.Publish(models.ActivityLog{EntityType: models.EntityTask})
	r.Start()
	r.Stop()
	r.Stop()
	r.Publish(models.ActivityLog{EntityType: models.EntityTask})
	assert.Zero(t, sender.count())
}
