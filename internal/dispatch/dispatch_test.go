package dispatch

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headless-pm/cloudtask/internal/models"
)

type fakeStore struct {
	activity    []models.ActivityLog
	notes       []models.Notification
	activityErr error
	notesErr    error
}

func (f *fakeStore) RecordActivity(_ context.Context, e *models.ActivityLog) error {
	if f.activityErr != nil {
		return f.activityErr
	}
	f.activity = append(f.activity, *e)
	return nil
}

func (f *fakeStore) CreateNotifications(_ context.Context, n []models.Notification) error {
	if f.notesErr != nil {
		return f.notesErr
	}
	f.notes = append(f.notes, n...)
	return nil
}

type fakePublisher struct{ got []models.ActivityLog }

func (p *fakePublisher) Publish(e models.ActivityLog) { p.got = append(p.got, e) }

func uptr(v uint) *uint { return &v }

func TestRecipients(t *testing.T) {
	got := Recipients(1, uptr(2), nil, uptr(1), uptr(3), uptr(2), uptr(0), uptr(4))
	assert.Equal(t, []uint{2, 3, 4}, got)

	assert.Empty(t, Recipients(1, uptr(1), nil))
	assert.Equal(t, []uint{5, 6}, Recipients(1, IDs(5, 1, 6, 5)...))
}

func TestEmit(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	d := New(store, log.New(&bytes.Buffer{}))
	d.SetPublisher(pub)

	ev := Event{Activity: &models.ActivityLog{UserID: 1, Action: models.ActionCreate, EntityType: models.EntityTask, EntityID: 9}}
	ev.Add(models.NotificationTaskAssigned, "New task assigned", "msg", models.TaskLink(9), []uint{2, 3})
	d.Emit(context.Background(), ev)

	require.Len(t, store.activity, 1)
	require.Len(t, store.notes, 2)
	assert.Equal(t, uint(2), store.notes[0].RecipientID)
	assert.Equal(t, "/tasks/9", store.notes[1].Link)
	require.Len(t, pub.got, 1)
	assert.Equal(t, models.ActionCreate, pub.got[0].Action)
}

func TestEmitSwallowsErrors(t *testing.T) {
	var buf bytes.Buffer
	store := &fakeStore{activityErr: errors.New("disk full"), notesErr: errors.New("disk full")}
	pub := &fakePublisher{}
	d := New(store, log.New(&buf))
	d.SetPublisher(pub)

	ev := Event{Activity: &models.ActivityLog{Action: models.ActionDelete}}
	ev.Add(models.NotificationTaskUpdated, "t", "m", "", []uint{2})

	assert.NotPanics(t, func() { d.Emit(context.Background(), ev) })
	assert.Empty(t, pub.got, "unrecorded activity is not relayed")
	assert.Contains(t, buf.String(), "failed to record activity")
	assert.Contains(t, buf.String(), "failed to create notifications")
}
