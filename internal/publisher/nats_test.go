package publisher

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svrlive.org/internal/tracker"
)

type recordedMsg struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []recordedMsg
	fail map[string]bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[subject] {
		return errors.New("nats: connection closed")
	}
	f.msgs = append(f.msgs, recordedMsg{subject, data})
	return nil
}

type countingMetrics struct {
	published, failed, observed int
}

func (c *countingMetrics) NATSPublishedInc()              { c.published++ }
func (c *countingMetrics) NATSPublishErrInc()             { c.failed++ }
func (c *countingMetrics) PublishObserve(_ time.Duration) { c.observed++ }
func (c *countingMetrics) NATSSetConnected(_ bool)        {}

func sampleSnapshot() tracker.Snapshot {
	return tracker.Snapshot{
		Timetable: "Green",
		Clock:     "10:10",
		Statuses: []tracker.Status{
			{TrainNumber: "Steam 7802", Text: "Terminated at Bridgnorth"},
			{TrainNumber: "DMU.1", Text: "Waiting at Kidderminster"},
		},
	}
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "Steam_7802", subjectToken(" Steam 7802 "))
	assert.Equal(t, "a_b_c_d", subjectToken("a.b*c>d"))
	assert.Equal(t, "_", subjectToken("   "))
}

func TestNewNormalizesPrefix(t *testing.T) {
	assert.Equal(t, "svrlive.board", New(&fakeConn{}, "", nil, nil).BoardSubject())
	assert.Equal(t, "rail.board", New(&fakeConn{}, ".rail.", nil, nil).BoardSubject())
}

func TestPublishSnapshot(t *testing.T) {
	conn := &fakeConn{}
	m := &countingMetrics{}
	p := New(conn, "svr", m, nil)
	now := time.Date(2025, 10, 18, 10, 10, 0, 0, time.UTC)

	require.NoError(t, p.PublishSnapshot(sampleSnapshot(), now))

	require.Len(t, conn.msgs, 3)
	assert.Equal(t, "svr.board", conn.msgs[0].subject)
	assert.Equal(t, "svr.trains.Steam_7802", conn.msgs[1].subject)
	assert.Equal(t, "svr.trains.DMU_1", conn.msgs[2].subject)

	var train TrainMessage
	require.NoError(t, json.Unmarshal(conn.msgs[1].data, &train))
	assert.Equal(t, "Green", train.Timetable)
	assert.Equal(t, "10:10", train.Clock)
	assert.Equal(t, "Terminated at Bridgnorth", train.Status.Text)
	assert.True(t, now.Equal(train.Timestamp))

	assert.Equal(t, 3, m.published)
	assert.Equal(t, 3, m.observed)
	assert.Zero(t, m.failed)
}

func TestPublishSnapshotContinuesAfterFailure(t *testing.T) {
	conn := &fakeConn{fail: map[string]bool{"svr.board": true}}
	m := &countingMetrics{}
	p := New(conn, "svr", m, nil)

	err := p.PublishSnapshot(sampleSnapshot(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svr.board")

	assert.Len(t, conn.msgs, 2)
	assert.Equal(t, 1, m.failed)
	assert.Equal(t, 2, m.published)
}
