package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"ocf/verifybot/internal/metrics"
	"ocf/verifybot/internal/platform"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func testNotice() LinkNotice {
	return LinkNotice{
		TokenID:          7,
		SubjectID:        "1001",
		SubjectName:      "alice#1",
		RealmID:          testRealm,
		ExternalIdentity: "alice_ocf",
		CompletedAt:      time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}
}

func TestChannelNotifier(t *testing.T) {
	c := &mockClient{}
	c.On("PostNotice", mock.Anything, "audit", platform.Notice{
		Title: "New user verified!",
		Fields: []platform.Field{
			{Name: "Name", Value: "alice#1", Inline: true},
			{Name: "OCF account", Value: "alice_ocf", Inline: true},
			{Name: "Verification", Value: "#7", Inline: true},
		},
	}).Return(nil)

	n := NewChannelNotifier(c, "audit", "OCF")
	require.NoError(t, n.Notify(context.Background(), testNotice()))
	c.AssertExpectations(t)
}

type fakeDialer struct {
	block chan struct{}
	sent  []*gomail.Message
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.block != nil {
		<-d.block
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestMailNotifier(t *testing.T) {
	d := &fakeDialer{}
	n := &MailNotifier{dialer: d, from: "bot@ocf.berkeley.edu", to: "staff@ocf.berkeley.edu", service: "OCF"}

	require.NoError(t, n.Notify(context.Background(), testNotice()))
	require.Len(t, d.sent, 1)

	assert.Equal(t, []string{"New user verified: alice#1"}, d.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"staff@ocf.berkeley.edu"}, d.sent[0].GetHeader("To"))
}

func TestMailNotifierHonoursDeadline(t *testing.T) {
	d := &fakeDialer{block: make(chan struct{})}
	defer close(d.block)

	n := &MailNotifier{dialer: d, from: "a@b.c", to: "d@e.f"}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, n.Notify(ctx, testNotice()), context.DeadlineExceeded)
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (p *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	p.in = in
	p.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, p.err
}

func TestArchiveNotifier(t *testing.T) {
	p := &fakePutter{}
	n := NewArchiveNotifier(p, aws.String("audit-bucket"), "verifications/")

	require.NoError(t, n.Notify(context.Background(), testNotice()))

	assert.Equal(t, "audit-bucket", *p.in.Bucket)
	assert.Equal(t, "verifications/R/0000000007-1001.json", *p.in.Key)

	var got LinkNotice
	require.NoError(t, json.Unmarshal(p.body, &got))
	assert.Equal(t, testNotice(), got)
}

func TestArchiveNotifierError(t *testing.T) {
	p := &fakePutter{err: errors.New("access denied")}
	n := NewArchiveNotifier(p, aws.String("b"), "")

	assert.ErrorContains(t, n.Notify(context.Background(), testNotice()), "access denied")
}

func TestNotifyQueueFansOut(t *testing.T) {
	failing := &recordingNotifier{name: "failing-test", err: errors.New("smtp down")}
	ok := &recordingNotifier{name: "ok-test"}

	before := testutil.ToFloat64(metrics.NotificationFailures.WithLabelValues("failing-test"))

	q := NewNotifyQueue(2, 8, time.Second, failing, ok)
	q.StartWorkerPool()

	for range 3 {
		require.NoError(t, q.Announce(context.Background(), testNotice()))
	}
	q.Close()

	assert.Equal(t, 3, failing.count())
	assert.Equal(t, 3, ok.count())
	assert.EqualValues(t, 0, q.Pending())
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.NotificationFailures.WithLabelValues("failing-test")))
}

func TestNotifyQueueFullAndClosed(t *testing.T) {
	q := NewNotifyQueue(1, 1, time.Second, &recordingNotifier{name: "n"})

	require.NoError(t, q.Announce(context.Background(), testNotice()))
	assert.ErrorIs(t, q.Announce(context.Background(), testNotice()), ErrQueueFull)

	q.StartWorkerPool()
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Announce(context.Background(), testNotice()), ErrQueueClosed)
}

type countingStale struct {
	mu     sync.Mutex
	cutoff time.Time
	n      int64
	err    error
}

func (c *countingStale) CountStalePending(_ context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cutoff = cutoff
	return c.n, c.err
}

func TestReportStale(t *testing.T) {
	c := &countingStale{n: 3}

	n, err := reportStale(context.Background(), time.Hour, c)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), c.cutoff, time.Minute)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.StalePendingTokens))

	c.err = errors.New("db gone")
	_, err = reportStale(context.Background(), time.Hour, c)
	assert.Error(t, err)
}

func TestStaleTokenReportIgnoresZeroInterval(t *testing.T) {
	c := &countingStale{}

	assert.NotPanics(t, func() { StaleTokenReport(t.Context(), 0, time.Hour, c) })
	assert.NotPanics(t, func() { StaleTokenReport(t.Context(), -time.Second, time.Hour, c) })
}
