package service

import (
	"context"
	"errors"
	"net/http"
	"ocf/verifybot/internal/apperr"
	"ocf/verifybot/internal/platform"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testRealm = "R"
	testRole  = "verified"
)

func newVerifierForTest(t *testing.T) (*Verifier, *mockClient, *recordingSink, string) {
	t.Helper()

	s, _ := newStoreForTest(t)
	tok, err := s.CreateToken(context.Background(), "1001", "alice#1", testRealm)
	require.NoError(t, err)

	c := &mockClient{}
	sink := &recordingSink{}
	v := NewVerifier(s, c, sink, VerifierConfig{RoleID: testRole, Timeout: time.Second})

	return v, c, sink, tok.Token
}

func alice() *platform.Member {
	return &platform.Member{ID: "1001", DisplayName: "alice#1"}
}

func TestDisplayIsIdempotent(t *testing.T) {
	v, c, _, token := newVerifierForTest(t)
	ctx := context.Background()

	first, err := v.Display(ctx, token, "alice_ocf")
	require.NoError(t, err)
	assert.Equal(t, "alice#1", first.SubjectName)
	assert.Equal(t, "alice_ocf", first.ExternalIdentity)

	for range 3 {
		again, err := v.Display(ctx, token, "alice_ocf")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	c.AssertNotCalled(t, "AddRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisplayUnknownTokenIgnoresIdentity(t *testing.T) {
	v, _, _, _ := newVerifierForTest(t)

	for _, identity := range []string{"", "alice_ocf"} {
		_, err := v.Display(context.Background(), "does-not-exist", identity)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	}
}

func TestDisplayMissingIdentity(t *testing.T) {
	v, _, _, token := newVerifierForTest(t)

	_, err := v.Display(context.Background(), token, "")
	assert.ErrorIs(t, err, apperr.ErrMissingIdentity)
}

func TestConfirmEndToEnd(t *testing.T) {
	v, c, sink, token := newVerifierForTest(t)
	ctx := context.Background()

	c.On("Member", mock.Anything, testRealm, "1001").Return(alice(), nil).Once()
	c.On("AddRole", mock.Anything, testRealm, "1001", testRole).Return(nil).Once()

	res, err := v.Confirm(ctx, token, "alice_ocf")
	require.NoError(t, err)
	assert.True(t, res.Owned)
	assert.Equal(t, "alice#1", res.SubjectName)

	require.Equal(t, 1, sink.count())
	assert.Equal(t, "alice#1", sink.notices[0].SubjectName)
	assert.Equal(t, "alice_ocf", sink.notices[0].ExternalIdentity)
	assert.NotZero(t, sink.notices[0].TokenID)

	_, err = v.Confirm(ctx, token, "alice_ocf")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = v.Display(ctx, token, "alice_ocf")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	c.AssertExpectations(t)
	assert.Equal(t, 1, sink.count())
}

func TestConfirmGrantFailureKeepsTokenPending(t *testing.T) {
	v, c, sink, token := newVerifierForTest(t)
	ctx := context.Background()

	c.On("Member", mock.Anything, testRealm, "1001").Return(alice(), nil)
	c.On("AddRole", mock.Anything, testRealm, "1001", testRole).Return(errors.New("missing permissions")).Once()
	c.On("AddRole", mock.Anything, testRealm, "1001", testRole).Return(nil).Once()

	_, err := v.Confirm(ctx, token, "alice_ocf")
	var ee *apperr.ExternalServiceError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, http.StatusBadGateway, apperr.Status(err))
	assert.Zero(t, sink.count())

	_, err = v.Display(ctx, token, "alice_ocf")
	require.NoError(t, err)

	res, err := v.Confirm(ctx, token, "alice_ocf")
	require.NoError(t, err)
	assert.True(t, res.Owned)
	assert.Equal(t, 1, sink.count())
}

func TestConfirmMemberGone(t *testing.T) {
	v, c, sink, token := newVerifierForTest(t)

	c.On("Member", mock.Anything, testRealm, "1001").Return(nil, platform.ErrNotMember)

	_, err := v.Confirm(context.Background(), token, "alice_ocf")
	assert.ErrorIs(t, err, apperr.ErrMemberGone)
	assert.Zero(t, sink.count())
	c.AssertNotCalled(t, "AddRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	_, err = v.Display(context.Background(), token, "alice_ocf")
	assert.NoError(t, err)
}

func TestConfirmMissingIdentityGrantsNothing(t *testing.T) {
	v, c, _, token := newVerifierForTest(t)

	_, err := v.Confirm(context.Background(), token, "")
	assert.ErrorIs(t, err, apperr.ErrMissingIdentity)
	c.AssertNotCalled(t, "Member", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmNotificationFailureStillSucceeds(t *testing.T) {
	v, c, sink, token := newVerifierForTest(t)
	sink.err = ErrQueueFull

	c.On("Member", mock.Anything, testRealm, "1001").Return(alice(), nil)
	c.On("AddRole", mock.Anything, testRealm, "1001", testRole).Return(nil)

	res, err := v.Confirm(context.Background(), token, "alice_ocf")
	require.NoError(t, err)
	assert.True(t, res.Owned)
}

func TestConcurrentConfirmNotifiesOnce(t *testing.T) {
	v, c, sink, token := newVerifierForTest(t)

	c.On("Member", mock.Anything, testRealm, "1001").Return(alice(), nil)
	c.On("AddRole", mock.Anything, testRealm, "1001", testRole).Return(nil)

	const workers = 8

	var wg sync.WaitGroup
	owned := make([]bool, workers)
	errs := make([]error, workers)

	wg.Add(workers)
	for i := range workers {
		go func() {
			defer wg.Done()

			res, err := v.Confirm(context.Background(), token, "alice_ocf")
			errs[i] = err
			if res != nil {
				owned[i] = res.Owned
			}
		}()
	}
	wg.Wait()

	var winners int
	for i := range workers {
		// Late requests find the token completed, early losers see the race
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], apperr.ErrNotFound)
		}
		if owned[i] {
			winners++
		}
	}

	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, sink.count())
}

type slowClient struct {
	mockClient
}

func (s *slowClient) Member(ctx context.Context, _, _ string) (*platform.Member, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestConfirmPlatformTimeoutIsRetryable(t *testing.T) {
	s, _ := newStoreForTest(t)
	tok, err := s.CreateToken(context.Background(), "1001", "alice#1", testRealm)
	require.NoError(t, err)

	v := NewVerifier(s, &slowClient{}, &recordingSink{}, VerifierConfig{RoleID: testRole, Timeout: 20 * time.Millisecond})

	_, err = v.Confirm(context.Background(), tok.Token, "alice_ocf")
	require.Error(t, err)
	assert.True(t, apperr.Retryable(err))
	assert.Equal(t, http.StatusGatewayTimeout, apperr.Status(err))

	_, err = v.Display(context.Background(), tok.Token, "alice_ocf")
	assert.NoError(t, err)
}
