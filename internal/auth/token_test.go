package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/apperr"
)

func newTestIssuer(deny DenyList) *Issuer {
	return NewIssuer(Config{Secret: "super-secret", TTL: time.Hour}, deny)
}

func sampleClaims() Claims {
	return Claims{AccountID: 7, Role: "Admin", Username: "ab", FullName: "A B", Email: "a@b.com"}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer(nil)
	tok, exp, err := iss.Issue(sampleClaims())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	got, err := iss.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.AccountID)
	assert.Equal(t, "Admin", got.Role)
	assert.Equal(t, "ab", got.Username)
	assert.Equal(t, "A B", got.FullName)
	assert.Equal(t, "a@b.com", got.Email)
	assert.NotEmpty(t, got.ID)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, exp.Unix(), got.ExpiresAt.Unix())
}

func TestIssue_FreshTokenIDs(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer(nil)
	a, _, err := iss.Issue(sampleClaims())
	require.NoError(t, err)
	b, _, err := iss.Issue(sampleClaims())
	require.NoError(t, err)

	ca, err := iss.Verify(context.Background(), a)
	require.NoError(t, err)
	cb, err := iss.Verify(context.Background(), b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer(nil)
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, err := iss.Issue(sampleClaims())
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestVerify_TamperedSignature(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer(nil)
	tok, _, err := iss.Issue(sampleClaims())
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	first := parts[2][0]
	repl := byte('A')
	if first == 'A' {
		repl = 'B'
	}
	parts[2] = string(repl) + parts[2][1:]

	_, err = iss.Verify(context.Background(), strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := newTestIssuer(nil).Issue(sampleClaims())
	require.NoError(t, err)

	other := NewIssuer(Config{Secret: "other-secret", TTL: time.Hour}, nil)
	_, err = other.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer(nil)
	_, err := iss.Verify(context.Background(), "not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Verify(context.Background(), "")
	require.ErrorIs(t, err, ErrNoToken)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	c := sampleClaims()
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestIssuer(nil).Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_MissingExpiry(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sampleClaims()).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	_, err = newTestIssuer(nil).Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	deny := NewMemoryDenyList()
	iss := newTestIssuer(deny)
	tok, _, err := iss.Issue(sampleClaims())
	require.NoError(t, err)

	claims, err := iss.Verify(context.Background(), tok)
	require.NoError(t, err)
	require.NoError(t, iss.Revoke(context.Background(), claims))

	_, err = iss.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, 1, deny.Len())
}

func TestRevoke_NoDenyListIsNoop(t *testing.T) {
	t.Parallel()

	require.NoError(t, newTestIssuer(nil).Revoke(context.Background(), nil))
}

type failingDenyList struct{}

func (failingDenyList) Add(context.Context, string, time.Time) error { return nil }
func (failingDenyList) Contains(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestVerify_DenyListFailureIsStoreError(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer(failingDenyList{})
	tok, _, err := iss.Issue(sampleClaims())
	require.NoError(t, err)

	_, err = iss.Verify(context.Background(), tok)
	require.Error(t, err)
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))
}
