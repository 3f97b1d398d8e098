package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcErr "github.com/oggyb/campus-match/internal/errors"
)

func TestIssueAndParse(t *testing.T) {
	v := NewVerifier("secret", "campus-match", time.Hour)

	token, exp, err := v.Issue(Identity{UserID: "u-1", Email: "A@Uni.edu", EmailVerified: true, SID: "s1"})
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	id, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.UserID)
	assert.Equal(t, RoleUser, id.Role)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "s1", id.SID)
}

func TestParseRejectsWrongSecretAndExpired(t *testing.T) {
	issuer := NewVerifier("one", "campus-match", time.Hour)
	token, _, err := issuer.Issue(Identity{UserID: "u-1"})
	require.NoError(t, err)

	_, err = NewVerifier("two", "campus-match", time.Hour).Parse(token)
	assert.True(t, svcErr.Is(err, svcErr.KindUnauthenticated))

	expired := NewVerifier("one", "campus-match", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(Identity{UserID: "u-1"})
	require.NoError(t, err)
	_, err = issuer.Parse(old)
	assert.True(t, svcErr.Is(err, svcErr.KindUnauthenticated))

	_, err = issuer.Parse("")
	assert.True(t, svcErr.Is(err, svcErr.KindUnauthenticated))
}

func TestHashEmailNormalizes(t *testing.T) {
	assert.Equal(t, HashEmail("student@uni.edu"), HashEmail("  Student@UNI.edu "))
	assert.Len(t, HashEmail("x@y.z"), 64)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken(""))
}

func TestRequireAdmin(t *testing.T) {
	_, err := RequireAdmin(context.Background())
	assert.True(t, svcErr.Is(err, svcErr.KindUnauthenticated))

	ctx := WithIdentity(context.Background(), Identity{UserID: "u-1", Role: RoleUser})
	_, err = RequireAdmin(ctx)
	assert.True(t, svcErr.Is(err, svcErr.KindPermissionDenied))

	ctx = WithIdentity(context.Background(), Identity{UserID: "a-1", Role: RoleAdmin})
	id, err := RequireAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a-1", id.UserID)
}
