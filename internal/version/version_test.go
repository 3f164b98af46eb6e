package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		b    Build
		want string
	}{
		{"all fields", Build{Version: "v1.2.3", Commit: "abc1234", Date: "2026-01-15"}, "v1.2.3 (commit: abc1234, built: 2026-01-15)"},
		{"empty", Build{}, "dev (commit: unknown, built: unknown)"},
		{"no commit", Build{Version: "v2.0.0", Date: "2026-03-25"}, "v2.0.0 (commit: unknown, built: 2026-03-25)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.b.String())
		})
	}
}

func TestCurrent(t *testing.T) {
	t.Parallel()
	b := Current()
	assert.NotEmpty(t, b.GoVersion)
	assert.Contains(t, b.Platform, "/")
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v1, v2 string
		want   int
	}{
		{"1.2.3", "1.2.3", 0},
		{"v1.2.3", "1.2.3", 0},
		{"1.2.4", "1.2.3", 1},
		{"1.3.0", "1.2.9", 1},
		{"2.0.0", "1.9.9", 1},
		{"1.2", "1.2.0", 0},
		{"1.2.3", "1.10.0", -1},
		{"1.2.3-rc1", "1.2.3", 0},
		{"dev", "1.0.0", -1},
		{"1.0.0", "dev", 1},
		{"", "dev", 0},
		{"abc1234", "0.0.1", -1},
		{"abc1234-dirty", "abcdef0", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compare(tt.v1, tt.v2), "%s vs %s", tt.v1, tt.v2)
	}
}

func TestIsNewer(t *testing.T) {
	t.Parallel()
	assert.True(t, IsNewer("v1.0.0", "v1.0.1"))
	assert.True(t, IsNewer("dev", "v0.1.0"))
	assert.False(t, IsNewer("v1.0.1", "v1.0.1"))
	assert.False(t, IsNewer("v2.0.0", "v1.9.0"))
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1.2.3", Normalize(" v1.2.3 "))
	assert.Equal(t, "1.2.3", Normalize("1.2.3-rc1+build"))
	assert.Equal(t, "1.2.3", Normalize("vv1.2.3"))
}

func TestIsCommitHash(t *testing.T) {
	t.Parallel()
	assert.True(t, isCommitHash("abc1234"))
	assert.True(t, isCommitHash("ABC1234"))
	assert.True(t, isCommitHash("abc1234-dirty"))
	assert.False(t, isCommitHash("1234567"))
	assert.False(t, isCommitHash("abc12"))
	assert.False(t, isCommitHash("xyz1234"))
	assert.False(t, isCommitHash(strings.Repeat("a", 41)))
}

func TestClient_CheckLatest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/mrz1836/blockscope/releases/latest", r.URL.Path)
		assert.Contains(t, r.Header.Get("User-Agent"), "blockscope/")
		_, _ = w.Write([]byte(`{"tag_name":"v1.4.0","html_url":"https://example.com/r/v1.4.0"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))

	check, err := c.CheckLatest(context.Background(), "v1.3.2")
	require.NoError(t, err)
	assert.Equal(t, "v1.4.0", check.Latest)
	assert.True(t, check.Newer)
	assert.Equal(t, "https://example.com/r/v1.4.0", check.URL)

	check, err = c.CheckLatest(context.Background(), "v1.4.0")
	require.NoError(t, err)
	assert.False(t, check.Newer)
}

func TestClient_LatestReleaseErrors(t *testing.T) {
	t.Parallel()

	t.Run("status", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
		}))
		t.Cleanup(srv.Close)

		_, err := NewClient(WithBaseURL(srv.URL)).LatestRelease(context.Background())
		require.ErrorIs(t, err, ErrReleaseLookup)
		assert.Contains(t, err.Error(), "status 403")
		assert.Less(t, len(err.Error()), 2048)
	})

	t.Run("bad body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		}))
		t.Cleanup(srv.Close)

		_, err := NewClient(WithBaseURL(srv.URL)).LatestRelease(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding release")
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewClient(WithBaseURL("http://127.0.0.1:1")).LatestRelease(ctx)
		require.Error(t, err)
	})
}
