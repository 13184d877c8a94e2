package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "forces https",
			in:   "http://example.com/post",
			want: "https://example.com/post",
		},
		{
			name: "strips utm params",
			in:   "https://example.com/post?utm_source=rss&utm_medium=feed&id=7",
			want: "https://example.com/post?id=7",
		},
		{
			name: "strips click ids",
			in:   "https://example.com/post?fbclid=abc123&gclid=xyz",
			want: "https://example.com/post",
		},
		{
			name: "trims trailing slash on non-root path",
			in:   "https://example.com/post/",
			want: "https://example.com/post",
		},
		{
			name: "keeps root slash",
			in:   "https://example.com/",
			want: "https://example.com/",
		},
		{
			name: "drops fragment",
			in:   "https://example.com/post#section-2",
			want: "https://example.com/post",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Canonicalize(tc.in))
		})
	}
}

func TestCanonicalizeFailSoft(t *testing.T) {
	// Unparseable input comes back unchanged, never panics or errors.
	in := "://not a url at all"
	assert.Equal(t, in, Canonicalize(in))
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("https://www.example.com/post"))
	assert.Equal(t, "aws.amazon.com", Domain("https://aws.amazon.com/about/"))
	assert.Equal(t, "unknown", Domain("not-a-url"))
}

func TestAllowlist(t *testing.T) {
	al := NewAllowlist(true, []string{"example.com", "aws.amazon.com"})

	assert.True(t, al.Allowed("https://example.com/post"))
	assert.True(t, al.Allowed("https://aws.amazon.com/whats-new"))
	// Exact case-sensitive match: subdomains and case variants are rejected.
	assert.False(t, al.Allowed("https://blog.example.com/post"))
	assert.False(t, al.Allowed("https://Example.com/post"))
	assert.False(t, al.Allowed("https://other.org/post"))
}

func TestAllowlistDisabledPassesEverything(t *testing.T) {
	al := NewAllowlist(false, []string{"example.com"})
	assert.True(t, al.Allowed("https://anything.at/all"))
}
