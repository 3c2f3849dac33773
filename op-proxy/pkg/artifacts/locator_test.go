package artifacts

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocator_Marshaling(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  *Locator
		err  bool
	}{
		{
			name: "valid HTTPS URL",
			in:   "https://example.com/artifacts.tgz",
			out:  &Locator{URL: parseUrl(t, "https://example.com/artifacts.tgz")},
		},
		{
			name: "valid HTTP URL",
			in:   "http://example.com",
			out:  &Locator{URL: parseUrl(t, "http://example.com")},
		},
		{
			name: "valid file URL",
			in:   "file:///tmp/artifacts",
			out:  &Locator{URL: parseUrl(t, "file:///tmp/artifacts")},
		},
		{
			name: "empty",
			in:   "",
			err:  true,
		},
		{
			name: "no scheme",
			in:   "example.com",
			err:  true,
		},
		{
			name: "unsupported scheme",
			in:   "ftp://example.com",
			err:  true,
		},
		{
			name: "file without path",
			in:   "file://",
			err:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Locator
			err := a.UnmarshalText([]byte(tt.in))
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.out, &a)

			marshalled, err := a.MarshalText()
			require.NoError(t, err)
			require.Equal(t, tt.in, string(marshalled))
		})
	}
}

func TestLocatorChecksum(t *testing.T) {
	loc := MustNewLocatorFromURL("https://example.com/a.tgz#sha256=00ff")
	require.Equal(t, "00ff", loc.Checksum())
	require.True(t, loc.IsRemote())

	loc, err := NewFileLocator("/tmp/out")
	require.NoError(t, err)
	require.Empty(t, loc.Checksum())
	require.False(t, loc.IsRemote())
	require.True(t, loc.Equal(MustNewLocatorFromURL("file:///tmp/out")))
}

func parseUrl(t *testing.T, u string) *url.URL {
	parsed, err := url.Parse(u)
	require.NoError(t, err)
	return parsed
}
