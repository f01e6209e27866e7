package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileProxySourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := `
# residential pool
91.188.246.162:8000
proxy.example.net:3128

not-a-proxy
300.1.1.1:8000
91.188.246.163:99999
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	proxies, err := FileProxySource{Path: path}.Load()
	require.NoError(t, err)

	assert.Equal(t, []Proxy{
		{Host: "91.188.246.162", Port: 8000},
		{Host: "proxy.example.net", Port: 3128},
	}, proxies)
}

func TestFileProxySourceMissingFile(t *testing.T) {
	_, err := FileProxySource{Path: filepath.Join(t.TempDir(), "absent.txt")}.Load()
	assert.Error(t, err)
}

func TestProxyURL(t *testing.T) {
	p := Proxy{Host: "91.188.246.162", Port: 8000}
	assert.Equal(t, "http://91.188.246.162:8000", p.URL().String())
	assert.Equal(t, "91.188.246.162:8000", p.String())
}
