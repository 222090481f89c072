package useragent

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithVersion(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		expected string
	}{
		{name: "release", version: "v1.2.0", expected: "fuzic/v1.2.0 (+https://github.com/toozej/fuzic)"},
		{name: "local build", version: "local", expected: "fuzic/local (+https://github.com/toozej/fuzic)"},
		{name: "empty version", version: "", expected: "fuzic/dev (+https://github.com/toozej/fuzic)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WithVersion(tt.version))
		})
	}
}

func TestTransport(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := &http.Client{Transport: Wrap(nil)}

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, req.Header.Get("User-Agent"), "caller's request must not be modified")

	req, err = http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom/1.0")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, seen, 2)
	assert.Equal(t, String(), seen[0])
	assert.Equal(t, "custom/1.0", seen[1])
}
