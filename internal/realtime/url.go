package realtime

import (
	"fmt"
	"net/url"
)

// BuildURL derives the WebSocket endpoint from the backend origin: path
// /ws, a userId query parameter, and wss when the origin is https.
func BuildURL(baseURL, userID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("parsing base url: missing host in %q", baseURL)
	}

	scheme := "ws"
	if u.Scheme == "https" || u.Scheme == "wss" {
		scheme = "wss"
	}

	ws := url.URL{
		Scheme:   scheme,
		Host:     u.Host,
		Path:     "/ws",
		RawQuery: url.Values{"userId": []string{userID}}.Encode(),
	}
	return ws.String(), nil
}
