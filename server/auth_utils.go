package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// generateRandomString creates a random base64url string
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// isSecure reports whether the browser reached us over https, directly or via a proxy.
func isSecure(r *http.Request) bool {
	return getScheme(r) == "https"
}

// redirectToFrontend sends the browser to the frontend, optionally to a sub path.
func (s *Server) redirectToFrontend(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, s.frontendURL+path, http.StatusFound)
}

// returnPath keeps a frontend path from the login request. Anything that could leave the
// frontend (absolute or protocol relative URLs) is dropped.
func returnPath(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.Contains(path, "\\") {
		return ""
	}
	return path
}
