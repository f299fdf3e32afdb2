package store

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// APISession is the identity bound to an API token.
type APISession struct {
	Account string `json:"account"`
	LoginID string `json:"username"`
}

// CreateAPIToken issues a persistent token for the JSON API and records
// it in the token file.
func (s *Store) CreateAPIToken(account, loginID string) (string, error) {
	token := generateRandomToken(32)

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make(map[string]APISession)
	if _, err := s.readJSON(tokensFile, &sessions); err != nil {
		return "", err
	}
	sessions[token] = APISession{Account: account, LoginID: loginID}
	if err := s.writeJSON(tokensFile, sessions); err != nil {
		return "", err
	}
	return token, nil
}

// APISessionFor resolves a token issued by CreateAPIToken.
func (s *Store) APISessionFor(token string) (APISession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make(map[string]APISession)
	if _, err := s.readJSON(tokensFile, &sessions); err != nil {
		return APISession{}, false
	}
	sess, ok := sessions[token]
	return sess, ok
}

func generateRandomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// If we can't generate random numbers, the system is in a critical state.
		// Panic is appropriate here as we cannot securely continue.
		panic(fmt.Sprintf("critical security error: failed to generate random token: %v", err))
	}
	return base64.URLEncoding.EncodeToString(b)
}
