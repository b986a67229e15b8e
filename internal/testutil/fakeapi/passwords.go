package fakeapi

import (
	"crypto/rand"
	"crypto/subtle"
	"time"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters, kept small so tests stay fast.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 8 * 1024
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

func hashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func verifyPassword(password, salt, expected []byte) bool {
	return subtle.ConstantTimeCompare(hashPassword(password, salt), expected) == 1
}

// addUser stores a new account. Caller holds s.mu.
func (s *Server) addUser(email, password, username string) (*user, bool) {
	if _, exists := s.users[email]; exists {
		return nil, false
	}
	salt := make([]byte, saltLen)
	_, _ = rand.Read(salt)

	u := &user{
		id:        uuid.Must(uuid.NewV4()),
		email:     email,
		username:  username,
		salt:      salt,
		hash:      hashPassword([]byte(password), salt),
		createdAt: time.Now().UTC(),
	}
	s.users[email] = u
	s.byID[u.id] = u
	return u, true
}
