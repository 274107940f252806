// Package ids generates and validates the 24 character hex identifiers used
// for every stored entity.
package ids

import (
	"encoding/binary"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var pattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// New returns a fresh identifier. The first four bytes encode the creation time
// in unix seconds so identifiers sort roughly by age.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns an identifier whose timestamp prefix is derived from t.
func NewAt(t time.Time) string {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(t.Unix()))

	u := uuid.New()
	copy(buf[4:10], u[10:16])
	copy(buf[10:12], u[0:2])

	return hex.EncodeToString(buf[:])
}

// Valid reports whether s is a well-formed identifier.
func Valid(s string) bool {
	return pattern.MatchString(s)
}
