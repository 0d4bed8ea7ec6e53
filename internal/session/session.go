// Package session generates client-side correlation identifiers.
package session

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	prefix       = "session_"
	suffixLength = 9
	alphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var idPattern = regexp.MustCompile(`^session_\d+_[0-9a-z]+$`)

// NewID returns an identifier of the form session_<unix-millis>_<base36>.
func NewID() string {
	return NewIDAt(time.Now())
}

// NewIDAt is NewID with an explicit timestamp.
func NewIDAt(t time.Time) string {
	var b strings.Builder
	b.Grow(len(prefix) + 14 + suffixLength)
	b.WriteString(prefix)
	b.WriteString(strconv.FormatInt(t.UnixMilli(), 10))
	b.WriteByte('_')
	for i := 0; i < suffixLength; i++ {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}

// Valid reports whether id has the session identifier shape.
func Valid(id string) bool {
	return idPattern.MatchString(id)
}
