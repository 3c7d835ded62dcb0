package domain

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPickupCode(t *testing.T) {
	now := time.UnixMilli(1718000000123)
	code := NewPickupCode(now)
	assert.Regexp(t, regexp.MustCompile(`^QR-1718000000123-[0-9a-z]{9}$`), code)

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		c := NewPickupCode(now)
		_, dup := seen[c]
		assert.False(t, dup, fmt.Sprintf("duplicate code %s", c))
		seen[c] = struct{}{}
	}
}
