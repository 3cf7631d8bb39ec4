package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowlist_EmptyAllowsEveryone(t *testing.T) {
	for _, list := range [][]string{nil, {}} {
		a := NewAllowlist(list)
		assert.True(t, a.Allowed("12345"))
		assert.True(t, a.Allowed(""))
		assert.True(t, a.Allowed("anyone-at-all"))
		assert.False(t, a.Restricted())
	}
}

func TestAllowlist_MembershipIsExactMatch(t *testing.T) {
	a := NewAllowlist([]string{"100", "200"})

	assert.True(t, a.Allowed("100"))
	assert.True(t, a.Allowed("200"))
	assert.False(t, a.Allowed("300"))
	assert.False(t, a.Allowed(" 100"), "no trimming")
	assert.False(t, a.Allowed("10"), "no prefix match")
	assert.True(t, a.Restricted())
}
