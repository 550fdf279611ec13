package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrivilegeWarning(t *testing.T) {
	assert.Empty(t, PrivilegeWarning("scan"))
	if IsAdmin() {
		assert.Empty(t, PrivilegeWarning("processes"))
	} else {
		assert.Contains(t, PrivilegeWarning("processes"), "standard user")
	}
}
