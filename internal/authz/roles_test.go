package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolePredicates(t *testing.T) {
	assert.True(t, IsAdmin(RoleAdmin))
	assert.False(t, IsAdmin(RoleOBOG))
	assert.False(t, IsAdmin(""))

	assert.True(t, CanPost(RoleCurrent))
	assert.True(t, CanPost(RoleOBOG))
	assert.False(t, CanPost(RolePending))

	assert.True(t, IsValid(RolePending))
	assert.False(t, IsValid("superuser"))
}
