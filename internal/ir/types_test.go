package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethodIsRead(t *testing.T) {
	assert.True(t, MethodGet.IsRead())
	for _, m := range []Method{MethodPost, MethodPut, MethodPatch, MethodDelete} {
		assert.False(t, m.IsRead(), m)
	}
	assert.True(t, ValidMethods[MethodPatch])
	assert.False(t, ValidMethods[Method("HEAD")])
}

func TestEndpointPathFor(t *testing.T) {
	ep := Endpoint{Name: "DeleteAccount", Method: MethodDelete, Path: "/accounts", NeedsID: true}

	assert.Equal(t, "/accounts", ep.PathFor(""))
	assert.Equal(t, "/accounts/7", ep.PathFor("7"))
	assert.Equal(t, "/accounts/a%2Fb", ep.PathFor("a/b"))
	assert.False(t, ep.IsRead())

	trailing := Endpoint{Path: "/transactions/"}
	assert.Equal(t, "/transactions/42", trailing.PathFor("42"))
}

func TestCauseIsZero(t *testing.T) {
	assert.True(t, Cause{}.IsZero())
	assert.False(t, Cause{Source: "CreateAccount", Topic: "accounts"}.IsZero())
}
