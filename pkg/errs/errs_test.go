package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteCallErrorWrapped(t *testing.T) {
	base := &RemoteCallError{Service: "graph", Op: "list tasks", Status: 503, Detail: "unavailable"}
	err := fmt.Errorf("fetch tasks: %w", base)

	assert.True(t, IsRemote(err))
	assert.False(t, IsAuth(err))
	assert.Equal(t, 503, Status(err))
	assert.Contains(t, err.Error(), "list tasks failed with status 503: unavailable")
}

func TestAuthErrorUnwrap(t *testing.T) {
	cause := &RemoteCallError{Service: "graph", Op: "list events", Status: 401}
	err := &AuthError{Provider: "microsoft", Message: "token rejected", Cause: cause}

	assert.True(t, IsAuth(err))
	assert.True(t, IsRemote(err), "cause should stay reachable through errors.As")
	assert.Equal(t, "auth (microsoft): token rejected: graph: list events failed with status 401", err.Error())
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("wake_hours", "expected 2 values, got %d", 0)

	assert.True(t, IsConfig(err))
	assert.Equal(t, "invalid config: wake_hours: expected 2 values, got 0", err.Error())
	assert.Equal(t, 0, Status(errors.New("plain")))
}
