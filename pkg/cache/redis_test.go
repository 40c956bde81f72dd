package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "dashboard:faculty:f-1", Key(NamespaceDashboard, "faculty", "f-1"))
	assert.Equal(t, "analytics:admin", Key(NamespaceAnalytics, "admin", " "))
	assert.Equal(t, "settings", Key(NamespaceSettings))
}

func TestPattern(t *testing.T) {
	assert.Equal(t, "analytics:*", Pattern(NamespaceAnalytics))
}
