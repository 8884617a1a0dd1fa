package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	c := NewRedisCache("localhost:0", "order-service")
	defer func() { require.NoError(t, c.Close()) }()

	assert.Equal(t, "order-service:customer:cust-1", c.GenerateKey("customer", "cust-1"))
}
