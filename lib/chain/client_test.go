package chain_test

import (
	"context"
	"testing"

	"tessnet-demo/lib/chain"

	"github.com/stretchr/testify/assert"
)

func TestReadyOnZeroClientRejects(t *testing.T) {
	c := &chain.Client{}
	_, err := c.Ready().Await(context.Background())
	assert.NotNil(t, err)
}
