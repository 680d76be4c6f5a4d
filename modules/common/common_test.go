package common_test

import (
	"testing"

	"tessnet-demo/modules/common"

	"github.com/multiformats/go-multicodec"
	"github.com/stretchr/testify/assert"
)

func TestEncodeDagCborCanonical(t *testing.T) {
	// map key order must not change the encoding
	a, err := common.EncodeDagCbor(map[string]interface{}{"b": 2, "a": 1})
	assert.Nil(t, err)
	b, err := common.EncodeDagCbor(map[string]interface{}{"a": 1, "b": 2})
	assert.Nil(t, err)
	assert.Equal(t, a, b)

	var out map[string]interface{}
	assert.Nil(t, common.DecodeCbor(a, &out))
	assert.Len(t, out, 2)
}

func TestHashBytes(t *testing.T) {
	c1, err := common.HashBytes([]byte("tessnet"), multicodec.DagCbor)
	assert.Nil(t, err)
	c2, err := common.HashBytes([]byte("tessnet"), multicodec.DagCbor)
	assert.Nil(t, err)
	assert.Equal(t, c1, c2)
	assert.Equal(t, uint64(1), c1.Prefix().Version)

	c3, err := common.HashBytes([]byte("different"), multicodec.DagCbor)
	assert.Nil(t, err)
	assert.NotEqual(t, c1, c3)
}
