package arbiter

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

func TestCheckDataRoundTrip(t *testing.T) {
	data := EncodeCheckData(7)
	index, err := DecodeCheckData(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), index)
}

func TestDecisionRoundTrip(t *testing.T) {
	in := domain.Decision{
		JobIndex:  3,
		Direction: domain.DirectionToken1In,
		PoolIndex: 2,
		AmountIn:  big.NewInt(123_456_789),
		Stamp:     1_700_000_000,
	}
	data, err := EncodeDecision(in)
	require.NoError(t, err)

	out, err := DecodeDecision(data)
	require.NoError(t, err)
	assert.Equal(t, in.JobIndex, out.JobIndex)
	assert.Equal(t, in.Direction, out.Direction)
	assert.Equal(t, in.PoolIndex, out.PoolIndex)
	assert.Equal(t, 0, in.AmountIn.Cmp(out.AmountIn))
	assert.Equal(t, in.Stamp, out.Stamp)
}

func TestDecodeDecisionRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"empty":     {},
		"short":     {0x01, 0x02, 0x03},
		"truncated": EncodeCheckData(1),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDecision(data)
			require.ErrorIs(t, err, domain.ErrBadPayload)
		})
	}
}

func TestDecodeDecisionRejectsZeroAmount(t *testing.T) {
	data, err := EncodeDecision(domain.Decision{
		JobIndex:  0,
		Direction: domain.DirectionToken0In,
		PoolIndex: 0,
		AmountIn:  big.NewInt(0),
		Stamp:     1,
	})
	require.NoError(t, err)
	_, err = DecodeDecision(data)
	require.ErrorIs(t, err, domain.ErrBadPayload)
}
