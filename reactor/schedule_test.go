package reactor

import (
	"testing"
	"time"

	"github.com/e42s/kernel/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleFiresInInsertionOrderSameTick(t *testing.T) {
	s := newSchedule(25*time.Millisecond, 8, 16)

	var ids []network.SocketID
	for i := network.SocketID(1); i <= 3; i++ {
		_, err := s.add(i, network.SendTimeout{}, 10*time.Millisecond)
		require.NoError(t, err)
		ids = append(ids, i)
	}

	fired := s.advance(1)
	require.Len(t, fired, 3)
	for i, f := range fired {
		assert.Equal(t, ids[i], f.socket)
	}
}

func TestScheduleCancelIsIdempotentAndSurvivesSweep(t *testing.T) {
	s := newSchedule(25*time.Millisecond, 8, 16)

	h, err := s.add(1, network.SendTimeout{}, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 1, s.Pending())

	s.cancel(h)
	assert.Equal(t, 0, s.Pending())
	s.cancel(h) // idempotent, must not panic or go negative

	fired := s.advance(1)
	assert.Empty(t, fired)
}

func TestScheduleOverflow(t *testing.T) {
	s := newSchedule(25*time.Millisecond, 4, 2)

	_, err := s.add(1, network.SendTimeout{}, 0)
	require.NoError(t, err)
	_, err = s.add(1, network.SendTimeout{}, 0)
	require.NoError(t, err)

	_, err = s.add(1, network.SendTimeout{}, 0)
	assert.ErrorIs(t, err, ErrScheduleOverflow)
}

func TestScheduleMultiRevolution(t *testing.T) {
	s := newSchedule(1*time.Millisecond, 4, 16)

	// delay spans more than one full revolution (4 slots).
	_, err := s.add(1, network.SendTimeout{}, 10*time.Millisecond)
	require.NoError(t, err)

	fired := s.advance(9)
	assert.Empty(t, fired)

	fired = s.advance(1)
	require.Len(t, fired, 1)
}
