package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakematch/stakematch/pkg/games"
)

var chessKey = QueueKey{Game: games.Chess, Stake: 100_000_000}

func TestSeekQueuesThenMatches(t *testing.T) {
	m := NewMatchmaker()
	alice := newTestSession("s1", "alice-wallet", "alice")
	bob := newTestSession("s2", "bob-wallet", "bob")

	matched, err := m.Seek(alice, "bet-1", chessKey, "proof-a")
	require.NoError(t, err)
	assert.Nil(t, matched, "first seeker should queue")
	assert.Len(t, m.List(), 1)

	matched, err = m.Seek(bob, "bet-2", chessKey, "proof-b")
	require.NoError(t, err)
	require.NotNil(t, matched, "second seeker should match")
	assert.Equal(t, "bet-1", matched.ID)
	assert.Same(t, alice, matched.Session)
	assert.Empty(t, m.List(), "matched entries leave the queue")
}

func TestSeekDifferentKeysDoNotMatch(t *testing.T) {
	m := NewMatchmaker()
	alice := newTestSession("s1", "alice-wallet", "alice")
	bob := newTestSession("s2", "bob-wallet", "bob")
	carol := newTestSession("s3", "carol-wallet", "carol")

	_, err := m.Seek(alice, "bet-1", chessKey, "")
	require.NoError(t, err)

	// Different stake.
	other := chessKey
	other.Stake = 200_000_000
	matched, err := m.Seek(bob, "bet-2", other, "")
	require.NoError(t, err)
	assert.Nil(t, matched)

	// Different grid variant.
	gridKey := QueueKey{Game: games.TicTacToe, Stake: 100_000_000, GridSize: 5}
	matched, err = m.Seek(carol, "bet-3", gridKey, "")
	require.NoError(t, err)
	assert.Nil(t, matched)

	assert.Len(t, m.List(), 3)
}

func TestSeekTwiceRejected(t *testing.T) {
	m := NewMatchmaker()
	alice := newTestSession("s1", "alice-wallet", "alice")

	_, err := m.Seek(alice, "bet-1", chessKey, "")
	require.NoError(t, err)
	_, err = m.Seek(alice, "bet-2", chessKey, "")
	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestAcceptOwnBetRejected(t *testing.T) {
	m := NewMatchmaker()
	alice := newTestSession("s1", "alice-wallet", "alice")

	_, err := m.Seek(alice, "bet-1", chessKey, "")
	require.NoError(t, err)

	_, err = m.Accept(alice, "bet-1")
	assert.ErrorIs(t, err, ErrAcceptOwnBet)
	assert.Len(t, m.List(), 1, "own-bet accept must not remove the entry")
}

func TestAcceptRaceExactlyOneWinner(t *testing.T) {
	m := NewMatchmaker()
	alice := newTestSession("s1", "alice-wallet", "alice")
	_, err := m.Seek(alice, "bet-1", chessKey, "")
	require.NoError(t, err)

	const racers = 16
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := newTestSession(fmt.Sprintf("racer-%d", i), "w", "n")
			_, err := m.Accept(sess, "bet-1")
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrBetTaken)
			losses++
		}
	}
	assert.Equal(t, 1, wins, "exactly one accept succeeds")
	assert.Equal(t, racers-1, losses)
	assert.Empty(t, m.List())
}

func TestRequeueKeepsConcurrentSeeker(t *testing.T) {
	m := NewMatchmaker()
	alice := newTestSession("s1", "alice-wallet", "alice")
	bob := newTestSession("s2", "bob-wallet", "bob")
	carol := newTestSession("s3", "carol-wallet", "carol")

	_, err := m.Seek(alice, "bet-1", chessKey, "proof-a")
	require.NoError(t, err)

	// Bob takes the entry but his stake verification will fail; while it
	// is in flight, carol opens a bet with the same key.
	entry, err := m.Accept(bob, "bet-1")
	require.NoError(t, err)

	matched, err := m.Seek(carol, "bet-2", chessKey, "proof-c")
	require.NoError(t, err)
	require.Nil(t, matched, "the accepted entry is gone, carol queues")

	// Reinserting alice must not consume carol's entry: both bets stay
	// open, nobody's stake is stranded.
	require.NoError(t, m.Requeue(entry))

	list := m.List()
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{"bet-1", "bet-2"}, ids)
	assert.True(t, m.IsQueued(alice))
	assert.True(t, m.IsQueued(carol))

	// Either entry is still individually acceptable.
	_, err = m.Accept(bob, "bet-1")
	require.NoError(t, err)
}

func TestCancelReturnsProof(t *testing.T) {
	m := NewMatchmaker()
	alice := newTestSession("s1", "alice-wallet", "alice")

	_, err := m.Cancel(alice)
	assert.ErrorIs(t, err, ErrEntryNotQueued)

	_, err = m.Seek(alice, "bet-1", chessKey, "proof-a")
	require.NoError(t, err)

	entry, err := m.Cancel(alice)
	require.NoError(t, err)
	assert.Equal(t, "proof-a", entry.Proof)
	assert.Empty(t, m.List())

	// Cancelled entries cannot be accepted.
	bob := newTestSession("s2", "bob-wallet", "bob")
	_, err = m.Accept(bob, "bet-1")
	assert.ErrorIs(t, err, ErrBetTaken)
}

func TestListInsertionOrder(t *testing.T) {
	m := NewMatchmaker()
	for i := 0; i < 5; i++ {
		sess := newTestSession(fmt.Sprintf("s%d", i), "w", "n")
		key := chessKey
		key.Stake = int64(i+1) * 50_000_000
		_, err := m.Seek(sess, fmt.Sprintf("bet-%d", i), key, "")
		require.NoError(t, err)
	}

	list := m.List()
	require.Len(t, list, 5)
	for i, e := range list {
		assert.Equal(t, fmt.Sprintf("bet-%d", i), e.ID)
	}
}
