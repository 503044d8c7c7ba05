package sched_test

import (
	"context"
	"testing"

	"duelchat/backend/internal/sched"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

// recordingHandler captures the callbacks dispatched by the serve mux.
type recordingHandler struct {
	stakeGame, stakeRole string
	acceptGame           string
	moveGame             string
	moveRound            int
}

func (h *recordingHandler) HandleStakeTimeout(ctx context.Context, gameID, role string) error {
	h.stakeGame, h.stakeRole = gameID, role
	return nil
}

func (h *recordingHandler) HandleAcceptTimeout(ctx context.Context, gameID string) error {
	h.acceptGame = gameID
	return nil
}

func (h *recordingHandler) HandleMoveTimeout(ctx context.Context, gameID string, round int) error {
	h.moveGame, h.moveRound = gameID, round
	return nil
}

// TestServeMux_RoutesPayloads verifies each task type reaches its handler
// with the decoded payload.
func TestServeMux_RoutesPayloads(t *testing.T) {
	h := &recordingHandler{}
	_, mux := sched.NewServer("localhost:6379", h)
	ctx := context.Background()

	err := mux.ProcessTask(ctx, asynq.NewTask(sched.TypeStakeTimeout,
		[]byte(`{"game_id":"g1","role":"opponent"}`)))
	assert.NoError(t, err)
	assert.Equal(t, "g1", h.stakeGame)
	assert.Equal(t, sched.RoleOpponent, h.stakeRole)

	err = mux.ProcessTask(ctx, asynq.NewTask(sched.TypeAcceptTimeout,
		[]byte(`{"game_id":"g2"}`)))
	assert.NoError(t, err)
	assert.Equal(t, "g2", h.acceptGame)

	err = mux.ProcessTask(ctx, asynq.NewTask(sched.TypeMoveTimeout,
		[]byte(`{"game_id":"g3","round":4}`)))
	assert.NoError(t, err)
	assert.Equal(t, "g3", h.moveGame)
	assert.Equal(t, 4, h.moveRound)
}

// TestServeMux_RejectsMalformedPayload verifies a broken payload errors out
// instead of invoking the handler.
func TestServeMux_RejectsMalformedPayload(t *testing.T) {
	h := &recordingHandler{}
	_, mux := sched.NewServer("localhost:6379", h)

	err := mux.ProcessTask(context.Background(),
		asynq.NewTask(sched.TypeMoveTimeout, []byte(`{broken`)))
	assert.Error(t, err)
	assert.Empty(t, h.moveGame)
}
