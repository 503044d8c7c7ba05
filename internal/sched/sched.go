// Package sched schedules the game's deadline callbacks on asynq. Tasks are
// fire-and-forget: there is no cancellation API, so every handler re-validates
// the game's current state and no-ops when the deadline was already met.
package sched

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeStakeTimeout  = "game:stake_timeout"
	TypeAcceptTimeout = "game:accept_timeout"
	TypeMoveTimeout   = "game:move_timeout"
)

// Roles identify whose stake-upload window expired.
const (
	RoleInitiator = "initiator"
	RoleOpponent  = "opponent"
)

type stakeTimeoutPayload struct {
	GameID string `json:"game_id"`
	Role   string `json:"role"`
}

type acceptTimeoutPayload struct {
	GameID string `json:"game_id"`
}

// moveTimeoutPayload carries the round number so a timer armed for round N
// is ignored if the game has already advanced to round N+1.
type moveTimeoutPayload struct {
	GameID string `json:"game_id"`
	Round  int    `json:"round"`
}

// Scheduler is what the game engine arms deadlines through.
type Scheduler interface {
	StakeTimeout(gameID, role string, delay time.Duration) error
	AcceptTimeout(gameID string, delay time.Duration) error
	MoveTimeout(gameID string, round int, delay time.Duration) error
}

// Client enqueues delayed tasks onto the shared Redis instance.
type Client struct {
	asynq *asynq.Client
}

func NewClient(redisAddr string) *Client {
	return &Client{
		asynq: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
	}
}

func (c *Client) Close() error {
	return c.asynq.Close()
}

func (c *Client) enqueue(taskType string, payload interface{}, delay time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	task := asynq.NewTask(taskType, data)
	if _, err := c.asynq.Enqueue(task, asynq.ProcessIn(delay)); err != nil {
		log.Printf("ERROR: Failed to enqueue %s task: %v", taskType, err)
		return err
	}
	return nil
}

func (c *Client) StakeTimeout(gameID, role string, delay time.Duration) error {
	return c.enqueue(TypeStakeTimeout, stakeTimeoutPayload{GameID: gameID, Role: role}, delay)
}

func (c *Client) AcceptTimeout(gameID string, delay time.Duration) error {
	return c.enqueue(TypeAcceptTimeout, acceptTimeoutPayload{GameID: gameID}, delay)
}

func (c *Client) MoveTimeout(gameID string, round int, delay time.Duration) error {
	return c.enqueue(TypeMoveTimeout, moveTimeoutPayload{GameID: gameID, Round: round}, delay)
}

// TimeoutHandler is the engine-side contract for expired deadlines.
type TimeoutHandler interface {
	HandleStakeTimeout(ctx context.Context, gameID, role string) error
	HandleAcceptTimeout(ctx context.Context, gameID string) error
	HandleMoveTimeout(ctx context.Context, gameID string, round int) error
}

// NewServer builds the asynq worker that dispatches expired deadlines to the
// engine. Run blocks, so the caller starts it on its own goroutine.
func NewServer(redisAddr string, handler TimeoutHandler) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{Concurrency: 10},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeStakeTimeout, func(ctx context.Context, t *asynq.Task) error {
		var p stakeTimeoutPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("stake timeout payload: %w", err)
		}
		return handler.HandleStakeTimeout(ctx, p.GameID, p.Role)
	})
	mux.HandleFunc(TypeAcceptTimeout, func(ctx context.Context, t *asynq.Task) error {
		var p acceptTimeoutPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("accept timeout payload: %w", err)
		}
		return handler.HandleAcceptTimeout(ctx, p.GameID)
	})
	mux.HandleFunc(TypeMoveTimeout, func(ctx context.Context, t *asynq.Task) error {
		var p moveTimeoutPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("move timeout payload: %w", err)
		}
		return handler.HandleMoveTimeout(ctx, p.GameID, p.Round)
	})

	return srv, mux
}
