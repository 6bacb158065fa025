package service

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/medsimlab/clinsim-backend/internal/config"
	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/medsimlab/clinsim-backend/internal/session"
	"github.com/medsimlab/clinsim-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedisHook short-circuits every command before it reaches the network:
// LRange serves a canned audit tail, Publish is captured together with the
// liveness of the context it was issued under, everything else is a no-op.
type fakeRedisHook struct {
	mu        sync.Mutex
	tail      []string
	published []capturedPublish
}

type capturedPublish struct {
	ctxErr  error
	channel string
	payload string
}

func (h *fakeRedisHook) DialHook(redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, nil
	}
}

func (h *fakeRedisHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		switch cmd.Name() {
		case "lrange":
			if c, ok := cmd.(*redis.StringSliceCmd); ok {
				c.SetVal(append([]string(nil), h.tail...))
			}
		case "publish":
			pub := capturedPublish{ctxErr: ctx.Err()}
			if args := cmd.Args(); len(args) >= 3 {
				pub.channel, _ = args[1].(string)
				switch p := args[2].(type) {
				case string:
					pub.payload = p
				case []byte:
					pub.payload = string(p)
				}
			}
			h.published = append(h.published, pub)
			if c, ok := cmd.(*redis.IntCmd); ok {
				c.SetVal(1)
			}
		}
		return nil
	}
}

func (h *fakeRedisHook) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		return nil
	}
}

func (h *fakeRedisHook) publishes() []capturedPublish {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]capturedPublish(nil), h.published...)
}

// The stress poll loop runs for the whole session, long after the start
// request has returned and net/http has cancelled its context. A stress
// change detected then must still reach the stream channel.
func TestStressPushOutlivesStartRequest(t *testing.T) {
	hook := &fakeRedisHook{}

	// Panic-grade tail: eight answer toggles inside two seconds.
	base := time.Now()
	for i := 0; i < 8; i++ {
		raw, err := json.Marshal(model.AuditEntry{
			Timestamp: base.Add(time.Duration(i) * 250 * time.Millisecond),
			Action:    model.AuditActionAnswerSelect,
			Target:    "opt-a",
		})
		require.NoError(t, err)
		hook.tail = append(hook.tail, string(raw))
	}

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	rdb.AddHook(hook)

	svc := &SessionService{
		sessions:  make(map[string]*session.Orchestrator),
		audit:     NewAuditService(rdb, 200, zerolog.Nop()),
		rdb:       rdb,
		snapshots: &redisSnapshotStore{rdb: rdb},
		cfg:       &config.Config{StressPollInterval: time.Minute, StressWindow: time.Minute},
		log:       zerolog.Nop(),
	}

	cs := &model.CaseStudy{
		ID: "cs-1",
		Items: []model.Item{
			{ID: "q1", Type: model.ItemTypeMultipleChoice, CorrectOptionID: "a"},
		},
	}

	// Build the session inside a request-scoped context, then cancel it the
	// way net/http does once the start handler returns.
	reqCtx, cancelReq := context.WithCancel(context.Background())
	state := session.NewState(cs, 1, time.Now())
	orch := svc.buildOrchestrator(cs, state)
	svc.register(orch)
	svc.trackActiveSession(reqCtx, 1, cs.ID, state.ID)
	cancelReq()

	detected, changed := orch.RefreshStress(context.Background())
	require.True(t, changed)
	require.Equal(t, model.StressPanic, detected)

	published := hook.publishes()
	require.Len(t, published, 1)
	assert.NoError(t, published[0].ctxErr)
	assert.Equal(t, config.CacheKey.SessionStreamChannel(state.ID), published[0].channel)

	var event websocket.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(published[0].payload), &event))
	assert.Equal(t, websocket.EventStress, event.Type)
	assert.Equal(t, state.ID, event.SessionID)
}
