package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/posetrack/internal/app"
	"github.com/ayusman/posetrack/internal/config"
	"github.com/ayusman/posetrack/internal/recorder"
	"github.com/ayusman/posetrack/internal/server"
	"github.com/ayusman/posetrack/internal/store"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frames = 60

func TestE2E_RecordThenReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	t.Setenv("HOME", t.TempDir())
	st, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	defer st.Close()

	cfg := config.Default()
	cfg.Tracking.Roles = []string{"head", "left_hand", "right_hand"}
	cfg.Scheduler.UpdatePhase = "fixed_update"

	// Record a synthetic session frame by frame.
	feed, err := app.OpenFeed(cfg, st)
	require.NoError(t, err)
	live := app.New(cfg, feed, zerolog.Nop())

	rec, err := recorder.New(recorder.Config{
		Store:     st,
		Name:      "e2e",
		FrameRate: cfg.Loop.FrameRate,
		Roles:     cfg.Tracking.ParsedRoles(),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	live.SetRecorder(rec)

	var recorded []app.Snapshot
	for f := int64(0); f < frames; f++ {
		live.Step(f)
		recorded = append(recorded, live.Snapshot())
	}
	live.Stop()

	// The session is listed over HTTP.
	ts := httptest.NewServer(server.New(server.Config{Store: st}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/sessions/" + rec.Session().ID)
	require.NoError(t, err)
	var sess struct {
		Name   string   `json:"name"`
		Frames int64    `json:"frames"`
		Roles  []string `json:"roles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "e2e", sess.Name)
	assert.Equal(t, int64(frames), sess.Frames)
	assert.Equal(t, cfg.Tracking.Roles, sess.Roles)

	// Replaying the session reproduces the engine state of every frame.
	cfg.Feed.Type = config.FeedReplay
	cfg.Feed.Session = rec.Session().ID
	cfg.Feed.Loop = false
	feed, err = app.OpenFeed(cfg, st)
	require.NoError(t, err)
	replayed := app.New(cfg, feed, zerolog.Nop())
	defer replayed.Stop()

	for f := int64(0); f < frames; f++ {
		replayed.Step(f)
		want, got := recorded[f], replayed.Snapshot()

		require.Len(t, got.Poses, len(want.Poses))
		for i := range want.Poses {
			w, g := want.Poses[i].Pose, got.Poses[i].Pose
			assert.Equal(t, w.Valid, g.Valid, "frame %d %s", f, want.Poses[i].Role)
			assert.Equal(t, w.DeviceIndex, g.DeviceIndex)
			assert.InDelta(t, w.Position.X, g.Position.X, 1e-9)
			assert.InDelta(t, w.Position.Y, g.Position.Y, 1e-9)
			assert.InDelta(t, w.Position.Z, g.Position.Z, 1e-9)
		}

		require.Len(t, got.Skeletons, len(want.Skeletons))
		for i := range want.Skeletons {
			w, g := want.Skeletons[i], got.Skeletons[i]
			assert.Equal(t, w.Status, g.Status)
			assert.InDeltaSlice(t, w.Curls, g.Curls, 1e-9)
			for b := range w.Bones {
				assert.InDelta(t, w.Bones[b].Position.X, g.Bones[b].Position.X, 1e-9, "frame %d bone %d", f, b)
				assert.InDelta(t, w.Bones[b].Rotation.Real, g.Bones[b].Rotation.Real, 1e-9)
			}
		}
	}
}

func TestE2E_LiveStream(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	cfg.Loop.FrameRate = 200

	feed, err := app.OpenFeed(cfg, nil)
	require.NoError(t, err)
	tracker := app.New(cfg, feed, zerolog.Nop())

	ts := httptest.NewServer(server.New(server.Config{Tracker: tracker}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	tracker.Start(t.Context())

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snap app.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Len(t, snap.Poses, 2)
	assert.Len(t, snap.Skeletons, 2)

	tracker.Stop()

	// The stream closes once the loop stops.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
