package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/posetrack/internal/pose"
	"github.com/ayusman/posetrack/internal/skeleton"
	"github.com/ayusman/posetrack/internal/spatial"
	"github.com/ayusman/posetrack/internal/store"
	"github.com/ayusman/posetrack/internal/tracking"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type rig struct {
	rec     *Recorder
	poses   *pose.MockProvider
	bones   *skeleton.MockProvider
	poseSrc *pose.Source
	skelSrc *skeleton.Source
	st      *store.Store
}

func newRig(t *testing.T, interval time.Duration) *rig {
	t.Helper()
	st := newTestStore(t)
	rec, err := New(Config{
		Store:         st,
		Name:          "test",
		FrameRate:     90,
		Roles:         []tracking.Role{tracking.RoleRightHand},
		FlushInterval: interval,
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)

	r := &rig{
		rec:   rec,
		poses: pose.NewMockProvider(),
		bones: skeleton.NewMockProvider(),
		st:    st,
	}
	r.poses.SetDeviceIndex(tracking.RoleRightHand, 3)
	r.poseSrc = pose.New(pose.Config{Role: tracking.RoleRightHand, Provider: r.poses, Logger: zerolog.Nop()})
	r.skelSrc = skeleton.New(skeleton.Config{Role: tracking.RoleRightHand, Provider: r.bones, Logger: zerolog.Nop()})
	rec.AttachPose(r.poseSrc)
	rec.AttachSkeleton(r.skelSrc)
	return r
}

func (r *rig) step(frame int64, x float64) {
	r.poses.SetPose(tracking.RoleRightHand, tracking.RawPose{
		Valid:     true,
		Connected: true,
		Tracking:  tracking.TrackingRunningOK,
		Position:  spatial.Vec{X: x},
		Rotation:  spatial.Identity(),
	})
	b := skeleton.IdentityBones()
	b[skeleton.IndexTip].Position = spatial.Vec{X: x, Z: 0.1}
	r.bones.SetBones(b)

	r.rec.Advance(frame)
	r.poseSrc.Update(frame)
	r.skelSrc.Update(false)
}

func TestNew_CreatesSession(t *testing.T) {
	r := newRig(t, time.Second)

	sess, err := r.st.Sessions().GetByID(r.rec.Session().ID)
	require.NoError(t, err)
	assert.Equal(t, "test", sess.Name)
	assert.Equal(t, 90, sess.FrameRate)
	assert.Equal(t, []string{"right_hand"}, sess.Roles)
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Config{Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestRecorder_FlushWritesRawSamples(t *testing.T) {
	r := newRig(t, time.Second)
	for f := int64(0); f < 3; f++ {
		r.step(f, float64(f)*0.1)
	}

	p, k := r.rec.Pending()
	assert.Equal(t, 3, p)
	assert.Equal(t, 3, k)

	require.NoError(t, r.rec.Flush())
	p, k = r.rec.Pending()
	assert.Zero(t, p)
	assert.Zero(t, k)

	id := r.rec.Session().ID
	poses, err := r.st.Frames().Poses(id)
	require.NoError(t, err)
	require.Len(t, poses, 3)
	assert.Equal(t, int64(2), poses[2].Frame)
	assert.Equal(t, 3, poses[2].DeviceIndex)
	assert.InDelta(t, 0.2, poses[2].Pose.Position.X, 1e-12)

	skels, err := r.st.Frames().Skeletons(id)
	require.NoError(t, err)
	require.Len(t, skels, 3)
	// Stored bones are in the backend convention, matching what the provider returned.
	assert.InDelta(t, 0.2, skels[2].Bones[skeleton.IndexTip].Position.X, 1e-12)
	assert.True(t, skels[2].Status.Active)

	sess, err := r.st.Sessions().GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sess.Frames)
}

func TestRecorder_SkeletonRefreshWithinFrameReplaces(t *testing.T) {
	r := newRig(t, time.Second)
	r.step(0, 0)
	r.step(1, 0.1)

	b := skeleton.IdentityBones()
	b[skeleton.IndexTip].Position = spatial.Vec{X: 0.5}
	r.bones.SetBones(b)
	r.skelSrc.Update(false)

	_, k := r.rec.Pending()
	assert.Equal(t, 2, k)

	require.NoError(t, r.rec.Flush())
	skels, err := r.st.Frames().Skeletons(r.rec.Session().ID)
	require.NoError(t, err)
	require.Len(t, skels, 2)
	assert.InDelta(t, 0.5, skels[1].Bones[skeleton.IndexTip].Position.X, 1e-12)
}

func TestRecorder_FailedFlushKeepsRows(t *testing.T) {
	r := newRig(t, time.Second)
	r.step(0, 0)
	r.step(1, 0.1)
	id := r.rec.Session().ID

	// Pose rows insert fine, the skeleton insert fails.
	_, err := r.st.DB().Exec(`ALTER TABLE skeleton_frames RENAME TO skeleton_frames_offline`)
	require.NoError(t, err)

	require.Error(t, r.rec.Flush())
	p, k := r.rec.Pending()
	assert.Equal(t, 2, p)
	assert.Equal(t, 2, k)

	poses, err := r.st.Frames().Poses(id)
	require.NoError(t, err)
	assert.Empty(t, poses, "a failed flush writes nothing")
	sess, err := r.st.Sessions().GetByID(id)
	require.NoError(t, err)
	assert.Zero(t, sess.Frames)

	_, err = r.st.DB().Exec(`ALTER TABLE skeleton_frames_offline RENAME TO skeleton_frames`)
	require.NoError(t, err)

	r.step(2, 0.2)
	require.NoError(t, r.rec.Flush())
	p, k = r.rec.Pending()
	assert.Zero(t, p)
	assert.Zero(t, k)

	poses, err = r.st.Frames().Poses(id)
	require.NoError(t, err)
	require.Len(t, poses, 3)
	assert.Equal(t, []int64{0, 1, 2}, []int64{poses[0].Frame, poses[1].Frame, poses[2].Frame})

	skels, err := r.st.Frames().Skeletons(id)
	require.NoError(t, err)
	assert.Len(t, skels, 3)

	sess, err = r.st.Sessions().GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sess.Frames)
}

func TestRecorder_FlushClosedStoreKeepsRows(t *testing.T) {
	r := newRig(t, time.Second)
	r.step(0, 0)
	r.step(1, 0.1)
	require.NoError(t, r.st.Close())

	assert.Error(t, r.rec.Flush())
	p, k := r.rec.Pending()
	assert.Equal(t, 2, p)
	assert.Equal(t, 2, k)
}

func TestRecorder_AdvanceCountsDistinctFrames(t *testing.T) {
	r := newRig(t, time.Second)
	r.rec.Advance(5)
	r.rec.Advance(5)
	r.rec.Advance(6)
	assert.Equal(t, int64(2), r.rec.Frames())
}

func TestRecorder_RunFlushesOnCancel(t *testing.T) {
	r := newRig(t, time.Hour)
	r.step(0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.rec.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	poses, err := r.st.Frames().Poses(r.rec.Session().ID)
	require.NoError(t, err)
	assert.Len(t, poses, 1)
}

func TestRecorder_RunFlushesPeriodically(t *testing.T) {
	r := newRig(t, 10*time.Millisecond)
	r.step(0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.rec.Run(ctx)

	assert.Eventually(t, func() bool {
		p, _ := r.rec.Pending()
		return p == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecorder_CloseDetaches(t *testing.T) {
	r := newRig(t, time.Second)
	r.step(0, 0)
	require.NoError(t, r.rec.Close())

	r.step(1, 0.1)
	p, k := r.rec.Pending()
	assert.Zero(t, p)
	assert.Zero(t, k)
}
