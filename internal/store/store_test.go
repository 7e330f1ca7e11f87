package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/posetrack/internal/skeleton"
	"github.com/ayusman/posetrack/internal/spatial"
	"github.com/ayusman/posetrack/internal/tracking"
)

// newTestStore creates a new Store backed by a temporary database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("expected path %q, got %q", dbPath, s.Path())
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"sessions", "pose_samples", "skeleton_frames"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}

	for _, idx := range []string{"idx_pose_samples_session", "idx_skeleton_frames_session"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
			idx,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q should exist after migrations: %v", idx, err)
		}
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestStore_WriteAheadLog(t *testing.T) {
	s := newTestStore(t)

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("failed to check journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("expected journal mode wal, got %q", mode)
	}
}

func TestSessionRepository_CRUD(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{FrameRate: 90, Roles: []string{"left_hand", "right_hand"}}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("ID should be generated")
	}
	if sess.Name == "" {
		t.Error("Name should default from the ID")
	}

	got, err := repo.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.FrameRate != 90 || len(got.Roles) != 2 || got.Roles[1] != "right_hand" {
		t.Errorf("unexpected session: %+v", got)
	}

	if err := repo.SetFrames(sess.ID, 180); err != nil {
		t.Fatalf("failed to set frames: %v", err)
	}
	got, _ = repo.GetByID(sess.ID)
	if got.Frames != 180 {
		t.Errorf("expected 180 frames, got %d", got.Frames)
	}
	if got.Duration().Seconds() != 2 {
		t.Errorf("expected 2s duration, got %v", got.Duration())
	}

	other := &Session{Name: "second", FrameRate: 60}
	if err := repo.Create(other); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	list, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}

	if err := repo.Delete(sess.ID); err != nil {
		t.Fatalf("failed to delete session: %v", err)
	}
	if _, err := repo.GetByID(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := repo.Delete(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second delete, got %v", err)
	}
	if err := repo.SetFrames("missing", 1); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for missing session, got %v", err)
	}
}

func TestFrameRepository_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	sess := &Session{FrameRate: 90}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	frames := s.Frames()

	poses := []PoseSample{
		{Frame: 2, Role: tracking.RoleRightHand, DeviceIndex: 4, Pose: tracking.RawPose{
			Valid: true, Connected: true, Tracking: tracking.TrackingRunningOK,
			Position: spatial.Vec{X: 0.125, Y: 1.5, Z: -0.25},
			Rotation: spatial.NewQuat(0, 0.6, 0, 0.8),
			Velocity: spatial.Vec{Z: 2},
		}},
		{Frame: 1, Role: tracking.RoleLeftHand, DeviceIndex: 3, Pose: tracking.RawPose{Rotation: spatial.Identity()}},
	}
	if err := frames.AppendPoses(sess.ID, poses); err != nil {
		t.Fatalf("failed to append poses: %v", err)
	}

	bones := skeleton.IdentityBones()
	bones[skeleton.IndexTip].Position = spatial.Vec{X: 0.1, Y: 0.2, Z: 0.3}
	skel := []SkeletonFrame{{
		Frame:   1,
		Role:    tracking.RoleLeftHand,
		Status:  skeleton.Status{Active: true, PoseValid: true, Level: skeleton.LevelPartial},
		Bones:   bones,
		Summary: skeleton.Summary{Curls: [skeleton.NumFingers]float64{0.5}},
	}}
	if err := frames.AppendSkeletons(sess.ID, skel); err != nil {
		t.Fatalf("failed to append skeletons: %v", err)
	}

	gotPoses, err := frames.Poses(sess.ID)
	if err != nil {
		t.Fatalf("failed to read poses: %v", err)
	}
	if len(gotPoses) != 2 {
		t.Fatalf("expected 2 poses, got %d", len(gotPoses))
	}
	if gotPoses[0].Frame != 1 || gotPoses[0].Role != tracking.RoleLeftHand {
		t.Errorf("poses should be ordered by frame, got %+v", gotPoses[0])
	}
	if gotPoses[1] != poses[0] {
		t.Errorf("pose mismatch:\nwant %+v\ngot  %+v", poses[0], gotPoses[1])
	}

	gotSkel, err := frames.Skeletons(sess.ID)
	if err != nil {
		t.Fatalf("failed to read skeletons: %v", err)
	}
	if len(gotSkel) != 1 || gotSkel[0] != skel[0] {
		t.Errorf("skeleton mismatch:\nwant %+v\ngot  %+v", skel, gotSkel)
	}
}

func TestFrameRepository_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	sess := &Session{FrameRate: 90}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	err := s.Frames().AppendPoses(sess.ID, []PoseSample{{Frame: 1, Role: tracking.RoleHead, Pose: tracking.RawPose{Rotation: spatial.Identity()}}})
	if err != nil {
		t.Fatalf("failed to append poses: %v", err)
	}

	if err := s.Sessions().Delete(sess.ID); err != nil {
		t.Fatalf("failed to delete session: %v", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM pose_samples").Scan(&count); err != nil {
		t.Fatalf("failed to count samples: %v", err)
	}
	if count != 0 {
		t.Errorf("expected samples to be deleted with the session, got %d", count)
	}
}

func TestFrameRepository_UnknownSessionRejected(t *testing.T) {
	s := newTestStore(t)

	err := s.Frames().AppendPoses("missing", []PoseSample{{Frame: 1, Role: tracking.RoleHead}})
	if err == nil {
		t.Error("appending to a missing session should violate the foreign key")
	}
}

func TestFrameRepository_AppendIsAtomic(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{Name: "atomic", FrameRate: 90, Roles: []string{"left_hand"}}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	samples := []PoseSample{{Frame: 0, Role: tracking.RoleLeftHand, Pose: tracking.RawPose{Rotation: spatial.Identity()}}}
	frames := []SkeletonFrame{{Frame: 0, Role: tracking.RoleLeftHand, Bones: skeleton.IdentityBones()}}

	if _, err := s.DB().Exec(`ALTER TABLE skeleton_frames RENAME TO skeleton_frames_offline`); err != nil {
		t.Fatalf("failed to rename table: %v", err)
	}
	if err := s.Frames().Append(sess.ID, samples, frames, 1); err == nil {
		t.Fatal("expected error when the skeleton insert fails")
	}

	poses, err := s.Frames().Poses(sess.ID)
	if err != nil {
		t.Fatalf("failed to read poses: %v", err)
	}
	if len(poses) != 0 {
		t.Errorf("expected pose rows to be rolled back, got %d", len(poses))
	}

	if _, err := s.DB().Exec(`ALTER TABLE skeleton_frames_offline RENAME TO skeleton_frames`); err != nil {
		t.Fatalf("failed to restore table: %v", err)
	}
	if err := s.Frames().Append(sess.ID, samples, frames, 1); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	got, err := s.Sessions().GetByID(sess.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.Frames != 1 {
		t.Errorf("expected 1 frame, got %d", got.Frames)
	}
	skels, err := s.Frames().Skeletons(sess.ID)
	if err != nil {
		t.Fatalf("failed to read skeletons: %v", err)
	}
	if len(skels) != 1 {
		t.Errorf("expected 1 skeleton frame, got %d", len(skels))
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}
