package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ayusman/posetrack/internal/skeleton"
	"github.com/ayusman/posetrack/internal/tracking"
)

// PoseSample is one raw backend pose sample for a role.
type PoseSample struct {
	Frame       int64            `json:"frame"`
	Role        tracking.Role    `json:"role"`
	DeviceIndex int              `json:"device_index"`
	Pose        tracking.RawPose `json:"pose"`
}

// SkeletonFrame is one skeleton reading for a role with bones in the backend convention.
type SkeletonFrame struct {
	Frame   int64            `json:"frame"`
	Role    tracking.Role    `json:"role"`
	Status  skeleton.Status  `json:"status"`
	Bones   skeleton.Bones   `json:"bones"`
	Summary skeleton.Summary `json:"summary"`
}

// FrameRepository stores per-frame pose and skeleton data for sessions.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

// AppendPoses inserts pose samples for a session in a single transaction.
func (r *FrameRepository) AppendPoses(sessionID string, samples []PoseSample) error {
	return r.Append(sessionID, samples, nil, -1)
}

// AppendSkeletons inserts skeleton frames for a session in a single transaction.
func (r *FrameRepository) AppendSkeletons(sessionID string, frames []SkeletonFrame) error {
	return r.Append(sessionID, nil, frames, -1)
}

// Append inserts pose samples and skeleton frames and, when frameCount is not
// negative, sets the session's frame count. Either everything is written or nothing is.
func (r *FrameRepository) Append(sessionID string, samples []PoseSample, frames []SkeletonFrame, frameCount int64) error {
	if len(samples) == 0 && len(frames) == 0 && frameCount < 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertPoses(tx, sessionID, samples); err != nil {
		return fmt.Errorf("pose samples: %w", err)
	}
	if err := insertSkeletons(tx, sessionID, frames); err != nil {
		return fmt.Errorf("skeleton frames: %w", err)
	}
	if frameCount >= 0 {
		if err := setFrames(tx, sessionID, frameCount); err != nil {
			return fmt.Errorf("session frames: %w", err)
		}
	}

	return tx.Commit()
}

func insertPoses(tx *sql.Tx, sessionID string, samples []PoseSample) error {
	if len(samples) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO pose_samples (session_id, frame, role, device_index, data) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		data, err := json.Marshal(s.Pose)
		if err != nil {
			return fmt.Errorf("encode pose sample: %w", err)
		}
		if _, err := stmt.Exec(sessionID, s.Frame, s.Role.String(), s.DeviceIndex, string(data)); err != nil {
			return err
		}
	}
	return nil
}

func insertSkeletons(tx *sql.Tx, sessionID string, frames []SkeletonFrame) error {
	if len(frames) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO skeleton_frames (session_id, frame, role, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range frames {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encode skeleton frame: %w", err)
		}
		if _, err := stmt.Exec(sessionID, f.Frame, f.Role.String(), string(data)); err != nil {
			return err
		}
	}
	return nil
}

// Poses retrieves all pose samples for a session in frame order.
func (r *FrameRepository) Poses(sessionID string) ([]PoseSample, error) {
	rows, err := r.db.Query(
		`SELECT frame, role, device_index, data
		 FROM pose_samples
		 WHERE session_id = ?
		 ORDER BY frame, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []PoseSample
	for rows.Next() {
		var s PoseSample
		var role, data string
		if err := rows.Scan(&s.Frame, &role, &s.DeviceIndex, &data); err != nil {
			return nil, err
		}
		if s.Role, err = tracking.ParseRole(role); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &s.Pose); err != nil {
			return nil, fmt.Errorf("decode pose sample: %w", err)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// Skeletons retrieves all skeleton frames for a session in frame order.
func (r *FrameRepository) Skeletons(sessionID string) ([]SkeletonFrame, error) {
	rows, err := r.db.Query(
		`SELECT data
		 FROM skeleton_frames
		 WHERE session_id = ?
		 ORDER BY frame, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []SkeletonFrame
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var f SkeletonFrame
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, fmt.Errorf("decode skeleton frame: %w", err)
		}
		frames = append(frames, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}
