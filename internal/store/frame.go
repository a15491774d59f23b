package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/ayusman/roadpilot/internal/objects"
)

// Frame is the control decision taken for one video frame.
type Frame struct {
	ID         int64                    `json:"id"`
	SessionID  string                   `json:"session_id"`
	Seq        int                      `json:"seq"`
	Speed      int                      `json:"speed"`
	SpeedLimit int                      `json:"speed_limit"`
	Objects    []objects.DetectedObject `json:"objects"`
	Error      string                   `json:"error,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}

// FrameRepository provides access to per-frame decisions.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

// Add appends a frame to its session.
func (r *FrameRepository) Add(f *Frame) error {
	blob, err := EncodeObjects(f.Objects)
	if err != nil {
		return err
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO frames (session_id, seq, speed, speed_limit, objects, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.SessionID, f.Seq, f.Speed, f.SpeedLimit, blob, f.Error, f.CreatedAt,
	)
	if err != nil {
		return err
	}

	f.ID, err = result.LastInsertId()
	return err
}

// ListBySession returns up to limit frames of a session in order. A limit of
// zero or less returns all of them.
func (r *FrameRepository) ListBySession(sessionID string, limit int) ([]Frame, error) {
	query := `SELECT id, session_id, seq, speed, speed_limit, objects, error, created_at
		 FROM frames WHERE session_id = ? ORDER BY seq`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var blob []byte
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Seq, &f.Speed, &f.SpeedLimit, &blob, &f.Error, &f.CreatedAt); err != nil {
			return nil, err
		}
		if f.Objects, err = DecodeObjects(blob); err != nil {
			return nil, fmt.Errorf("frame %d: %w", f.ID, err)
		}
		frames = append(frames, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}

// EncodeObjects serializes detections to CBOR. An empty list encodes to nil.
func EncodeObjects(objs []objects.DetectedObject) ([]byte, error) {
	if len(objs) == 0 {
		return nil, nil
	}
	data, err := cbor.Marshal(objs)
	if err != nil {
		return nil, fmt.Errorf("encode objects: %w", err)
	}
	return data, nil
}

// DecodeObjects is the inverse of EncodeObjects.
func DecodeObjects(data []byte) ([]objects.DetectedObject, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var objs []objects.DetectedObject
	if err := cbor.Unmarshal(data, &objs); err != nil {
		return nil, fmt.Errorf("decode objects: %w", err)
	}
	return objs, nil
}
