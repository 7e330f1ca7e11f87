package app

import (
	"fmt"

	"github.com/ayusman/posetrack/internal/config"
	"github.com/ayusman/posetrack/internal/replay"
	"github.com/ayusman/posetrack/internal/store"
	"github.com/ayusman/posetrack/internal/synth"
)

// OpenFeed returns the backend selected by cfg.Feed. Replay reads from st.
func OpenFeed(cfg *config.Config, st *store.Store) (Feed, error) {
	switch cfg.Feed.Type {
	case config.FeedSynthetic:
		return synth.New(cfg.Loop.FrameRate, cfg.Tracking.ParsedRoles()), nil
	case config.FeedReplay:
		if st == nil {
			return nil, fmt.Errorf("replay feed requires a store")
		}
		p, err := replay.Load(st, cfg.Feed.Session, cfg.Feed.Loop)
		if err != nil {
			return nil, fmt.Errorf("failed to load session %s: %w", cfg.Feed.Session, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown feed type %q", cfg.Feed.Type)
	}
}
