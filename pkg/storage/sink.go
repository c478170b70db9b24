package storage

import (
	"context"

	"market-scraper/pkg/logger"
)

// Sink receives qualifying listing URLs.
type Sink interface {
	Append(ctx context.Context, category, url string) error
}

// MirroredSink writes to a primary sink and copies each successful append
// to the mirrors. Only the primary decides whether an append failed; mirror
// failures are logged.
type MirroredSink struct {
	primary Sink
	mirrors []Sink
	log     *logger.Logger
}

func NewMirroredSink(primary Sink, log *logger.Logger, mirrors ...Sink) *MirroredSink {
	return &MirroredSink{
		primary: primary,
		mirrors: mirrors,
		log:     log.WithField("component", "mirrored_sink"),
	}
}

func (m *MirroredSink) Append(ctx context.Context, category, url string) error {
	if err := m.primary.Append(ctx, category, url); err != nil {
		return err
	}
	for _, s := range m.mirrors {
		if err := s.Append(ctx, category, url); err != nil {
			m.log.WithError(err).WithFields(map[string]interface{}{
				"category": category,
				"url":      url,
			}).Warn("Mirror append failed")
		}
	}
	return nil
}
