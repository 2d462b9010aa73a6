// Package provider defines the remote search and extraction source.
package provider

import (
	"context"

	"github.com/liuran001/TubeBot-Go/bot"
)

// Provider searches a remote catalogue and fetches audio streams from it.
type Provider interface {
	// Name returns the provider identifier used in logs and config sections.
	Name() string

	// Search returns candidates in the provider's relevance order.
	// It must not download media.
	Search(ctx context.Context, query string, limit int) ([]bot.Candidate, error)

	// FetchAudio downloads the audio stream of id at the given tier into dir.
	// The tier is applied as a provider-side stream filter, never a transcode.
	FetchAudio(ctx context.Context, id string, quality bot.QualityTier, dir string) (*Audio, error)
}

// Audio describes a fetched stream on local disk together with the metadata
// the provider reported for it.
type Audio struct {
	Path      string
	Ext       string
	Bitrate   float64 // kbps, 0 when unknown
	Candidate bot.Candidate
}
