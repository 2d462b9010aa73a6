// Package acquire turns a chosen candidate into a delivered, tagged audio
// file and records the delivery in the cache.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/id3"
	"github.com/liuran001/TubeBot-Go/bot/normalize"
	"github.com/liuran001/TubeBot-Go/bot/provider"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds one acquisition end to end.
const DefaultTimeout = 300 * time.Second

// Stage is reported to Request.OnStage as the acquisition progresses.
type Stage int

const (
	StageDownloading Stage = iota + 1
	StageSending
)

// Fetcher downloads the audio stream of a candidate.
type Fetcher interface {
	FetchAudio(ctx context.Context, id string, quality bot.QualityTier, dir string) (*provider.Audio, error)
}

// ThumbnailFetcher downloads a remote image to a local path.
type ThumbnailFetcher interface {
	Download(ctx context.Context, url, destPath string) (int64, error)
}

// Tagger writes metadata into an audio file.
type Tagger interface {
	Embed(audioPath string, tags id3.Tags, coverPath string) error
}

// Upload is a local file ready to be sent.
type Upload struct {
	Path      string
	FileName  string
	CoverPath string
	Title     string
	Performer string
	Duration  int
	Caption   string
}

// Delivered carries the reusable references returned by the transport.
type Delivered struct {
	FileRef  string
	ThumbRef string
}

// Channel delivers audio to a target.
type Channel interface {
	UploadAudio(ctx context.Context, target bot.Target, upload Upload) (Delivered, error)
	SendCached(ctx context.Context, target bot.Target, entry bot.CacheEntry) error
}

// Cache is the delivery cache as seen by the pipeline.
type Cache interface {
	Get(candidateID string) (bot.CacheEntry, bool)
	Put(ctx context.Context, entry bot.CacheEntry) error
}

// Request asks for one candidate to be delivered to Target.
type Request struct {
	CandidateID string
	Quality     bot.QualityTier
	Target      bot.Target
	Requester   int64
	OnStage     func(Stage)
}

// Result describes a finished acquisition.
type Result struct {
	Entry     bot.CacheEntry
	FromCache bool
}

// Options configures a Pipeline.
type Options struct {
	Fetcher    Fetcher
	Thumbnails ThumbnailFetcher
	Tagger     Tagger
	Channel    Channel
	Cache      Cache
	WorkDir    string
	Timeout    time.Duration
	Logger     bot.Logger
}

// Pipeline runs acquisitions. Concurrent requests for the same candidate
// share a single download.
type Pipeline struct {
	fetcher    Fetcher
	thumbnails ThumbnailFetcher
	tagger     Tagger
	channel    Channel
	cache      Cache
	workDir    string
	timeout    time.Duration
	logger     bot.Logger
	group      singleflight.Group
}

// New creates a pipeline. Fetcher, Channel and Cache are required.
func New(opts Options) (*Pipeline, error) {
	if opts.Fetcher == nil || opts.Channel == nil || opts.Cache == nil {
		return nil, errors.New("acquire: fetcher, channel and cache are required")
	}
	if strings.TrimSpace(opts.WorkDir) == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Pipeline{
		fetcher:    opts.Fetcher,
		thumbnails: opts.Thumbnails,
		tagger:     opts.Tagger,
		channel:    opts.Channel,
		cache:      opts.Cache,
		workDir:    opts.WorkDir,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}, nil
}

type flight struct {
	entry  bot.CacheEntry
	target bot.Target
}

// Acquire delivers the candidate to req.Target, downloading it first unless
// the cache already holds a delivered copy.
func (p *Pipeline) Acquire(ctx context.Context, req Request) (Result, error) {
	req.CandidateID = strings.TrimSpace(req.CandidateID)
	if req.CandidateID == "" {
		return Result{}, newError(KindSourceUnavailable, "", errors.New("empty candidate id"))
	}
	if !req.Quality.Valid() {
		req.Quality = bot.DefaultQuality
	}

	if entry, ok := p.cache.Get(req.CandidateID); ok {
		if err := p.sendCached(ctx, req, entry); err != nil {
			return Result{}, err
		}
		return Result{Entry: entry, FromCache: true}, nil
	}

	ch := p.group.DoChan(req.CandidateID, func() (interface{}, error) {
		entry, err := p.run(ctx, req)
		if err != nil {
			return nil, err
		}
		return flight{entry: entry, target: req.Target}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return Result{}, p.classify(ctx, KindSourceUnavailable, req.CandidateID, ctx.Err())
	}
	if res.Err != nil {
		return Result{}, res.Err
	}

	f := res.Val.(flight)
	if f.target == req.Target {
		return Result{Entry: f.entry}, nil
	}
	// Another request led this download; deliver its result here as well.
	if err := p.sendCached(ctx, req, f.entry); err != nil {
		return Result{}, err
	}
	return Result{Entry: f.entry, FromCache: true}, nil
}

func (p *Pipeline) sendCached(ctx context.Context, req Request, entry bot.CacheEntry) error {
	if err := p.channel.SendCached(ctx, req.Target, entry); err != nil {
		return p.classify(ctx, KindDeliveryFailed, req.CandidateID, err)
	}
	return nil
}

func (p *Pipeline) run(parent context.Context, req Request) (bot.CacheEntry, error) {
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	id := req.CandidateID
	log := p.log().With("candidate", id, "quality", req.Quality.String())

	dir := filepath.Join(p.workDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return bot.CacheEntry{}, newError(KindSourceUnavailable, id, fmt.Errorf("create work dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove work dir", "dir", dir, "error", err)
		}
	}()

	req.stage(StageDownloading)
	audio, err := p.fetcher.FetchAudio(ctx, id, req.Quality, dir)
	if err != nil {
		log.Warn("fetch failed", "error", err)
		return bot.CacheEntry{}, p.classify(ctx, KindSourceUnavailable, id, err)
	}
	if audio == nil {
		return bot.CacheEntry{}, newError(KindSourceUnavailable, id, errors.New("provider returned no audio"))
	}
	if err := checkArtifact(audio.Path); err != nil {
		log.Error("artifact missing after download", "path", audio.Path, "error", err)
		return bot.CacheEntry{}, newError(KindArtifactMissing, id, err)
	}

	name := normalize.Normalize(audio.Candidate.Title, audio.Candidate.Uploader)
	coverPath := p.cover(ctx, log, audio.Candidate.ThumbnailURL, dir)

	if p.tagger != nil {
		tags := id3.Tags{Title: name.Title, Artist: name.Artist, Comment: id}
		if err := p.tagger.Embed(audio.Path, tags, coverPath); err != nil {
			log.Warn("metadata tag failure", "ext", audio.Ext, "error", err)
		}
	}

	req.stage(StageSending)
	upload := Upload{
		Path:      audio.Path,
		FileName:  fileName(name, audio),
		CoverPath: coverPath,
		Title:     name.Title,
		Performer: name.Artist,
		Duration:  audio.Candidate.Duration,
		Caption:   "🎵 " + name.Title,
	}
	delivered, err := p.channel.UploadAudio(ctx, req.Target, upload)
	if err != nil {
		log.Warn("delivery failed", "error", err)
		return bot.CacheEntry{}, p.classify(ctx, KindDeliveryFailed, id, err)
	}
	if delivered.FileRef == "" {
		return bot.CacheEntry{}, newError(KindDeliveryFailed, id, errors.New("transport returned no file reference"))
	}

	entry := bot.CacheEntry{
		CandidateID: id,
		FileRef:     delivered.FileRef,
		ThumbRef:    delivered.ThumbRef,
		Title:       name.Title,
		Artist:      name.Artist,
		Duration:    audio.Candidate.Duration,
		Quality:     req.Quality,
		FromUserID:  req.Requester,
		FromChatID:  req.Target.ChatID,
		CreatedAt:   time.Now(),
	}
	// The file is already with the user; the record must survive the deadline.
	if err := p.cache.Put(context.WithoutCancel(ctx), entry); err != nil {
		log.Error("failed to record delivery", "error", err)
	}
	log.Info("acquired", "artist", entry.Artist, "title", entry.Title, "bitrate", audio.Bitrate)
	return entry, nil
}

// cover returns the path of a prepared cover image or "" when none could be made.
func (p *Pipeline) cover(ctx context.Context, log bot.Logger, url, dir string) string {
	if p.thumbnails == nil || strings.TrimSpace(url) == "" {
		return ""
	}
	raw := filepath.Join(dir, "thumbnail.src")
	if _, err := p.thumbnails.Download(ctx, url, raw); err != nil {
		log.Warn("thumbnail download failed", "error", err)
		return ""
	}
	coverPath := filepath.Join(dir, "cover.jpg")
	if err := prepareCover(raw, coverPath); err != nil {
		log.Warn("thumbnail conversion failed", "error", err)
		return ""
	}
	return coverPath
}

// classify reports any context end, deadline or cancellation, as a timeout.
func (p *Pipeline) classify(ctx context.Context, kind Kind, id string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindTimeout, id, err)
	}
	return newError(kind, id, err)
}

func (p *Pipeline) log() bot.Logger {
	if p.logger == nil {
		return nopLogger{}
	}
	return p.logger
}

func (r Request) stage(s Stage) {
	if r.OnStage != nil {
		r.OnStage(s)
	}
}

func checkArtifact(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("provider reported no file path")
	}
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	if stat.IsDir() || stat.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}

func fileName(name bot.NormalizedTitle, audio *provider.Audio) string {
	ext := audio.Ext
	if ext == "" {
		ext = strings.TrimPrefix(filepath.Ext(audio.Path), ".")
	}
	base := strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(name.String())
	if ext == "" {
		return base
	}
	return base + "." + ext
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)   {}
func (nopLogger) Info(string, ...any)    {}
func (nopLogger) Warn(string, ...any)    {}
func (nopLogger) Error(string, ...any)   {}
func (nopLogger) With(...any) bot.Logger { return nopLogger{} }
