// Package ytdlp implements provider.Provider on top of the yt-dlp command line tool.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/provider"
)

const name = "ytdlp"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// Options configures the client.
type Options struct {
	Binary    string // defaults to "yt-dlp"
	Cookies   string // optional Netscape cookies file
	ExtraArgs []string
	Runner    Runner // defaults to os/exec
	Logger    bot.Logger
}

// Client shells out to yt-dlp.
type Client struct {
	binary    string
	cookies   string
	extraArgs []string
	run       Runner
	logger    bot.Logger
}

var _ provider.Provider = (*Client)(nil)

// New creates a yt-dlp client.
func New(opts Options) *Client {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "yt-dlp"
	}
	run := opts.Runner
	if run == nil {
		run = execRunner
	}
	return &Client{
		binary:    binary,
		cookies:   strings.TrimSpace(opts.Cookies),
		extraArgs: opts.ExtraArgs,
		run:       run,
		logger:    opts.Logger,
	}
}

// Name implements provider.Provider.
func (c *Client) Name() string {
	return name
}

// FormatSelector maps a quality tier to a yt-dlp format selector.
// M4A streams are preferred because every tagging backend can write them.
func FormatSelector(quality bot.QualityTier) string {
	switch quality {
	case bot.QualityMedium:
		return "bestaudio[ext=m4a][abr<=160][abr>=96]/bestaudio[abr<=160][abr>=96]/bestaudio[abr<=160]/bestaudio"
	case bot.QualityLow:
		return "worstaudio[ext=m4a]/worstaudio"
	default:
		return "bestaudio[ext=m4a]/bestaudio/best"
	}
}

// Search implements provider.Provider using a flat "ytsearchN:" query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]bot.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	args := c.baseArgs()
	args = append(args,
		"--flat-playlist",
		"--dump-json",
		"--skip-download",
		fmt.Sprintf("ytsearch%d:%s", limit, query),
	)

	out, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return nil, provider.NewError(name, "search", "", classify(ctx, err))
	}

	var candidates []bot.Candidate
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var info videoInfo
		if err := json.Unmarshal(line, &info); err != nil {
			if c.logger != nil {
				c.logger.Warn("skip undecodable search entry", "error", err)
			}
			continue
		}
		if info.ID == "" {
			continue
		}
		candidates = append(candidates, info.candidate())
	}
	if err := scanner.Err(); err != nil {
		return nil, provider.NewError(name, "search", "", fmt.Errorf("%w: read output: %v", provider.ErrFailed, err))
	}
	return candidates, nil
}

// FetchAudio implements provider.Provider.
func (c *Client) FetchAudio(ctx context.Context, id string, quality bot.QualityTier, dir string) (*provider.Audio, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, provider.NewError(name, "fetch", id, provider.ErrNotFound)
	}

	args := c.baseArgs()
	args = append(args,
		"-f", FormatSelector(quality),
		"--no-playlist",
		"--no-part",
		"--no-mtime",
		"--no-simulate",
		"--dump-json",
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		"--", id,
	)

	out, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return nil, provider.NewError(name, "fetch", id, classify(ctx, err))
	}

	var info videoInfo
	if err := json.Unmarshal(lastJSONLine(out), &info); err != nil {
		return nil, provider.NewError(name, "fetch", id, fmt.Errorf("%w: decode output: %v", provider.ErrFailed, err))
	}
	audio := &provider.Audio{
		Path:      info.filePath(),
		Ext:       info.Ext,
		Bitrate:   info.ABR,
		Candidate: info.candidate(),
	}
	if audio.Candidate.ID == "" {
		audio.Candidate.ID = id
	}
	if len(info.RequestedDownloads) > 0 {
		if ext := info.RequestedDownloads[0].Ext; ext != "" {
			audio.Ext = ext
		}
		if abr := info.RequestedDownloads[0].ABR; abr > 0 {
			audio.Bitrate = abr
		}
	}
	if audio.Ext == "" && audio.Path != "" {
		audio.Ext = strings.TrimPrefix(filepath.Ext(audio.Path), ".")
	}
	return audio, nil
}

func (c *Client) baseArgs() []string {
	args := []string{"--no-warnings", "--no-progress", "--ignore-config"}
	if c.cookies != "" {
		args = append(args, "--cookies", c.cookies)
	}
	return append(args, c.extraArgs...)
}

type videoInfo struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Uploader   string   `json:"uploader"`
	Channel    string   `json:"channel"`
	Duration   *float64 `json:"duration"`
	Thumbnail  string   `json:"thumbnail"`
	Thumbnails []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"thumbnails"`
	Ext                string  `json:"ext"`
	ABR                float64 `json:"abr"`
	Filename           string  `json:"_filename"`
	LegacyFilename     string  `json:"filename"`
	RequestedDownloads []struct {
		Filepath string  `json:"filepath"`
		Ext      string  `json:"ext"`
		ABR      float64 `json:"abr"`
	} `json:"requested_downloads"`
}

func (v videoInfo) candidate() bot.Candidate {
	uploader := v.Uploader
	if uploader == "" {
		uploader = v.Channel
	}
	duration := 0
	if v.Duration != nil && *v.Duration > 0 {
		duration = int(*v.Duration + 0.5)
	}
	return bot.Candidate{
		ID:           v.ID,
		Title:        strings.TrimSpace(v.Title),
		Uploader:     strings.TrimSpace(uploader),
		Duration:     duration,
		ThumbnailURL: v.thumbnailURL(),
	}
}

// thumbnailURL prefers the widest listed thumbnail.
func (v videoInfo) thumbnailURL() string {
	best := ""
	bestWidth := -1
	for _, thumb := range v.Thumbnails {
		if thumb.URL == "" {
			continue
		}
		if thumb.Width > bestWidth {
			best, bestWidth = thumb.URL, thumb.Width
		}
	}
	if v.Thumbnail != "" && (best == "" || bestWidth <= 0) {
		return v.Thumbnail
	}
	return best
}

func (v videoInfo) filePath() string {
	for _, dl := range v.RequestedDownloads {
		if dl.Filepath != "" {
			return dl.Filepath
		}
	}
	if v.Filename != "" {
		return v.Filename
	}
	return v.LegacyFilename
}

func lastJSONLine(out []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 && line[0] == '{' {
			return line
		}
	}
	return nil
}

// RunError carries the tail of yt-dlp's stderr.
type RunError struct {
	Err    error
	Stderr string
}

func (e *RunError) Error() string {
	if e.Stderr == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Stderr)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func execRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &RunError{Err: err, Stderr: lastLine(stderr.String())}
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}

// classify maps a yt-dlp failure onto the provider sentinels.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", provider.ErrFailed, ctxErr)
	}
	msg := strings.ToLower(err.Error())
	var runErr *RunError
	if errors.As(err, &runErr) {
		msg = strings.ToLower(runErr.Stderr)
	}
	switch {
	case strings.Contains(msg, "http error 429"), strings.Contains(msg, "too many requests"):
		return fmt.Errorf("%w: %v", provider.ErrRateLimited, err)
	case strings.Contains(msg, "video unavailable"),
		strings.Contains(msg, "private video"),
		strings.Contains(msg, "not available"),
		strings.Contains(msg, "sign in to confirm"),
		strings.Contains(msg, "requested format is not available"):
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	case strings.Contains(msg, "does not exist"), strings.Contains(msg, "incomplete youtube id"):
		return fmt.Errorf("%w: %v", provider.ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %v", provider.ErrFailed, err)
	}
}

// Register adds the yt-dlp factory to r. It reads binary, cookies and
// extra_args from the "[provider.ytdlp]" section.
func Register(r *provider.Registry) error {
	return r.Register(name, func(settings provider.Settings, logger bot.Logger) (provider.Provider, error) {
		return New(Options{
			Binary:    settings.GetProviderString(name, "binary"),
			Cookies:   settings.GetProviderString(name, "cookies"),
			ExtraArgs: strings.Fields(settings.GetProviderString(name, "extra_args")),
			Logger:    logger,
		}), nil
	})
}
