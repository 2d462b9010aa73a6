// Package id3 embeds title, artist and cover art into fetched audio files.
package id3

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
	"github.com/liuran001/TubeBot-Go/bot"
	"go.senan.xyz/taglib"
)

// ErrUnsupportedFormat is returned for containers no backend can tag, such as webm.
var ErrUnsupportedFormat = errors.New("unsupported audio format for tags")

const maxCoverBytes = 10 * 1024 * 1024

// Tags is the metadata written to a file.
type Tags struct {
	Title   string
	Artist  string
	Album   string
	Comment string
}

// Service writes tags with the backend that fits the container.
type Service struct {
	logger bot.Logger
}

// NewService creates a tagging service.
func NewService(logger bot.Logger) *Service {
	return &Service{logger: logger}
}

// Embed writes tags and, when coverPath is set, a front cover into audioPath.
func (s *Service) Embed(audioPath string, tags Tags, coverPath string) error {
	switch strings.ToLower(filepath.Ext(audioPath)) {
	case ".mp3":
		return s.embedMp3Tags(audioPath, tags, coverPath)
	case ".flac":
		return s.embedFlacTags(audioPath, tags, coverPath)
	case ".m4a", ".mp4", ".aac", ".ogg", ".oga", ".opus":
		return s.embedTaglib(audioPath, tags, coverPath)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(audioPath))
	}
}

func (s *Service) embedMp3Tags(audioPath string, tags Tags, coverPath string) error {
	meta, err := id3v2.Open(audioPath, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer meta.Close()

	meta.SetDefaultEncoding(id3v2.EncodingUTF8)
	if tags.Title != "" {
		meta.SetTitle(tags.Title)
	}
	if tags.Artist != "" {
		meta.SetArtist(tags.Artist)
	}
	if tags.Album != "" {
		meta.SetAlbum(tags.Album)
	}
	if tags.Comment != "" {
		meta.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     tags.Comment,
		})
	}
	if artwork := s.readCover(coverPath); len(artwork) > 0 {
		meta.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingISO,
			MimeType:    detectMime(artwork),
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     artwork,
		})
	}
	return meta.Save()
}

func (s *Service) embedFlacTags(audioPath string, tags Tags, coverPath string) error {
	file, err := os.Open(audioPath)
	if err != nil {
		return err
	}
	parsed, err := flac.ParseMetadata(file)
	_ = file.Close()
	if err != nil {
		return err
	}

	if artwork := s.readCover(coverPath); len(artwork) > 0 {
		picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover", artwork, detectMime(artwork))
		if err == nil {
			block := picture.Marshal()
			parsed.Meta = append(parsed.Meta, &block)
		} else if s.logger != nil {
			s.logger.Warn("failed to create flac picture", "error", err)
		}
	}

	vorbis := flacvorbis.New()
	if tags.Title != "" {
		_ = vorbis.Add(flacvorbis.FIELD_TITLE, tags.Title)
	}
	if tags.Artist != "" {
		_ = vorbis.Add(flacvorbis.FIELD_ARTIST, tags.Artist)
	}
	if tags.Album != "" {
		_ = vorbis.Add(flacvorbis.FIELD_ALBUM, tags.Album)
	}
	if tags.Comment != "" {
		_ = vorbis.Add("COMMENT", tags.Comment)
	}
	block := vorbis.Marshal()
	replaced := false
	for i, m := range parsed.Meta {
		if m.Type == flac.VorbisComment {
			parsed.Meta[i] = &block
			replaced = true
			break
		}
	}
	if !replaced {
		parsed.Meta = append(parsed.Meta, &block)
	}

	return saveFlacWithMeta(audioPath, parsed)
}

func (s *Service) embedTaglib(audioPath string, tags Tags, coverPath string) error {
	values := make(map[string][]string)
	if tags.Title != "" {
		values[taglib.Title] = []string{tags.Title}
	}
	if tags.Artist != "" {
		values[taglib.Artist] = []string{tags.Artist}
	}
	if tags.Album != "" {
		values[taglib.Album] = []string{tags.Album}
	}
	if tags.Comment != "" {
		values[taglib.Comment] = []string{tags.Comment}
	}
	if len(values) > 0 {
		if err := taglib.WriteTags(audioPath, values, 0); err != nil {
			return fmt.Errorf("write tags to %s: %w", audioPath, err)
		}
	}
	if artwork := s.readCover(coverPath); len(artwork) > 0 {
		if err := taglib.WriteImage(audioPath, artwork); err != nil {
			return fmt.Errorf("write artwork to %s: %w", audioPath, err)
		}
	}
	return nil
}

// readCover returns nil when there is no usable cover; a broken cover never
// blocks the text tags.
func (s *Service) readCover(coverPath string) []byte {
	if coverPath == "" {
		return nil
	}
	artwork, err := readCoverWithLimit(coverPath, maxCoverBytes)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to read cover for embedding", "error", err)
		}
		return nil
	}
	return artwork
}

func saveFlacWithMeta(audioPath string, file *flac.File) error {
	original, err := os.Open(audioPath)
	if err != nil {
		return err
	}
	defer original.Close()

	stat, err := original.Stat()
	if err != nil {
		return err
	}

	// Skip the "fLaC" marker and every original metadata block to reach the frames.
	if _, err := original.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if err := skipFlacMetadata(original); err != nil {
		return err
	}

	tmpPath := audioPath + ".tagging"
	out, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, stat.Mode())
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if _, err := out.Write([]byte("fLaC")); err != nil {
		return cleanup(err)
	}
	for i, meta := range file.Meta {
		last := i == len(file.Meta)-1
		if _, err := out.Write(meta.Marshal(last)); err != nil {
			return cleanup(err)
		}
	}
	if _, err := io.Copy(out, original); err != nil {
		return cleanup(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, audioPath)
}

func skipFlacMetadata(r io.ReadSeeker) error {
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return fmt.Errorf("read flac metadata header: %w", err)
		}
		last := header[0]&0x80 != 0
		length := int64(header[1])<<16 | int64(header[2])<<8 | int64(header[3])
		if _, err := r.Seek(length, io.SeekCurrent); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}

func detectMime(data []byte) string {
	return http.DetectContentType(data[:minInt(len(data), 512)])
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func readCoverWithLimit(path string, maxSize int64) ([]byte, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if stat.Size() > maxSize {
		return nil, fmt.Errorf("cover image too large: %d bytes (max %d)", stat.Size(), maxSize)
	}
	return os.ReadFile(path)
}
