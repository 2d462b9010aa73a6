package id3

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

var fakeFrames = []byte{0xFF, 0xF8, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// minimalFlac returns a stream marker, a single STREAMINFO block and a few frame bytes.
func minimalFlac() []byte {
	var buf bytes.Buffer
	buf.WriteString("fLaC")
	buf.Write([]byte{0x80, 0x00, 0x00, 34})
	buf.Write(make([]byte, 34))
	buf.Write(fakeFrames)
	return buf.Bytes()
}

func TestEmbedMp3(t *testing.T) {
	path := writeFile(t, "track.mp3", fakeFrames)
	cover := writeFile(t, "cover.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'})

	s := NewService(nil)
	if err := s.Embed(path, Tags{Title: "Believer", Artist: "Imagine Dragons", Comment: "7wtfhZwyrcc"}, cover); err != nil {
		t.Fatalf("embed: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer tag.Close()
	if tag.Title() != "Believer" || tag.Artist() != "Imagine Dragons" {
		t.Fatalf("unexpected tags %q / %q", tag.Artist(), tag.Title())
	}
	if pics := tag.GetFrames(tag.CommonID("Attached picture")); len(pics) != 1 {
		t.Fatalf("expected one picture frame, got %d", len(pics))
	}
}

func TestEmbedFlacKeepsFrames(t *testing.T) {
	path := writeFile(t, "track.flac", minimalFlac())

	s := NewService(nil)
	if err := s.Embed(path, Tags{Title: "Song", Artist: "Artist"}, ""); err != nil {
		t.Fatalf("embed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasSuffix(data, fakeFrames) {
		t.Fatalf("audio frames were not preserved")
	}

	parsed, err := flac.ParseFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var found bool
	for _, meta := range parsed.Meta {
		if meta.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*meta)
		if err != nil {
			t.Fatalf("parse vorbis: %v", err)
		}
		titles, _ := cmt.Get(flacvorbis.FIELD_TITLE)
		if len(titles) != 1 || titles[0] != "Song" {
			t.Fatalf("unexpected titles %v", titles)
		}
		found = true
	}
	if !found {
		t.Fatal("vorbis comment block missing")
	}
}

func TestEmbedUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "track.webm", fakeFrames)
	err := NewService(nil).Embed(path, Tags{Title: "x"}, "")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestReadCoverWithLimit(t *testing.T) {
	path := writeFile(t, "cover.jpg", make([]byte, 64))
	if _, err := readCoverWithLimit(path, 32); err == nil {
		t.Fatal("expected size limit error")
	}
	data, err := readCoverWithLimit(path, 64)
	if err != nil || len(data) != 64 {
		t.Fatalf("unexpected result len=%d err=%v", len(data), err)
	}
}
