package bdmv

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/kaede-labs/bdalign/internal/config"
	"github.com/kaede-labs/bdalign/internal/fs"
)

// buildMPLS assembles a minimal but structurally valid MPLS file with a
// single play item of the given duration and chapter-mark count, enough to
// drive Scan/Select without a real disc.
func buildMPLS(t *testing.T, outSeconds float64, marks int) []byte {
	t.Helper()
	outTicks := uint32(outSeconds * 45000)

	var playlistBlock []byte
	playlistBlock = append(playlistBlock, 0, 0, 0, 0)
	playlistBlock = append(playlistBlock, 0, 0)
	playlistBlock = binary.BigEndian.AppendUint16(playlistBlock, 1)
	playlistBlock = append(playlistBlock, 0, 0)

	var entry []byte
	entry = append(entry, []byte("00001")...)
	entry = append(entry, []byte("M2TS")...)
	entry = append(entry, 0, 0, 0)
	entry = binary.BigEndian.AppendUint32(entry, 0)
	entry = binary.BigEndian.AppendUint32(entry, outTicks)
	var full []byte
	full = binary.BigEndian.AppendUint16(full, uint16(len(entry)))
	full = append(full, entry...)
	playlistBlock = append(playlistBlock, full...)

	var chapterBlock []byte
	step := outTicks / uint32(max(marks, 1))
	for i := 0; i < marks; i++ {
		chapterBlock = append(chapterBlock, 0, 1)
		chapterBlock = binary.BigEndian.AppendUint16(chapterBlock, 0)
		chapterBlock = binary.BigEndian.AppendUint32(chapterBlock, uint32(i)*step)
		chapterBlock = append(chapterBlock, 0, 0, 0, 0, 0, 0)
	}
	var chaptersFull []byte
	chaptersFull = append(chaptersFull, 0, 0, 0, 0)
	chaptersFull = binary.BigEndian.AppendUint16(chaptersFull, uint16(marks))
	chaptersFull = append(chaptersFull, chapterBlock...)

	header := make([]byte, 20)
	copy(header, "MPLS0200")
	playlistOffset := uint32(20)
	chaptersOffset := playlistOffset + uint32(len(playlistBlock))
	binary.BigEndian.PutUint32(header[8:], playlistOffset)
	binary.BigEndian.PutUint32(header[12:], chaptersOffset)

	data := append(header, playlistBlock...)
	data = append(data, chaptersFull...)
	return data
}

func writeBDMVTree(t *testing.T, playlists map[string][]byte) string {
	t.Helper()
	root := t.TempDir()
	discRoot := filepath.Join(root, "MY_DISC")
	playlistDir := filepath.Join(discRoot, "BDMV", "PLAYLIST")
	if err := os.MkdirAll(playlistDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for name, data := range playlists {
		if err := os.WriteFile(filepath.Join(playlistDir, name), data, 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}
	return root
}

func TestFindLocatesBDMVRootWithPlaylistDir(t *testing.T) {
	root := writeBDMVTree(t, map[string][]byte{"00001.mpls": buildMPLS(t, 60, 1)})
	fsys := fs.NewDiskFileSystem()

	found, err := Find(fsys, root)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("Find() = %v, want one BDMV root", found)
	}
	if filepath.Base(found[0]) != "MY_DISC" {
		t.Errorf("found root = %q, want MY_DISC", found[0])
	}
}

func TestFindIgnoresDirectoriesWithoutPlaylist(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "NOT_A_DISC", "BDMV"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	fsys := fs.NewDiskFileSystem()

	found, err := Find(fsys, root)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(found) != 0 {
		t.Errorf("Find() = %v, want none (no PLAYLIST subfolder)", found)
	}
}

func TestScanDecodesAllCandidatesAndSelectPicksHighestScore(t *testing.T) {
	root := writeBDMVTree(t, map[string][]byte{
		"00001.mpls": buildMPLS(t, 60, 0),   // score 60*(1+0/5) = 60
		"00002.mpls": buildMPLS(t, 1440, 8), // score 1440*(1+8/5) = 3744
	})
	discRoot := filepath.Join(root, "MY_DISC")
	fsys := fs.NewDiskFileSystem()
	opts := config.Default()

	scanned, err := Scan(fsys, discRoot, opts)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(scanned.Playlists) != 2 {
		t.Fatalf("len(Playlists) = %d, want 2: errors=%v", len(scanned.Playlists), scanned.Errors)
	}

	name, pl, err := Select(scanned, opts)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if name != "00002.mpls" {
		t.Errorf("Select() name = %q, want 00002.mpls", name)
	}
	if got, want := pl.TotalTimeNoRepeat(), 1440.0; got != want {
		t.Errorf("selected playlist TotalTimeNoRepeat() = %v, want %v", got, want)
	}
}

func TestSelectFiltersShortPlaylists(t *testing.T) {
	root := writeBDMVTree(t, map[string][]byte{
		"00001.mpls": buildMPLS(t, 5, 0),
	})
	discRoot := filepath.Join(root, "MY_DISC")
	fsys := fs.NewDiskFileSystem()
	opts := config.Default()
	opts.FilterShortPlaylists = true
	opts.FilterShortPlaylistsMin = 20

	scanned, err := Scan(fsys, discRoot, opts)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if _, _, err := Select(scanned, opts); err == nil {
		t.Fatal("Select() error = nil, want AlignmentError (all playlists filtered)")
	}
}
