package bdalign

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildSingleItemMPLS writes a minimal MPLS file covering outSeconds with
// chapter marks at the given offsets, mirroring the fixture builders used
// by the lower-level mpls/bdmv tests.
func buildSingleItemMPLS(t *testing.T, outSeconds float64, markSeconds []float64) []byte {
	t.Helper()
	outTicks := uint32(outSeconds * 45000)

	var playlistBlock []byte
	playlistBlock = append(playlistBlock, 0, 0, 0, 0, 0, 0)
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
	for _, s := range markSeconds {
		chapterBlock = append(chapterBlock, 0, 1)
		chapterBlock = binary.BigEndian.AppendUint16(chapterBlock, 0)
		chapterBlock = binary.BigEndian.AppendUint32(chapterBlock, uint32(s*45000))
		chapterBlock = append(chapterBlock, 0, 0, 0, 0, 0, 0)
	}
	var chaptersFull []byte
	chaptersFull = append(chaptersFull, 0, 0, 0, 0)
	chaptersFull = binary.BigEndian.AppendUint16(chaptersFull, uint16(len(markSeconds)))
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

func TestRunAlignsAndMergesSiameseDiscPlaylist(t *testing.T) {
	root := t.TempDir()
	discRoot := filepath.Join(root, "MY_SHOW")
	playlistDir := filepath.Join(discRoot, "BDMV", "PLAYLIST")
	require.NoError(t, os.MkdirAll(playlistDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(playlistDir, "00001.mpls"),
		buildSingleItemMPLS(t, 2880, []float64{0, 1440}),
		0o644,
	))

	sub1 := filepath.Join(root, "ep1.srt")
	sub2 := filepath.Join(root, "ep2.srt")
	require.NoError(t, os.WriteFile(sub1, []byte("1\n00:00:00,000 --> 00:23:59,000\nHello\n\n"), 0o644))
	require.NoError(t, os.WriteFile(sub2, []byte("1\n00:00:00,000 --> 00:23:59,000\nWorld\n\n"), 0o644))

	result, err := Run(context.Background(), Options{
		BDMVRoot: discRoot,
		Episodes: []Episode{{SubtitlePath: sub1}, {SubtitlePath: sub2}},
	})
	require.NoError(t, err)
	require.Equal(t, "00001.mpls", result.MainPlaylistName)
	require.Len(t, result.Plan, 2)
	require.Equal(t, 0.0, result.Plan[0].OffsetSeconds)
	require.Equal(t, 1440.0, result.Plan[1].OffsetSeconds)
	require.Len(t, result.MergedPaths, 2)

	for _, p := range result.MergedPaths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		require.Contains(t, string(data), "Hello")
		require.Contains(t, string(data), "World")
	}
}

func TestRunRequiresBDMVRootAndEpisodes(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	require.Error(t, err)

	_, err = Run(context.Background(), Options{BDMVRoot: "/tmp/x"})
	require.Error(t, err)
}

// TestRunWritesOneMergedSubtitlePerPlaylist covers the two-playlist,
// two-episode layout: each episode lands on a different playlist's sole
// chapter, so each playlist must get its own merged output rather than
// both episodes landing in a single file.
func TestRunWritesOneMergedSubtitlePerPlaylist(t *testing.T) {
	root := t.TempDir()
	discRoot := filepath.Join(root, "MY_SHOW")
	playlistDir := filepath.Join(discRoot, "BDMV", "PLAYLIST")
	require.NoError(t, os.MkdirAll(playlistDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(playlistDir, "00001.mpls"),
		buildSingleItemMPLS(t, 1440, []float64{0}),
		0o644,
	))
	require.NoError(t, os.WriteFile(
		filepath.Join(playlistDir, "00002.mpls"),
		buildSingleItemMPLS(t, 1500, []float64{0}),
		0o644,
	))

	sub1 := filepath.Join(root, "ep1.srt")
	sub2 := filepath.Join(root, "ep2.srt")
	require.NoError(t, os.WriteFile(sub1, []byte("1\n00:00:00,000 --> 00:10:00,000\nHello\n\n"), 0o644))
	require.NoError(t, os.WriteFile(sub2, []byte("1\n00:00:00,000 --> 00:10:00,000\nWorld\n\n"), 0o644))

	result, err := Run(context.Background(), Options{
		BDMVRoot: discRoot,
		Episodes: []Episode{{SubtitlePath: sub1}, {SubtitlePath: sub2}},
	})
	require.NoError(t, err)
	require.Equal(t, "00002.mpls", result.MainPlaylistName)
	require.NotEqual(t, result.Plan[0].PlaylistIndex, result.Plan[1].PlaylistIndex)

	// One pair for the main playlist (root copy + its own mpls-stem copy)
	// plus one file for the non-main playlist's own mpls-stem copy.
	require.Len(t, result.MergedPaths, 3)

	var sawHello, sawWorld, sawBoth bool
	for _, p := range result.MergedPaths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		text := string(data)
		hasHello := strings.Contains(text, "Hello")
		hasWorld := strings.Contains(text, "World")
		if hasHello && hasWorld {
			sawBoth = true
		} else if hasHello {
			sawHello = true
		} else if hasWorld {
			sawWorld = true
		}
	}
	require.False(t, sawBoth, "episodes on different playlists must not be merged into one file")
	require.True(t, sawHello, "expected a file carrying episode 0's content")
	require.True(t, sawWorld, "expected a file carrying episode 1's content")
}
