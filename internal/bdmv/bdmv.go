// Package bdmv discovers BDMV roots, scans their PLAYLIST directories for
// decodable MPLS files, and picks the main playlist among them. It reuses
// the disk/ISO filesystem abstraction and worker-limited parallel scanning
// idiom from the mediainfo-reporting lineage this module grew out of, and
// redirects the result at alignment instead of reporting.
package bdmv

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/kaede-labs/bdalign/internal/bdalignerr"
	"github.com/kaede-labs/bdalign/internal/config"
	"github.com/kaede-labs/bdalign/internal/fs"
	"github.com/kaede-labs/bdalign/internal/mpls"
)

// VirtualDiskMounter mounts an ISO path and returns a root directory to
// scan plus a cleanup func to release the mount. No platform implementation
// ships here: decoding the UDF filesystem backing a Blu-ray ISO contributes
// nothing to chapter/subtitle alignment, so this module only defines the
// seam a platform-specific adapter would plug into.
type VirtualDiskMounter interface {
	Mount(isoPath string) (root string, cleanup func(), err error)
}

// Root is a discovered BDMV folder: its PLAYLIST directory's decoded MPLS
// files, keyed by file name. Select picks the main feature from it.
type Root struct {
	Path      string
	Playlists map[string]*mpls.Playlist
	// Errors holds a ParseError/IoError per playlist file that failed to
	// decode; a bad playlist does not fail the whole root.
	Errors map[string]error
}

// Find walks root looking for any directory whose immediate children
// include a BDMV subfolder that itself contains a PLAYLIST subfolder, per
// the discovery rule: case-insensitive name matching, breadth-first so a
// shallow BDMV root is preferred over one nested deeper by coincidence.
func Find(fileSystem fs.FileSystem, root string) ([]string, error) {
	rootDir, err := fileSystem.GetDirectoryInfo(root)
	if err != nil {
		return nil, &bdalignerr.IoError{Path: root, Err: err}
	}

	var found []string
	queue := []fs.DirectoryInfo{rootDir}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		if bdmvDir, ok := findChildCaseInsensitive(dir, "BDMV"); ok {
			if _, ok := findChildCaseInsensitive(bdmvDir, "PLAYLIST"); ok {
				found = append(found, dir.FullName())
				continue
			}
		}

		dirs, err := dir.GetDirectories()
		if err != nil {
			continue
		}
		queue = append(queue, dirs...)
	}
	return found, nil
}

func findChildCaseInsensitive(dir fs.DirectoryInfo, name string) (fs.DirectoryInfo, bool) {
	if d, err := dir.GetDirectory(name); err == nil {
		return d, true
	}
	dirs, err := dir.GetDirectories()
	if err != nil {
		return nil, false
	}
	for _, sub := range dirs {
		if strings.EqualFold(sub.Name(), name) {
			return sub, true
		}
	}
	return nil, false
}

// Scan decodes every candidate .mpls file under bdmvRoot/BDMV/PLAYLIST,
// fanning out across scanWorkerLimit workers. A playlist that fails to
// decode is recorded in Root.Errors rather than aborting the scan.
func Scan(fileSystem fs.FileSystem, bdmvRoot string, opts config.Options) (*Root, error) {
	rootDir, err := fileSystem.GetDirectoryInfo(bdmvRoot)
	if err != nil {
		return nil, &bdalignerr.IoError{Path: bdmvRoot, Err: err}
	}
	bdmvDir, ok := findChildCaseInsensitive(rootDir, "BDMV")
	if !ok {
		return nil, &bdalignerr.IoError{Path: bdmvRoot, Err: fmt.Errorf("no BDMV subfolder")}
	}
	playlistDir, err := bdmvDir.GetDirectory("PLAYLIST")
	if err != nil {
		if d, ok := findChildCaseInsensitive(bdmvDir, "PLAYLIST"); ok {
			playlistDir = d
		} else {
			return nil, &bdalignerr.IoError{Path: bdmvRoot, Err: fmt.Errorf("no PLAYLIST subfolder")}
		}
	}

	files, err := playlistDir.GetFiles()
	if err != nil {
		return nil, &bdalignerr.IoError{Path: playlistDir.FullName(), Err: err}
	}

	var candidates []fs.FileInfo
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f.Name()), ".mpls") {
			candidates = append(candidates, f)
		}
	}

	result := &Root{
		Path:      bdmvRoot,
		Playlists: make(map[string]*mpls.Playlist, len(candidates)),
		Errors:    make(map[string]error),
	}

	var mu sync.Mutex
	runParallel(candidates, scanWorkerLimit(len(candidates), opts.ScanWorkerLimit), func(f fs.FileInfo) error {
		pl, err := decodeFileInfo(f)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Errors[f.Name()] = err
			return nil
		}
		result.Playlists[f.Name()] = pl
		return nil
	})

	return result, nil
}

func decodeFileInfo(f fs.FileInfo) (*mpls.Playlist, error) {
	r, err := f.OpenRead()
	if err != nil {
		return nil, &bdalignerr.IoError{Path: f.FullName(), Err: err}
	}
	defer r.Close()
	data := make([]byte, f.Length())
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, &bdalignerr.IoError{Path: f.FullName(), Err: err}
	}
	return mpls.DecodeBytes(f.Name(), data)
}

// Select picks the main playlist per spec: among playlists that pass the
// configured short/looping filters, the one maximizing
// total_time_no_repeat * (1 + total_marks/5). It returns the winning file
// name and decoded playlist.
func Select(root *Root, opts config.Options) (string, *mpls.Playlist, error) {
	var bestName string
	var best *mpls.Playlist
	var bestScore float64

	for name, pl := range root.Playlists {
		if opts.FilterShortPlaylists && pl.TotalTimeNoRepeat() < float64(opts.FilterShortPlaylistsMin) {
			continue
		}
		if opts.FilterLoopingPlaylists && hasLoops(pl) {
			continue
		}
		totalMarks := 0
		for _, marks := range pl.Chapters {
			totalMarks += len(marks)
		}
		score := pl.TotalTimeNoRepeat() * (1 + float64(totalMarks)/5)
		if best == nil || score > bestScore {
			bestName, best, bestScore = name, pl, score
		}
	}

	if best == nil {
		return "", nil, &bdalignerr.AlignmentError{Reason: "no playlist survives discovery filters"}
	}
	return bestName, best, nil
}

// hasLoops reports whether any clip_name in the playlist repeats, meaning
// the same stream is played more than once (commonly a looping menu or
// bumper clip rather than a genuine episode feature).
func hasLoops(pl *mpls.Playlist) bool {
	seen := make(map[string]bool, len(pl.Items))
	for _, item := range pl.Items {
		if seen[item.ClipName] {
			return true
		}
		seen[item.ClipName] = true
	}
	return false
}

func scanWorkerLimit(total, configured int) int {
	if configured > 0 {
		if configured > total {
			return max(total, 1)
		}
		return configured
	}
	cpu := max(runtime.NumCPU()-1, 1)
	if cpu > 8 {
		cpu = 8
	}
	if total > 0 && cpu > total {
		cpu = total
	}
	return max(cpu, 1)
}

func runParallel[T any](items []T, limit int, fn func(T) error) {
	if len(items) == 0 {
		return
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(it T) {
			defer wg.Done()
			defer func() { <-sem }()
			_ = fn(it)
		}(item)
	}
	wg.Wait()
}
