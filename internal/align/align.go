// Package align implements the episode-to-chapter alignment engine: given
// one or more decoded playlists and an ordered list of episode durations,
// it decides which chapter boundary begins which episode and produces a
// PlacementPlan the subtitle merger and remux orchestrator both consume.
package align

import (
	"github.com/kaede-labs/bdalign/internal/bdalignerr"
	"github.com/kaede-labs/bdalign/internal/config"
	"github.com/kaede-labs/bdalign/internal/mpls"
)

// Placement is where one episode begins: which playlist, which 1-based
// chapter within that playlist's flattened boundary list, and the offset
// in seconds from the playlist start.
type Placement struct {
	PlaylistIndex      int
	ChapterIndex1Based int
	OffsetSeconds      float64
}

// PlacementPlan maps a dense episode index to its Placement.
type PlacementPlan map[int]Placement

// Override pins an episode to a specific chapter of a specific playlist,
// bypassing the greedy heuristic for that episode; the engine resumes
// greedy placement for subsequent episodes from the resulting state. The
// pin takes effect only while the engine is filling PlaylistIndex when it
// reaches that episode; an override naming any other playlist is ignored
// and the episode is placed greedily.
type Override struct {
	PlaylistIndex      int
	ChapterIndex1Based int
}

type markedBoundary struct {
	mpls.Boundary
	ChapterIndex1 int
}

// Align runs the greedy placement algorithm over playlists and durations.
// e, below, always holds the index of the next unplaced episode: placing
// episode e then incrementing e is how both the greedy steps and pinned
// overrides advance.
func Align(playlists []*mpls.Playlist, durations []float64, overrides map[int]Override) (PlacementPlan, error) {
	if len(playlists) == 0 {
		return nil, &bdalignerr.AlignmentError{Reason: "no playlists supplied"}
	}
	n := len(durations)
	if n == 0 {
		return nil, &bdalignerr.AlignmentError{Reason: "no episodes supplied"}
	}

	totalBoundaries := 0
	for _, pl := range playlists {
		totalBoundaries += len(pl.Boundaries())
	}
	if totalBoundaries < n {
		return nil, &bdalignerr.AlignmentError{Reason: "fewer chapter boundaries than episodes"}
	}

	plan := make(PlacementPlan, n)
	e := 0

	for p, pl := range playlists {
		if e >= n {
			break
		}
		boundaries := indexBoundaries(pl.Boundaries())
		if len(boundaries) == 0 {
			continue
		}
		marksByItem := groupByItem(boundaries)

		startIdx := 0
		if ov, ok := overrides[e]; ok && ov.PlaylistIndex == p {
			startIdx = ov.ChapterIndex1Based - 1
			if startIdx < 0 || startIdx >= len(boundaries) {
				return nil, &bdalignerr.AlignmentError{Reason: "override chapter index out of range"}
			}
		}
		start := boundaries[startIdx]
		plan[e] = Placement{PlaylistIndex: p, ChapterIndex1Based: start.ChapterIndex1, OffsetSeconds: start.Offset}
		subEnd := start.Offset + durations[e]
		consumedChapter := start.ChapterIndex1
		e++

		var elapsedBeforeStart float64
		for i := 0; i < start.ItemIndex; i++ {
			elapsedBeforeStart += pl.Items[i].DurationSeconds()
		}
		left := pl.TotalTime() - elapsedBeforeStart

		for itemIdx := start.ItemIndex; itemIdx < len(pl.Items) && e < n; itemIdx++ {
			item := pl.Items[itemIdx]
			marks := marksByItem[itemIdx]

			if len(marks) > 0 {
				first := marks[0]
				if first.ChapterIndex1 > consumedChapter {
					if ov, ok := overrides[e]; ok && ov.PlaylistIndex == p {
						if ov.ChapterIndex1Based < 1 || ov.ChapterIndex1Based > len(boundaries) {
							return nil, &bdalignerr.AlignmentError{Reason: "override chapter index out of range"}
						}
						pinned := boundaries[ov.ChapterIndex1Based-1]
						if pinned.ChapterIndex1 <= consumedChapter {
							return nil, &bdalignerr.AlignmentError{Reason: "override chapter breaks episode ordering"}
						}
						plan[e] = Placement{PlaylistIndex: p, ChapterIndex1Based: pinned.ChapterIndex1, OffsetSeconds: pinned.Offset}
						subEnd = pinned.Offset + durations[e]
						consumedChapter = pinned.ChapterIndex1
						e++
					} else if first.Offset > subEnd-config.TrailingTolerance && e < n && left > durations[e]-config.NextFitMargin {
						plan[e] = Placement{PlaylistIndex: p, ChapterIndex1Based: first.ChapterIndex1, OffsetSeconds: first.Offset}
						subEnd = first.Offset + durations[e]
						consumedChapter = first.ChapterIndex1
						e++
					}
				}

				if item.DurationSeconds() > config.MultiEpisodeClipHigh && subEnd-first.Offset < config.MultiEpisodeClipLow {
					for _, m := range marks[1:] {
						if e >= n {
							break
						}
						tail := (float64(item.OutTime) - float64(m.Timestamp)) / 45000.0
						if m.Offset >= subEnd && tail > config.TailMinimum {
							plan[e] = Placement{PlaylistIndex: p, ChapterIndex1Based: m.ChapterIndex1, OffsetSeconds: m.Offset}
							subEnd = m.Offset + durations[e]
							consumedChapter = m.ChapterIndex1
							e++
						}
					}
				}
			}

			left -= item.DurationSeconds()
		}
	}

	if e < n {
		return nil, &bdalignerr.AlignmentError{Reason: "fewer chapter boundaries than episodes after placement"}
	}
	return plan, nil
}

func indexBoundaries(raw []mpls.Boundary) []markedBoundary {
	out := make([]markedBoundary, len(raw))
	for i, b := range raw {
		out[i] = markedBoundary{Boundary: b, ChapterIndex1: i + 1}
	}
	return out
}

func groupByItem(boundaries []markedBoundary) map[int][]markedBoundary {
	out := make(map[int][]markedBoundary)
	for _, b := range boundaries {
		out[b.ItemIndex] = append(out[b.ItemIndex], b)
	}
	return out
}
