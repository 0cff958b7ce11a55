package subtitle

import "github.com/kaede-labs/bdalign/internal/util"

// pgsOutlierCeiling discards PTS values at or above this many seconds: a
// guard against a truncated or corrupt PGS stream producing a nonsense PTS.
const pgsOutlierCeiling = 18000.0

// Pgs is a bitmap subtitle track. Only the duration is retained; there is
// no content to merge.
type Pgs struct {
	maxEnd float64
}

func (p *Pgs) Kind() Kind    { return KindPgs }
func (p *Pgs) MaxEnd() float64 { return p.maxEnd }

// ParsePGS walks the presentation-graphics segment stream and returns a Pgs
// carrying the outlier-guarded max PTS as its duration estimate.
func ParsePGS(data []byte) (*Pgs, error) {
	var pts []float64
	pos := 0
	for pos+13 <= len(data) {
		if data[pos] != 'P' || data[pos+1] != 'G' {
			pos++
			continue
		}
		p := pos + 2
		rawPTS := util.ReadUint32(data, &p)
		util.Skip(data, &p, 5)
		segmentSize := int(util.ReadUint16(data, &p))

		seconds := float64(rawPTS) / 90000.0
		if seconds < pgsOutlierCeiling {
			pts = append(pts, seconds)
		}

		util.Skip(data, &p, segmentSize)
		if p <= pos {
			break
		}
		pos = p
	}
	return &Pgs{maxEnd: outlierGuardedMax(pts)}, nil
}
