package plan

import "github.com/lilnasy/astro-optimize-pictures/internal/fileutil"

// AutoHeight asks ffmpeg to derive the height from the aspect ratio, rounded
// to an even number.
const AutoHeight = -2

// Status tracks a task through reconciliation and transcoding.
type Status int

const (
	Pending Status = iota
	Cached
	Transcoded
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Cached:
		return "cached"
	case Transcoded:
		return "transcoded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task is one output file to produce for a source image.
type Task struct {
	Format          Format
	Codec           string
	Quality         int
	Width           int
	Height          int
	DestinationPath string
	Preview         bool

	// Stat is set once the destination is known to exist and be non-empty.
	Stat   *fileutil.Stat
	Status Status
}

// New reports whether the output was produced during the current run.
func (t Task) New() bool {
	return t.Status == Transcoded
}

// Produced reports whether the output exists on disk.
func (t Task) Produced() bool {
	return t.Stat != nil && (t.Status == Cached || t.Status == Transcoded)
}
