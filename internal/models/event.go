package models

// EventStatus is the normalized status carried by a [ProgressEvent].
type EventStatus int

const (
	StatusUnknown EventStatus = iota
	StatusQueued
	StatusDownloading
	StatusPostProcessing
	StatusCompleted
	StatusError
)

func (s EventStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusDownloading:
		return "downloading"
	case StatusPostProcessing:
		return "post-processing"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ProgressEvent is one normalized update parsed from a single line of extractor output.
//
// Events are partial: absent fields keep their zero value and consumers merge only the
// fields that are set.
type ProgressEvent struct {
	Status          EventStatus
	DownloadedBytes int64
	TotalBytes      int64
	Speed           float64
	// Progress is a fraction in [0, 1].
	Progress float64

	// PlaylistIndex is 1-based as reported by the extractor; 0 means absent.
	PlaylistIndex int
	PlaylistCount int
	PlaylistTitle string
	// PlaylistNull is set when the extractor reported its playlist fields as explicit nulls,
	// which means the URL is not a collection.
	PlaylistNull bool

	ID        string
	Title     string
	Uploader  string
	Duration  float64
	Bitrate   int
	Thumbnail string

	// FilePath is a candidate path containing a directory; FileName a bare filename.
	FilePath          string
	FileName          string
	AlreadyDownloaded bool

	ErrorMessage string
	Warning      string
}

// IsEmpty reports whether the event carries nothing at all, which is what noise lines produce.
func (e ProgressEvent) IsEmpty() bool {
	return e == ProgressEvent{}
}

// ItemIndex returns the 0-based item index if one was reported.
func (e ProgressEvent) ItemIndex() (int, bool) {
	if e.PlaylistIndex <= 0 {
		return 0, false
	}
	return e.PlaylistIndex - 1, true
}
