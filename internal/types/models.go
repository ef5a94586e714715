package types

// MediaSource is one playable rendition of a video as reported by the CMS.
type MediaSource struct {
	Src       string `json:"src"`
	Container string `json:"container"`
}

// TranscriptSegment is one timestamped piece of transcribed speech.
// Start/End are whole seconds, truncated from the service's fractional
// timestamps. Segment order matches service output order.
type TranscriptSegment struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// CueRow is the extracted workout metrics for one transcript segment.
// Nil metric fields mean the segment carried no recognizable value,
// which is different from an explicit zero.
type CueRow struct {
	SegmentStart   int  `json:"segment_start_seconds"`
	SegmentEnd     int  `json:"segment_end_seconds"`
	RPMLow         *int `json:"rpm_low"`
	RPMHigh        *int `json:"rpm_high"`
	ResistanceLow  *int `json:"resistance_low"`
	ResistanceHigh *int `json:"resistance_high"`
}

// AudioRef is the transport-ready form of an extracted audio file.
// Exactly one of Data (base64 payload) or URL (fetchable address) is set.
type AudioRef struct {
	Data string
	URL  string
}
