package cues

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/sac2665/apex-transcriber-backend/internal/logger"
	"github.com/sac2665/apex-transcriber-backend/internal/types"
)

// Extract turns transcript segments into cue rows, one per segment, in
// segment order. It never fails: a segment without a recognizable value
// just leaves the matching fields nil.
func Extract(segments []types.TranscriptSegment) []types.CueRow {
	log := logger.New().WithField("module", "cues")

	rows := make([]types.CueRow, 0, len(segments))
	for _, seg := range segments {
		text := strings.ToLower(seg.Text)
		row := types.CueRow{
			SegmentStart: seg.Start,
			SegmentEnd:   seg.End,
		}

		if low, high, ok := rpmPair(text); ok {
			row.RPMLow, row.RPMHigh = &low, &high
		} else if strings.Contains(text, "rpm") {
			log.WithField("text", seg.Text).Debug("rpm keyword without a numeric pair")
		}

		if low, high, ok := resistancePair(text); ok {
			row.ResistanceLow, row.ResistanceHigh = &low, &high
		} else if strings.Contains(text, "resistance") {
			log.WithField("text", seg.Text).Debug("resistance keyword without a numeric pair")
		}

		rows = append(rows, row)
	}
	return rows
}

// rpmPair takes the last two numeric tokens before the first "rpm"
// ("between 60 and 90 rpm").
func rpmPair(text string) (int, int, bool) {
	idx := strings.Index(text, "rpm")
	if idx < 0 {
		return 0, 0, false
	}
	nums := numericTokens(strings.Fields(text[:idx]))
	if len(nums) < 2 {
		return 0, 0, false
	}
	return nums[len(nums)-2], nums[len(nums)-1], true
}

// resistancePair takes the first two numeric tokens after the first
// "resistance" ("resistance of 3 to 7"). Deliberately the mirror of
// rpmPair; do not unify the two.
func resistancePair(text string) (int, int, bool) {
	idx := strings.Index(text, "resistance")
	if idx < 0 {
		return 0, 0, false
	}
	nums := numericTokens(strings.Fields(text[idx+len("resistance"):]))
	if len(nums) < 2 {
		return 0, 0, false
	}
	return nums[0], nums[1], true
}

// numericTokens filters to tokens made purely of digits. "90," or
// "7." do not count; transcripts mostly emit bare numbers.
func numericTokens(tokens []string) []int {
	var nums []int
	for _, t := range tokens {
		if !allDigits(t) {
			continue
		}
		n, err := strconv.Atoi(t)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	return nums
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
