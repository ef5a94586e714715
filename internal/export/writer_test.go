package export

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/sac2665/apex-transcriber-backend/internal/config"
	"github.com/sac2665/apex-transcriber-backend/internal/types"
)

func intp(n int) *int { return &n }

func TestWriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(&config.Config{ExportDir: dir})

	rows := []types.CueRow{
		{SegmentStart: 0, SegmentEnd: 4, RPMLow: intp(60), RPMHigh: intp(90)},
		{SegmentStart: 5, SegmentEnd: 9, ResistanceLow: intp(3), ResistanceHigh: intp(7)},
	}
	filename, err := w.Write(rows)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(filename, "output_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("filename = %q, want output_<id>.xlsx", filename)
	}

	f, err := excelize.OpenFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("row count = %d, want header + 2", len(got))
	}
	if got[0][0] != "Segment Start (Seconds)" || got[0][2] != "RPM low" {
		t.Errorf("header = %v", got[0])
	}
	if got[1][0] != "0" || got[1][2] != "60" || got[1][3] != "90" {
		t.Errorf("row 1 = %v", got[1])
	}
	// absent metrics are empty cells, not zeros
	if len(got[1]) > 4 {
		for _, cell := range got[1][4:] {
			if cell != "" {
				t.Errorf("expected empty resistance cells in row 1, got %v", got[1])
			}
		}
	}
	if got[2][0] != "5" || got[2][1] != "9" {
		t.Errorf("row 2 = %v", got[2])
	}
}

func TestWriteGeneratesUniqueFilenames(t *testing.T) {
	w := NewWriter(&config.Config{ExportDir: t.TempDir()})
	a, err := w.Write(nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := w.Write(nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("two writes produced the same filename %q", a)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	w := NewWriter(&config.Config{ExportDir: t.TempDir()})
	for _, bad := range []string{"", "../etc/passwd", "a/b.xlsx", ".hidden"} {
		if _, err := w.Path(bad); err == nil {
			t.Errorf("Path(%q) should be rejected", bad)
		}
	}
	if _, err := w.Path("output_abc.xlsx"); err != nil {
		t.Errorf("Path(valid) failed: %v", err)
	}
}
