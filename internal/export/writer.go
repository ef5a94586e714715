package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/sac2665/apex-transcriber-backend/internal/config"
	"github.com/sac2665/apex-transcriber-backend/internal/logger"
	"github.com/sac2665/apex-transcriber-backend/internal/types"
)

// ContentType is the media type served for exported workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// header matches the column layout downstream consumers expect.
var header = []interface{}{
	"Segment Start (Seconds)",
	"Segment End (Seconds)",
	"RPM low",
	"RPM high",
	"Resistance Low",
	"Resistance High",
}

// Writer saves cue rows as uniquely named .xlsx workbooks. Filename
// uniqueness is what keeps concurrent runs from colliding.
type Writer struct {
	dir string
}

func NewWriter(cfg *config.Config) *Writer {
	return &Writer{dir: cfg.ExportDir}
}

// Write creates one workbook for the rows and returns its opaque
// filename. Nil metric fields become empty cells, not zeros.
func (w *Writer) Write(rows []types.CueRow) (string, error) {
	log := logger.New().WithField("module", "export")

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return "", errors.Wrap(err, "write header")
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		values := []interface{}{
			row.SegmentStart,
			row.SegmentEnd,
			cellValue(row.RPMLow),
			cellValue(row.RPMHigh),
			cellValue(row.ResistanceLow),
			cellValue(row.ResistanceHigh),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return "", errors.Wrapf(err, "write row %d", i)
		}
	}

	filename := fmt.Sprintf("output_%s.xlsx", strings.ReplaceAll(uuid.New().String(), "-", ""))
	if err := f.SaveAs(filepath.Join(w.dir, filename)); err != nil {
		return "", errors.Wrap(err, "save workbook")
	}

	log.WithField("filename", filename).WithField("rows", len(rows)).Info("export written")
	return filename, nil
}

// Path maps an export filename back to its location on disk. The
// filename is rejected if it tries to reach outside the export dir.
func (w *Writer) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", errors.Errorf("invalid export filename %q", filename)
	}
	return filepath.Join(w.dir, filename), nil
}

func cellValue(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
