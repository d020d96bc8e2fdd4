// Package export renders an owner's intelligence snapshot as an xlsx
// workbook.
package export

import (
	"bytes"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/persona"
)

// Sheet names.
const (
	SheetProspects  = "Prospects"
	SheetIndustries = "Industries"
	SheetSignals    = "Signals"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	industryHeader = []string{"ID", "Name", "Health Score", "Trend", "Top Signals"}
	signalHeader   = []string{"Title", "Type", "Sentiment", "Severity", "Industries", "Summary", "Sources"}
)

// prospectHeader uses the persona's score and pipeline labels.
func prospectHeader(labels persona.Labels) []string {
	return []string{"Company", "Industry", labels.Score, "Pressure Response", labels.Pipeline, "Why Now", "Notes", "Contacts", "CRM ID"}
}

// Workbook builds the export workbook. A nil snapshot produces empty sheets
// with headers only.
func Workbook(snap *model.Snapshot, labels persona.Labels) (*xlsx.File, error) {
	if snap == nil {
		snap = &model.Snapshot{}
	}
	f := xlsx.NewFile()

	industryNames := make(map[string]string, len(snap.Industries))
	for _, ind := range snap.Industries {
		industryNames[ind.ID] = ind.Name
	}

	sheet, err := addSheet(f, SheetProspects, prospectHeader(labels))
	if err != nil {
		return nil, err
	}
	for _, p := range snap.Prospects {
		row := sheet.AddRow()
		addString(row, p.CompanyName)
		addString(row, industryNames[p.IndustryID])
		row.AddCell().SetInt(p.VigylScore)
		addString(row, string(p.PressureResponse))
		addString(row, string(p.PipelineStage))
		addString(row, p.WhyNow)
		addString(row, p.Notes)
		addString(row, contactList(p.Contacts))
		addString(row, p.CRMID)
	}

	sheet, err = addSheet(f, SheetIndustries, industryHeader)
	if err != nil {
		return nil, err
	}
	for _, ind := range snap.Industries {
		row := sheet.AddRow()
		addString(row, ind.ID)
		addString(row, ind.Name)
		row.AddCell().SetInt(ind.HealthScore)
		addString(row, string(ind.TrendDirection))
		addString(row, strings.Join(ind.TopSignals, "; "))
	}

	sheet, err = addSheet(f, SheetSignals, signalHeader)
	if err != nil {
		return nil, err
	}
	for _, s := range snap.Signals {
		row := sheet.AddRow()
		addString(row, s.Title)
		addString(row, string(s.SignalType))
		addString(row, string(s.Sentiment))
		row.AddCell().SetInt(s.Severity)
		addString(row, strings.Join(s.IndustryTags, ", "))
		addString(row, s.Summary)
		addString(row, sourceList(s.Sources))
	}

	return f, nil
}

// Write renders the workbook to w.
func Write(w io.Writer, snap *model.Snapshot, labels persona.Labels) error {
	f, err := Workbook(snap, labels)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return eris.Wrap(err, "export: copy workbook")
	}
	return nil
}

// Save writes the workbook to path.
func Save(path string, snap *model.Snapshot, labels persona.Labels) error {
	f, err := Workbook(snap, labels)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addSheet(f *xlsx.File, name string, header []string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %s", name)
	}
	row := sheet.AddRow()
	for _, h := range header {
		addString(row, h)
	}
	return sheet, nil
}

func addString(row *xlsx.Row, v string) {
	row.AddCell().SetString(v)
}

func contactList(contacts []model.Contact) string {
	parts := make([]string, 0, len(contacts))
	for _, c := range contacts {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		if c.Title != "" {
			name += " (" + c.Title + ")"
		}
		if c.Email != "" {
			name += " <" + c.Email + ">"
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "; ")
}

func sourceList(sources []model.Source) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.URL != "" {
			parts = append(parts, s.URL)
			continue
		}
		if s.Name != "" {
			parts = append(parts, s.Name)
		}
	}
	return strings.Join(parts, " ")
}
