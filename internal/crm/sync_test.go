package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/pkg/salesforce"
)

// fakeClient records calls and answers lookups from a fixed account list.
type fakeClient struct {
	mu        sync.Mutex
	accounts  []salesforce.Account
	queries   int
	inserted  map[string][]map[string]any
	updated   []salesforce.CollectionRecord
	failNames map[string]bool
	queryErr  error
	nextID    int
}

func (f *fakeClient) Query(_ context.Context, soql string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return f.queryErr
	}
	var matched []salesforce.Account
	for _, a := range f.accounts {
		if strings.Contains(soql, "'"+a.Name+"'") {
			matched = append(matched, a)
		}
	}
	*(out.(*[]salesforce.Account)) = matched
	return nil
}

func (f *fakeClient) InsertCollection(_ context.Context, sObject string, records []map[string]any) ([]salesforce.CollectionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inserted == nil {
		f.inserted = map[string][]map[string]any{}
	}
	f.inserted[sObject] = append(f.inserted[sObject], records...)

	results := make([]salesforce.CollectionResult, len(records))
	for n, r := range records {
		if name, _ := r["Name"].(string); f.failNames[name] {
			results[n] = salesforce.CollectionResult{Errors: []string{"DUPLICATES_DETECTED"}}
			continue
		}
		f.nextID++
		results[n] = salesforce.CollectionResult{ID: fmt.Sprintf("%s-%d", sObject, f.nextID), Success: true}
	}
	return results, nil
}

func (f *fakeClient) UpdateCollection(_ context.Context, _ string, records []salesforce.CollectionRecord) ([]salesforce.CollectionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, records...)
	results := make([]salesforce.CollectionResult, len(records))
	for n, r := range records {
		results[n] = salesforce.CollectionResult{ID: r.ID, Success: true}
	}
	return results, nil
}

func testSnapshot() *model.Snapshot {
	return &model.Snapshot{
		OwnerID:    "owner-1",
		Industries: []model.Industry{{ID: "ind-fintech", Name: "Fintech"}},
		Prospects: []model.Prospect{
			{ID: "p1", CompanyName: "Acme Pay", IndustryID: "ind-fintech", WhyNow: "Series C", PipelineStage: model.StageContacted,
				Contacts: []model.Contact{{Name: "Ana Lopez", Title: "CFO"}, {Name: " "}}},
			{ID: "p2", CompanyName: "Globex", PipelineStage: model.StageResearching, Notes: "warm"},
			{ID: "p3", CompanyName: "Initech", CRMID: "001OLD", PipelineStage: model.StageWon},
			{ID: "p4", CompanyName: "Hooli", PipelineStage: model.StageContacted},
		},
	}
}

func TestSync(t *testing.T) {
	fc := &fakeClient{
		accounts:  []salesforce.Account{{ID: "001GLOBEX", Name: "Globex"}},
		failNames: map[string]bool{"Hooli": true},
	}
	report, err := NewSyncer(fc, 2).Sync(context.Background(), testSnapshot(), nil)
	require.NoError(t, err)

	byID := map[string]Result{}
	for _, r := range report.Results {
		byID[r.ProspectID] = r
	}
	assert.Equal(t, ActionCreated, byID["p1"].Action)
	assert.NotEmpty(t, byID["p1"].CRMID)
	assert.Equal(t, Result{ProspectID: "p2", CompanyName: "Globex", CRMID: "001GLOBEX", Action: ActionLinked}, byID["p2"])
	assert.Equal(t, ActionUpdated, byID["p3"].Action)
	assert.Equal(t, "001OLD", byID["p3"].CRMID)
	assert.Equal(t, ActionFailed, byID["p4"].Action)
	assert.Equal(t, "DUPLICATES_DETECTED", byID["p4"].Error)

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Linked)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Contacts, "blank contact names are skipped")

	accounts := fc.inserted["Account"]
	require.Len(t, accounts, 2)
	assert.Equal(t, map[string]any{"Name": "Acme Pay", "Type": "Prospect", "Industry": "Fintech", "Description": "Series C"}, accounts[0])

	contacts := fc.inserted["Contact"]
	require.Len(t, contacts, 1)
	assert.Equal(t, byID["p1"].CRMID, contacts[0]["AccountId"])
	assert.Equal(t, "Lopez", contacts[0]["LastName"])

	require.Len(t, fc.updated, 1)
	assert.Equal(t, "001OLD", fc.updated[0].ID)
}

func TestSync_StageFilter(t *testing.T) {
	fc := &fakeClient{}
	report, err := NewSyncer(fc, 0).Sync(context.Background(), testSnapshot(), []model.PipelineStage{model.StageWon})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, "p3", report.Results[0].ProspectID)
	assert.Equal(t, 0, fc.queries, "already-linked prospects need no lookup")
}

func TestSync_LookupError(t *testing.T) {
	fc := &fakeClient{queryErr: errors.New("INVALID_SESSION_ID")}
	_, err := NewSyncer(fc, 0).Sync(context.Background(), testSnapshot(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account lookup")
	assert.Empty(t, fc.inserted)
}

func TestSync_NilSnapshot(t *testing.T) {
	_, err := NewSyncer(&fakeClient{}, 0).Sync(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestEdits(t *testing.T) {
	snap := testSnapshot()
	report := &Report{Results: []Result{
		{ProspectID: "p1", CRMID: "001NEW", Action: ActionCreated},
		{ProspectID: "p2", CRMID: "001GLOBEX", Action: ActionLinked},
		{ProspectID: "p3", CRMID: "001OLD", Action: ActionUpdated},
		{ProspectID: "p4", Action: ActionFailed},
		{ProspectID: "gone", CRMID: "001X", Action: ActionCreated},
	}}

	edits := Edits(snap, report)
	require.Len(t, edits, 2)
	assert.Equal(t, model.PipelineEdit{ProspectID: "p1", CompanyName: "Acme Pay", Stage: model.StageContacted, CRMID: "001NEW"}, edits[0])
	assert.Equal(t, "warm", edits[1].Notes, "existing notes are kept")
	assert.Equal(t, "001GLOBEX", edits[1].CRMID)
}
