// Package crm pushes prospects to Salesforce as Accounts and records the
// returned account ids on the owner's pipeline.
package crm

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/pkg/salesforce"
)

// DefaultLookupConcurrency bounds concurrent account lookups.
const DefaultLookupConcurrency = 4

// lookupChunk is how many names one lookup goroutine resolves.
const lookupChunk = 100

// Action is what sync did with one prospect.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionLinked  Action = "linked"
	ActionFailed  Action = "failed"
)

// Result is the outcome for one prospect.
type Result struct {
	ProspectID  string `json:"prospectId"`
	CompanyName string `json:"companyName"`
	CRMID       string `json:"crmId,omitempty"`
	Action      Action `json:"action"`
	Error       string `json:"error,omitempty"`
}

// Report summarizes a sync run.
type Report struct {
	Results  []Result `json:"results"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Linked   int      `json:"linked"`
	Failed   int      `json:"failed"`
	Contacts int      `json:"contacts"`
}

// Syncer pushes prospects to Salesforce.
type Syncer struct {
	client      salesforce.Client
	concurrency int
}

// NewSyncer creates a Syncer. concurrency <= 0 uses DefaultLookupConcurrency.
func NewSyncer(client salesforce.Client, concurrency int) *Syncer {
	if concurrency <= 0 {
		concurrency = DefaultLookupConcurrency
	}
	return &Syncer{client: client, concurrency: concurrency}
}

// Sync pushes prospects in the given stages (all stages when empty) to
// Salesforce. Prospects that already carry a CRM id are updated. Others are
// linked to an existing account with the same name, or created together with
// their contacts. Per-prospect failures are reported, not returned.
func (s *Syncer) Sync(ctx context.Context, snap *model.Snapshot, stages []model.PipelineStage) (*Report, error) {
	if snap == nil {
		return nil, eris.New("crm: no snapshot to sync")
	}
	log := zap.L().With(zap.String("component", "crm"), zap.String("owner_id", snap.OwnerID))

	prospects := filterStages(snap.Prospects, stages)
	report := &Report{}
	if len(prospects) == 0 {
		return report, nil
	}

	industryNames := make(map[string]string, len(snap.Industries))
	for _, ind := range snap.Industries {
		industryNames[ind.ID] = ind.Name
	}

	var unlinked []model.Prospect
	var updates []salesforce.AccountUpdate
	var updated []model.Prospect
	for _, p := range prospects {
		if p.CRMID != "" {
			updates = append(updates, salesforce.AccountUpdate{ID: p.CRMID, Fields: accountFields(p, industryNames)})
			updated = append(updated, p)
			continue
		}
		unlinked = append(unlinked, p)
	}

	existing, err := s.lookup(ctx, unlinked)
	if err != nil {
		return nil, err
	}

	var creates []map[string]any
	var created []model.Prospect
	for _, p := range unlinked {
		if acct, ok := existing[p.NameKey()]; ok {
			report.add(Result{ProspectID: p.ID, CompanyName: p.CompanyName, CRMID: acct.ID, Action: ActionLinked})
			continue
		}
		creates = append(creates, accountFields(p, industryNames))
		created = append(created, p)
	}

	if len(updates) > 0 {
		results, err := salesforce.BulkUpdateAccounts(ctx, s.client, updates)
		if err != nil {
			log.Error("account update failed", zap.Error(err))
		}
		report.addCollection(updated, results, err, ActionUpdated)
	}

	if len(creates) > 0 {
		results, err := salesforce.CreateAccounts(ctx, s.client, creates)
		if err != nil {
			log.Error("account create failed", zap.Error(err))
		}
		report.addCollection(created, results, err, ActionCreated)

		n, err := s.createContacts(ctx, created, results)
		if err != nil {
			log.Warn("contact create failed", zap.Error(err))
		}
		report.Contacts = n
	}

	log.Info("crm sync complete",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("linked", report.Linked),
		zap.Int("failed", report.Failed),
		zap.Int("contacts", report.Contacts),
	)
	return report, nil
}

// lookup resolves prospect names to existing accounts, one query per chunk
// with bounded concurrency.
func (s *Syncer) lookup(ctx context.Context, prospects []model.Prospect) (map[string]salesforce.Account, error) {
	seen := make(map[string]bool, len(prospects))
	var names []string
	for _, p := range prospects {
		if key := p.NameKey(); key != "" && !seen[key] {
			seen[key] = true
			names = append(names, strings.TrimSpace(p.CompanyName))
		}
	}

	var mu sync.Mutex
	out := make(map[string]salesforce.Account, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for start := 0; start < len(names); start += lookupChunk {
		chunk := names[start:min(start+lookupChunk, len(names))]
		g.Go(func() error {
			found, err := salesforce.FindAccountsByName(gctx, s.client, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for k, v := range found {
				out[k] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "crm: account lookup")
	}
	return out, nil
}

func (s *Syncer) createContacts(ctx context.Context, prospects []model.Prospect, results []salesforce.CollectionResult) (int, error) {
	var records []map[string]any
	for n, p := range prospects {
		if n >= len(results) || !results[n].Success || results[n].ID == "" {
			continue
		}
		for _, c := range p.Contacts {
			if strings.TrimSpace(c.Name) == "" {
				continue
			}
			records = append(records, salesforce.ContactFields(results[n].ID, c.Name, c.Title, c.Email))
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	res, err := salesforce.CreateContacts(ctx, s.client, records)
	created := 0
	for _, r := range res {
		if r.Success {
			created++
		}
	}
	return created, err
}

func accountFields(p model.Prospect, industryNames map[string]string) map[string]any {
	m := map[string]any{
		"Name": strings.TrimSpace(p.CompanyName),
		"Type": "Prospect",
	}
	if name := industryNames[p.IndustryID]; name != "" {
		m["Industry"] = name
	}
	if p.WhyNow != "" {
		m["Description"] = p.WhyNow
	}
	return m
}

func filterStages(prospects []model.Prospect, stages []model.PipelineStage) []model.Prospect {
	if len(stages) == 0 {
		return prospects
	}
	want := make(map[model.PipelineStage]bool, len(stages))
	for _, s := range stages {
		want[s] = true
	}
	var out []model.Prospect
	for _, p := range prospects {
		if want[p.PipelineStage] {
			out = append(out, p)
		}
	}
	return out
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Action {
	case ActionCreated:
		r.Created++
	case ActionUpdated:
		r.Updated++
	case ActionLinked:
		r.Linked++
	case ActionFailed:
		r.Failed++
	}
}

// addCollection records one result per prospect. Prospects past the end of
// results (a batch that errored) are reported as failed with batchErr.
func (r *Report) addCollection(prospects []model.Prospect, results []salesforce.CollectionResult, batchErr error, action Action) {
	for n, p := range prospects {
		res := Result{ProspectID: p.ID, CompanyName: p.CompanyName, CRMID: p.CRMID}
		switch {
		case n >= len(results):
			res.Action = ActionFailed
			if batchErr != nil {
				res.Error = batchErr.Error()
			}
		case !results[n].Success:
			res.Action = ActionFailed
			res.Error = strings.Join(results[n].Errors, "; ")
		default:
			res.Action = action
			if results[n].ID != "" {
				res.CRMID = results[n].ID
			}
		}
		r.add(res)
	}
}

// Edits returns pipeline edits recording the CRM id of every synced
// prospect, keeping the stage and notes the prospect already has.
func Edits(snap *model.Snapshot, report *Report) []model.PipelineEdit {
	if snap == nil || report == nil {
		return nil
	}
	byID := make(map[string]model.Prospect, len(snap.Prospects))
	for _, p := range snap.Prospects {
		byID[p.ID] = p
	}

	var out []model.PipelineEdit
	for _, res := range report.Results {
		p, ok := byID[res.ProspectID]
		if !ok || res.Action == ActionFailed || res.CRMID == "" || res.CRMID == p.CRMID {
			continue
		}
		out = append(out, model.PipelineEdit{
			ProspectID:  p.ID,
			CompanyName: p.CompanyName,
			Stage:       p.PipelineStage,
			Notes:       p.Notes,
			CRMID:       res.CRMID,
		})
	}
	return out
}
