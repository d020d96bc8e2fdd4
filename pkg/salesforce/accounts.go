package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// maxNamesPerQuery bounds the IN clause of a name lookup so the SOQL stays
// under the URI length limit.
const maxNamesPerQuery = 100

// Account represents a Salesforce Account record.
type Account struct {
	ID          string `json:"Id" salesforce:"Id"`
	Name        string `json:"Name" salesforce:"Name"`
	Industry    string `json:"Industry" salesforce:"Industry"`
	Description string `json:"Description" salesforce:"Description"`
	Type        string `json:"Type" salesforce:"Type"`
}

// accountFields are the SOQL fields selected for Account queries.
var accountFields = []string{"Id", "Name", "Industry", "Description", "Type"}

// FindAccountsByName looks up accounts whose Name equals one of names. The
// result is keyed by lowercased name; when several accounts share a name the
// first returned wins.
func FindAccountsByName(ctx context.Context, c Client, names []string) (map[string]Account, error) {
	out := make(map[string]Account, len(names))
	for start := 0; start < len(names); start += maxNamesPerQuery {
		end := min(start+maxNamesPerQuery, len(names))

		quoted := make([]string, 0, end-start)
		for _, n := range names[start:end] {
			quoted = append(quoted, "'"+escapeSoql(n)+"'")
		}
		soql := fmt.Sprintf(
			"SELECT %s FROM Account WHERE Name IN (%s)",
			strings.Join(accountFields, ", "),
			strings.Join(quoted, ", "),
		)

		var accounts []Account
		if err := c.Query(ctx, soql, &accounts); err != nil {
			return out, eris.Wrap(err, fmt.Sprintf("sf: find accounts batch %d-%d", start, end))
		}
		for _, a := range accounts {
			key := strings.ToLower(strings.TrimSpace(a.Name))
			if _, dup := out[key]; !dup {
				out[key] = a
			}
		}
	}
	return out, nil
}

// CreateAccounts inserts accounts in batches of 200. Results are in input
// order.
func CreateAccounts(ctx context.Context, c Client, records []map[string]any) ([]CollectionResult, error) {
	for n, r := range records {
		if r["Name"] == nil || r["Name"] == "" {
			return nil, eris.New(fmt.Sprintf("sf: account %d has no Name", n))
		}
	}
	return insertBatched(ctx, c, "Account", records)
}

// AccountUpdate holds an account ID and the fields to update.
type AccountUpdate struct {
	ID     string
	Fields map[string]any
}

// BulkUpdateAccounts splits updates into batches of 200 (SF Collections API limit)
// and sends them via UpdateCollection.
func BulkUpdateAccounts(ctx context.Context, c Client, updates []AccountUpdate) ([]CollectionResult, error) {
	var all []CollectionResult
	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))

		records := make([]CollectionRecord, 0, end-start)
		for _, u := range updates[start:end] {
			records = append(records, CollectionRecord(u))
		}

		results, err := c.UpdateCollection(ctx, "Account", records)
		if err != nil {
			return all, eris.Wrap(err, fmt.Sprintf("sf: bulk update accounts batch %d-%d", start, end))
		}
		all = append(all, results...)
	}
	return all, nil
}

func insertBatched(ctx context.Context, c Client, sObject string, records []map[string]any) ([]CollectionResult, error) {
	var all []CollectionResult
	for start := 0; start < len(records); start += maxBatchSize {
		end := min(start+maxBatchSize, len(records))
		results, err := c.InsertCollection(ctx, sObject, records[start:end])
		if err != nil {
			return all, eris.Wrap(err, fmt.Sprintf("sf: insert %s batch %d-%d", sObject, start, end))
		}
		all = append(all, results...)
	}
	return all, nil
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
