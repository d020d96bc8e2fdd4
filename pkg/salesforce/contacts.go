package salesforce

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// ContactFields builds a Contact record for accountID. Salesforce requires
// LastName, so a single-word name is used as the last name.
func ContactFields(accountID, name, title, email string) map[string]any {
	first, last := splitName(name)
	m := map[string]any{
		"AccountId": accountID,
		"LastName":  last,
	}
	if first != "" {
		m["FirstName"] = first
	}
	if title != "" {
		m["Title"] = title
	}
	if email != "" {
		m["Email"] = email
	}
	return m
}

func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return "", name
	}
	return strings.TrimSpace(name[:idx]), name[idx+1:]
}

// CreateContacts inserts contacts in batches of 200.
func CreateContacts(ctx context.Context, c Client, records []map[string]any) ([]CollectionResult, error) {
	for _, r := range records {
		if r["AccountId"] == nil || r["AccountId"] == "" {
			return nil, eris.New("sf: account id is required for contact")
		}
	}
	return insertBatched(ctx, c, "Contact", records)
}
