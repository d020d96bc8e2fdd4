package model

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidProfile marks a configuration error: the profile lacks fields
// required to generate intelligence, so generation is skipped entirely.
var ErrInvalidProfile = errors.New("profile incomplete")

// Profile is the onboarding profile of the user driving generation.
type Profile struct {
	UserID             string   `json:"userId"`
	CompanyName        string   `json:"companyName"`
	Persona            string   `json:"persona"`
	ProductDescription string   `json:"productDescription"`
	TargetIndustries   []string `json:"target_industries"`
	Region             string   `json:"region"`
}

// Validate checks the fields generation depends on.
func (p Profile) Validate() error {
	var missing []string
	if strings.TrimSpace(p.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(p.CompanyName) == "" {
		missing = append(missing, "companyName")
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrInvalidProfile, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}
