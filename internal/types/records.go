package types

import (
	"time"

	"github.com/paulmach/orb"
)

// Property names of the interim housing dataset.
const (
	PropOrganization     = "Organization Name"
	PropProjectName      = "Project Name"
	PropHUDClass         = "ProjType"
	PropPopulationServed = "PopulationServed"
	PropProjectType      = "ProjTypeDescription"
	PropCouncilDistrict  = "CD"
	PropTotalBeds        = "Total Beds"
)

// Property names of the parking citation dataset.
const (
	PropLocation             = "location"
	PropViolationCode        = "violation_code"
	PropViolationDescription = "violation_description"
	PropFineAmount           = "fine_amount"
	PropAgency               = "agency_desc"
	PropBodyStyle            = "body_style_desc"
	PropIssueDate            = "issue_date"
	PropYear                 = "year"
)

// HousingSite is one interim housing facility.
type HousingSite struct {
	Point            orb.Point
	Organization     string
	ProjectName      string
	HUDClass         string // ES, TH or SH
	PopulationServed string
	ProjectType      string
	CouncilDistrict  string // "1".."15"
	TotalBeds        int
}

// Properties returns the property mapping used by filters and tooltips.
func (h HousingSite) Properties() map[string]any {
	return map[string]any{
		PropOrganization:     h.Organization,
		PropProjectName:      h.ProjectName,
		PropHUDClass:         h.HUDClass,
		PropPopulationServed: h.PopulationServed,
		PropProjectType:      h.ProjectType,
		PropCouncilDistrict:  h.CouncilDistrict,
		PropTotalBeds:        h.TotalBeds,
	}
}

// Feature converts the site into a generic point feature.
func (h HousingSite) Feature(id string) Feature {
	return Feature{ID: id, Point: h.Point, Properties: h.Properties()}
}

// Citation is one parking citation.
type Citation struct {
	Point                orb.Point
	Location             string
	ViolationCode        string
	ViolationDescription string
	FineAmount           float64
	Agency               string
	BodyStyle            string
	IssueDate            time.Time
	Year                 int
}

// Properties returns the property mapping used by filters and tooltips.
// The year is exposed as a number so that numeric filters compare cleanly.
func (c Citation) Properties() map[string]any {
	props := map[string]any{
		PropLocation:             c.Location,
		PropViolationCode:        c.ViolationCode,
		PropViolationDescription: c.ViolationDescription,
		PropFineAmount:           c.FineAmount,
		PropAgency:               c.Agency,
		PropBodyStyle:            c.BodyStyle,
		PropYear:                 float64(c.Year),
	}
	if !c.IssueDate.IsZero() {
		props[PropIssueDate] = c.IssueDate.UTC().Format(time.RFC3339)
	}
	return props
}

// Feature converts the citation into a generic point feature.
func (c Citation) Feature(id string) Feature {
	return Feature{ID: id, Point: c.Point, Properties: c.Properties()}
}
