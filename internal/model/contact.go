package model

// Row is one parsed input row: column name to raw cell value.
type Row map[string]string

// Get returns the raw value for key, or "" when absent.
func (r Row) Get(key string) string {
	if r == nil {
		return ""
	}
	return r[key]
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ScenarioKind identifies which of the two supported input shapes a dataset uses.
type ScenarioKind string

const (
	// ScenarioMultiEmail rows carry email_1..email_3 with per-slot
	// email_<n>_ prefixed attribute columns.
	ScenarioMultiEmail ScenarioKind = "multi_email_per_row"
	// ScenarioSingleEmail rows carry one email column plus flat attributes.
	ScenarioSingleEmail ScenarioKind = "single_email_per_row"
)

// Provider labels assigned by MX classification.
const (
	ProviderGoogle  = "google"
	ProviderOutlook = "outlook"
	ProviderOthers  = "others"
)

// ContactRecord is one normalized contact extracted from an input row.
type ContactRecord struct {
	Email          string `json:"email"`
	FullName       string `json:"fullName,omitempty"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	Title          string `json:"title,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Website        string `json:"website,omitempty"`
	CleanedWebsite string `json:"cleanedWebsite,omitempty"`
	MXProvider     string `json:"mxProvider"`
	OtherDMName    string `json:"otherDmName"`

	// OriginalRow references the source row for export. It is never mutated.
	OriginalRow Row `json:"originalRow,omitempty"`
}

// Domain returns the part of the email after the last '@'.
func (c *ContactRecord) Domain() string {
	for i := len(c.Email) - 1; i >= 0; i-- {
		if c.Email[i] == '@' {
			return c.Email[i+1:]
		}
	}
	return ""
}

// ExportColumns is the fixed processed column set appended to every exported row.
var ExportColumns = []string{
	"email",
	"fullName",
	"firstName",
	"lastName",
	"title",
	"phone",
	"website",
	"cleanedWebsite",
	"mxProvider",
	"otherDmName",
}

// ExportValues returns the processed values in ExportColumns order.
func (c *ContactRecord) ExportValues() []string {
	return []string{
		c.Email,
		c.FullName,
		c.FirstName,
		c.LastName,
		c.Title,
		c.Phone,
		c.Website,
		c.CleanedWebsite,
		c.MXProvider,
		c.OtherDMName,
	}
}
