package contact

import "github.com/sells-group/contact-mx/internal/model"

// AssignOtherDMNames sets OtherDMName on each record to the full name of the
// first other contact (by input order, different email) at the same
// cleaned website. That contact's name is taken as-is, even when empty.
// Records with no cleaned website or no colleague get "".
func AssignOtherDMNames(records []model.ContactRecord) {
	byOrg := make(map[string][]int)
	for i, r := range records {
		if r.CleanedWebsite == "" {
			continue
		}
		byOrg[r.CleanedWebsite] = append(byOrg[r.CleanedWebsite], i)
	}

	for i := range records {
		records[i].OtherDMName = ""
		site := records[i].CleanedWebsite
		if site == "" {
			continue
		}
		for _, j := range byOrg[site] {
			other := records[j]
			if j == i || other.Email == records[i].Email {
				continue
			}
			records[i].OtherDMName = other.FullName
			break
		}
	}
}
