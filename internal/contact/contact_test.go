package contact

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-mx/internal/model"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"lowercases", "A@X.com", "a@x.com", false},
		{"trims", "  jane@Acme.IO \t", "jane@acme.io", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"no at", "jane.acme.io", "", true},
		{"empty domain", "jane@", "", true},
		{"empty local", "@acme.io", "", true},
		{"quoted local with at", `"a@b"@Example.org`, `"a@b"@example.org`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeEmail(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidEmail))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmailNormalizer_PreserveLocalCase(t *testing.T) {
	got, err := EmailNormalizer{PreserveLocalCase: true}.Normalize(" Jane.Doe@ACME.com ")
	require.NoError(t, err)
	assert.Equal(t, "Jane.Doe@acme.com", got)

	got, err = EmailNormalizer{}.Normalize(" Jane.Doe@ACME.com ")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@acme.com", got)
}

func TestCleanWebsite(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"http://www.x.com/about", "x.com"},
		{"HTTPS://WWW.Acme.COM", "acme.com"},
		{"acme.com/", "acme.com"},
		{"www.acme.com?utm=1", "acme.com"},
		{"https://shop.acme.com#top", "shop.acme.com"},
		{"jane@Acme.com", "acme.com"},
		{"jane@acme.com?subject=hi", "acme.com"},
		{"", ""},
		{"   ", ""},
		{"https://", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanWebsite(tt.raw))
		})
	}
}

func TestDetectScenario(t *testing.T) {
	kind, err := DetectScenario([]string{"email_1", "email_1_full_name", "website"})
	require.NoError(t, err)
	assert.Equal(t, model.ScenarioMultiEmail, kind)

	kind, err = DetectScenario([]string{"website", "email_3"})
	require.NoError(t, err)
	assert.Equal(t, model.ScenarioMultiEmail, kind)

	kind, err = DetectScenario([]string{"email", "full_name", "website"})
	require.NoError(t, err)
	assert.Equal(t, model.ScenarioSingleEmail, kind)

	_, err = DetectScenario([]string{"name", "value"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScenarioUndetected))
}

func TestHeaders_Sorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Headers(model.Row{"c": "", "a": "", "b": ""}))
}

func TestDefaultFieldMapper(t *testing.T) {
	row := model.Row{
		"Email":       "jane@acme.com",
		"First Name":  " Jane ",
		"Surname":     "Doe",
		"Job-Title":   "CEO",
		"Telephone":   "+1 555 0100",
		"Company URL": "https://acme.com",
		"Unrelated":   "x",
	}
	got := DefaultFieldMapper{}.Map(row)

	assert.Equal(t, "Jane", got[FieldFirstName])
	assert.Equal(t, "Doe", got[FieldLastName])
	assert.Equal(t, "Jane Doe", got[FieldFullName])
	assert.Equal(t, "CEO", got[FieldTitle])
	assert.Equal(t, "+1 555 0100", got[FieldPhone])
	assert.Equal(t, "https://acme.com", got[FieldWebsite])
	assert.NotContains(t, got, "unrelated")
}

func TestDefaultFieldMapper_ExplicitFullNameWins(t *testing.T) {
	got := DefaultFieldMapper{}.Map(model.Row{
		"full_name":  "Dr. Jane Doe",
		"first_name": "Jane",
		"name":       "J. Doe",
	})
	assert.Equal(t, "Dr. Jane Doe", got[FieldFullName])
}

func TestExtractor_MultiEmail(t *testing.T) {
	row := model.Row{
		"email_1":           "A@X.com",
		"email_1_full_name": "Jane Doe",
		"email_1_title":     " CEO ",
		"email_2":           "   ",
		"email_3":           "not-an-email",
		"email_3_full_name": "Ghost",
		"website":           "http://www.x.com/about",
	}
	e := NewExtractor(model.ScenarioMultiEmail)
	assert.Equal(t, 3, e.SlotsPerRow())

	recs, skipped := e.ExtractRow(row)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, skipped)

	r := recs[0]
	assert.Equal(t, "a@x.com", r.Email)
	assert.Equal(t, "Jane Doe", r.FullName)
	assert.Equal(t, "CEO", r.Title)
	assert.Equal(t, "http://www.x.com/about", r.Website)
	assert.Equal(t, "x.com", r.CleanedWebsite)
	assert.Empty(t, r.MXProvider)
	assert.Empty(t, r.OtherDMName)
	assert.Equal(t, row, r.OriginalRow)
}

func TestExtractor_MultiEmail_ThreeSlots(t *testing.T) {
	row := model.Row{
		"email_1":           "a@x.com",
		"email_1_full_name": "A",
		"email_2":           "b@x.com",
		"email_2_full_name": "B",
		"email_2_phone":     "555",
		"email_3":           "c@x.com",
		"website":           "x.com",
	}
	recs, skipped := NewExtractor(model.ScenarioMultiEmail).ExtractRow(row)
	require.Len(t, recs, 3)
	assert.Zero(t, skipped)
	assert.Equal(t, "B", recs[1].FullName)
	assert.Equal(t, "555", recs[1].Phone)
	assert.Empty(t, recs[2].FullName)
}

func TestExtractor_SingleEmail(t *testing.T) {
	row := model.Row{
		"email":     " Jane@Acme.com ",
		"Name":      "Jane Doe",
		"telephone": "555-0100",
		"website":   "https://www.acme.com/team",
	}
	e := NewExtractor(model.ScenarioSingleEmail)
	assert.Equal(t, 1, e.SlotsPerRow())

	rec, err := e.ExtractSlot(row, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "jane@acme.com", rec.Email)
	assert.Equal(t, "Jane Doe", rec.FullName)
	assert.Equal(t, "555-0100", rec.Phone)
	assert.Equal(t, "acme.com", rec.CleanedWebsite)
	assert.Equal(t, row, rec.OriginalRow)
	assert.NotContains(t, rec.OriginalRow, FieldFullName)
}

func TestExtractor_SingleEmail_BlankAndInvalid(t *testing.T) {
	e := NewExtractor(model.ScenarioSingleEmail)

	rec, err := e.ExtractSlot(model.Row{"email": ""}, 1)
	assert.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = e.ExtractSlot(model.Row{"email": "nobody"}, 1)
	assert.True(t, errors.Is(err, ErrInvalidEmail))
	assert.Nil(t, rec)
}

func TestExtractor_CustomMapperAndNormalizer(t *testing.T) {
	mapper := FieldMapperFunc(func(row model.Row) map[string]string {
		return map[string]string{FieldFullName: "Mapped " + row.Get("who")}
	})
	e := NewExtractor(model.ScenarioSingleEmail,
		WithFieldMapper(mapper),
		WithNormalizer(EmailNormalizer{PreserveLocalCase: true}),
	)
	rec, err := e.ExtractSlot(model.Row{"email": "Jane@ACME.com", "who": "Jane"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Jane@acme.com", rec.Email)
	assert.Equal(t, "Mapped Jane", rec.FullName)
}

func TestDeduplicate_FirstWins(t *testing.T) {
	in := []model.ContactRecord{
		{Email: "a@x.com", FullName: "First", Title: "CEO"},
		{Email: "b@y.com", FullName: "Other"},
		{Email: "a@x.com", FullName: "Second", Title: "CTO"},
	}
	out := Deduplicate(in)
	require.Len(t, out, 2)
	assert.Equal(t, "a@x.com", out[0].Email)
	assert.Equal(t, "First", out[0].FullName)
	assert.Equal(t, "CEO", out[0].Title)
	assert.Equal(t, "b@y.com", out[1].Email)
}

func TestDeduplicate_Empty(t *testing.T) {
	assert.Empty(t, Deduplicate(nil))
}

func TestAssignOtherDMNames(t *testing.T) {
	recs := []model.ContactRecord{
		{Email: "a@acme.com", FullName: "Ann", CleanedWebsite: "acme.com"},
		{Email: "b@acme.com", FullName: "Bob", CleanedWebsite: "acme.com"},
		{Email: "c@acme.com", FullName: "Cat", CleanedWebsite: "acme.com"},
		{Email: "solo@beta.io", FullName: "Solo", CleanedWebsite: "beta.io"},
		{Email: "x@none.com", FullName: "NoSite"},
		{Email: "y@none.com", FullName: "NoSite2"},
	}
	AssignOtherDMNames(recs)

	assert.Equal(t, "Bob", recs[0].OtherDMName)
	assert.Equal(t, "Ann", recs[1].OtherDMName)
	assert.Equal(t, "Ann", recs[2].OtherDMName)
	assert.Empty(t, recs[3].OtherDMName)
	assert.Empty(t, recs[4].OtherDMName)
	assert.Empty(t, recs[5].OtherDMName)
}

func TestAssignOtherDMNames_SkipsSameEmail(t *testing.T) {
	recs := []model.ContactRecord{
		{Email: "a@acme.com", FullName: "Ann", CleanedWebsite: "acme.com"},
		{Email: "a@acme.com", FullName: "Ann Again", CleanedWebsite: "acme.com"},
		{Email: "d@acme.com", FullName: "Dan", CleanedWebsite: "acme.com"},
	}
	AssignOtherDMNames(recs)

	assert.Equal(t, "Dan", recs[0].OtherDMName)
	assert.Equal(t, "Dan", recs[1].OtherDMName)
	assert.Equal(t, "Ann", recs[2].OtherDMName)
}

func TestAssignOtherDMNames_FirstMatchEvenWithoutName(t *testing.T) {
	recs := []model.ContactRecord{
		{Email: "a@acme.com", CleanedWebsite: "acme.com"},
		{Email: "b@acme.com", FullName: "Bob", CleanedWebsite: "acme.com"},
		{Email: "c@acme.com", FullName: "Carol", CleanedWebsite: "acme.com"},
	}
	AssignOtherDMNames(recs)

	// The nameless first record still wins for b and c.
	assert.Equal(t, "Bob", recs[0].OtherDMName)
	assert.Equal(t, "", recs[1].OtherDMName)
	assert.Equal(t, "", recs[2].OtherDMName)
}
