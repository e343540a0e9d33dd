package contact

import (
	"fmt"
	"strings"

	"github.com/sells-group/contact-mx/internal/model"
)

// Extractor builds ContactRecords from rows of a single scenario.
type Extractor struct {
	kind       model.ScenarioKind
	mapper     FieldMapper
	normalizer EmailNormalizer
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithFieldMapper replaces the single-email column mapper.
func WithFieldMapper(m FieldMapper) ExtractorOption {
	return func(e *Extractor) {
		e.mapper = m
	}
}

// WithNormalizer replaces the email normalizer.
func WithNormalizer(n EmailNormalizer) ExtractorOption {
	return func(e *Extractor) {
		e.normalizer = n
	}
}

// NewExtractor creates an Extractor for kind.
func NewExtractor(kind model.ScenarioKind, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		kind:   kind,
		mapper: DefaultFieldMapper{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SlotsPerRow is the number of email slots inspected per row; each slot
// counts once toward extraction progress.
func (e *Extractor) SlotsPerRow() int {
	if e.kind == model.ScenarioMultiEmail {
		return MaxEmailSlots
	}
	return 1
}

// ExtractSlot builds the record for one slot (1-based). It returns nil with
// no error for a blank slot, and ErrInvalidEmail when the value cannot be
// normalized.
func (e *Extractor) ExtractSlot(row model.Row, slot int) (*model.ContactRecord, error) {
	switch e.kind {
	case model.ScenarioMultiEmail:
		raw := row.Get(slotColumn(slot))
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		return e.build(raw, row, slotPrefix(slot), row)
	default:
		raw := row.Get("email")
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		fields := row.Clone()
		for k, v := range e.mapper.Map(row) {
			fields[k] = v
		}
		return e.build(raw, fields, "", row)
	}
}

// ExtractRow returns every record found in row and the number of slots
// skipped because their email was invalid.
func (e *Extractor) ExtractRow(row model.Row) ([]model.ContactRecord, int) {
	var out []model.ContactRecord
	skipped := 0
	for slot := 1; slot <= e.SlotsPerRow(); slot++ {
		rec, err := e.ExtractSlot(row, slot)
		if err != nil {
			skipped++
			continue
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, skipped
}

func (e *Extractor) build(rawEmail string, fields model.Row, prefix string, original model.Row) (*model.ContactRecord, error) {
	email, err := e.normalizer.Normalize(rawEmail)
	if err != nil {
		return nil, err
	}
	website := fields.Get(FieldWebsite)
	return &model.ContactRecord{
		Email:          email,
		FullName:       strings.TrimSpace(fields.Get(prefix + FieldFullName)),
		FirstName:      strings.TrimSpace(fields.Get(prefix + FieldFirstName)),
		LastName:       strings.TrimSpace(fields.Get(prefix + FieldLastName)),
		Title:          strings.TrimSpace(fields.Get(prefix + FieldTitle)),
		Phone:          strings.TrimSpace(fields.Get(prefix + FieldPhone)),
		Website:        website,
		CleanedWebsite: CleanWebsite(website),
		OriginalRow:    original,
	}, nil
}

func slotColumn(n int) string {
	return fmt.Sprintf("email_%d", n)
}

func slotPrefix(n int) string {
	return fmt.Sprintf("email_%d_", n)
}
