package model

// Canonical field names targeted by both adapters. Adapter output and the
// sync-configuration mapping are keyed by these.
const (
	FieldName        = "name"
	FieldAddress     = "address"
	FieldCity        = "city"
	FieldState       = "state"
	FieldPostalCode  = "postal_code"
	FieldPhone       = "phone"
	FieldEmail       = "email"
	FieldWebsite     = "website"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldHours       = "hours"
	FieldDescription = "description"
	FieldServices    = "services"
	FieldAccessMode  = "access_mode"
)

// CanonicalField describes one mappable pantry attribute.
type CanonicalField struct {
	Key      string `yaml:"key"`
	Required bool   `yaml:"required"`
}

// FieldRegistry is an indexed, ordered collection of canonical fields.
type FieldRegistry struct {
	Fields   []CanonicalField
	byKey    map[string]*CanonicalField
	required []*CanonicalField
}

// NewFieldRegistry creates a FieldRegistry with indexed lookups.
func NewFieldRegistry(fields []CanonicalField) *FieldRegistry {
	r := &FieldRegistry{
		Fields: fields,
		byKey:  make(map[string]*CanonicalField, len(fields)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		r.byKey[f.Key] = f
		if f.Required {
			r.required = append(r.required, f)
		}
	}
	return r
}

// ByKey returns the field for the given key, or nil if not found.
func (r *FieldRegistry) ByKey(key string) *CanonicalField {
	return r.byKey[key]
}

// Required returns the required fields in declaration order.
func (r *FieldRegistry) Required() []*CanonicalField {
	return r.required
}

// DefaultRegistry returns the canonical pantry field set. Required here means
// required in a remote-list mapping: a sync configuration must bind these to
// real source columns before any record is created.
func DefaultRegistry() *FieldRegistry {
	return NewFieldRegistry([]CanonicalField{
		{Key: FieldName, Required: true},
		{Key: FieldAddress, Required: true},
		{Key: FieldCity, Required: true},
		{Key: FieldState, Required: true},
		{Key: FieldPostalCode, Required: true},
		{Key: FieldPhone},
		{Key: FieldEmail},
		{Key: FieldWebsite},
		{Key: FieldLatitude},
		{Key: FieldLongitude},
		{Key: FieldHours},
		{Key: FieldDescription},
		{Key: FieldServices},
		{Key: FieldAccessMode},
	})
}

// RawCandidate is one unvalidated field bag produced by a source adapter,
// keyed by canonical field name. Position is the 1-based row or item number
// in the source, used in rejection reports.
type RawCandidate struct {
	Position int
	Fields   map[string]string
}

// Get returns the candidate's value for a canonical field ("" when absent).
func (c *RawCandidate) Get(field string) string {
	if c.Fields == nil {
		return ""
	}
	return c.Fields[field]
}

// Set stores a value, dropping empty strings so absence stays uniform.
func (c *RawCandidate) Set(field, value string) {
	if value == "" {
		return
	}
	if c.Fields == nil {
		c.Fields = make(map[string]string)
	}
	c.Fields[field] = value
}
