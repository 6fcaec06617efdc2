package importer

import "strings"

// Canonical field names used in a column mapping.
const (
	FieldBusinessName = "business_name"
	FieldAddress      = "address"
	FieldCity         = "city"
	FieldState        = "state"
	FieldPhone        = "phone"
	FieldWebsite      = "website"
	FieldOwnerName    = "owner_name"
	FieldOwnerEmail   = "owner_email"
)

// headerSynonyms maps canonical fields to the header names commonly seen
// in exported lead lists. Matching is case-insensitive with surrounding
// whitespace ignored.
var headerSynonyms = map[string][]string{
	FieldBusinessName: {"business_name", "business name", "company", "company_name", "company name", "name", "business"},
	FieldAddress:      {"address", "street", "street_address", "street address", "address1", "address 1"},
	FieldCity:         {"city", "town"},
	FieldState:        {"state", "province", "region", "st"},
	FieldPhone:        {"phone", "phone_number", "phone number", "telephone", "tel", "mobile"},
	FieldWebsite:      {"website", "url", "web", "site", "domain", "homepage"},
	FieldOwnerName:    {"owner_name", "owner name", "owner", "contact", "contact_name", "contact name", "principal"},
	FieldOwnerEmail:   {"owner_email", "owner email", "email", "e-mail", "email_address", "email address", "contact_email"},
}

// Mapping associates canonical fields with column indexes in the input.
type Mapping map[string]int

// DetectFormat inspects a header row and returns the column mapping. Any
// canonical field without a matching header is simply absent from the
// mapping; detection never fails.
func DetectFormat(header []string) Mapping {
	mapping := make(Mapping)

	for idx, raw := range header {
		h := strings.ToLower(strings.TrimSpace(raw))
		if h == "" {
			continue
		}
		for field, synonyms := range headerSynonyms {
			if _, taken := mapping[field]; taken {
				continue
			}
			for _, syn := range synonyms {
				if h == syn {
					mapping[field] = idx
					break
				}
			}
		}
	}

	return mapping
}

// value returns the mapped cell for a canonical field, or "" when the
// field is unmapped or the row is short.
func (m Mapping) value(row []string, field string) string {
	idx, ok := m[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
