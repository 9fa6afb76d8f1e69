package pattern

import (
	"strings"

	"github.com/spidersync/ledgerlink/internal/model"
)

// Bank descriptions that carry labeled fields prefix them with the ACH
// posting kind; the prefix is noise for extraction.
var achPrefixes = []string{
	"ACH CREDIT RECEIVED - ",
	"ACH DEBIT RECEIVED - ",
}

// fieldLabels are the literal tags the fallback scanner recognizes. Every
// label acts as a boundary for the preceding label's value even when it maps
// to no identity field.
var fieldLabels = []string{
	"Cust ID:",
	"Desc:",
	"Comp Name:",
	"Comp ID:",
	"Batch Discr:",
	"SEC:",
	"Cust Name:",
	"Date:",
	"Time:",
	"Addenda:",
}

var labelFields = map[string]string{
	"Cust ID:":   model.FieldCustomerID,
	"Comp Name:": model.FieldCompanyName,
	"Comp ID:":   model.FieldCompanyID,
	"Cust Name:": model.FieldCustomerName,
}

// scanLabeledFields is the generic fallback extractor: it locates labeled
// fields by their literal tags and bounds each value by the nearest following
// label. Returns false when neither a company nor a customer identity was
// found.
func scanLabeledFields(desc string) (model.ExtractedIdentity, bool) {
	for _, prefix := range achPrefixes {
		if strings.HasPrefix(desc, prefix) {
			desc = desc[len(prefix):]
			break
		}
	}

	var identity model.ExtractedIdentity

	// Sub-account references appear inline rather than labeled with a colon;
	// cut the suffix off first so it cannot leak into another field's value.
	if before, after, found := strings.Cut(desc, " SUB ACCT "); found {
		identity.SubAccount = strings.TrimSpace(after)
		desc = before
	}

	for _, label := range fieldLabels {
		field, mapped := labelFields[label]
		if !mapped {
			continue
		}

		start := strings.Index(desc, label)
		if start == -1 {
			continue
		}
		valueStart := start + len(label)

		// The value ends where the next label begins.
		valueEnd := len(desc)
		for _, next := range fieldLabels {
			if next == label {
				continue
			}
			if pos := strings.Index(desc[valueStart:], next); pos != -1 && valueStart+pos < valueEnd {
				valueEnd = valueStart + pos
			}
		}

		if value := strings.TrimSpace(desc[valueStart:valueEnd]); value != "" {
			setField(&identity, field, value)
		}
	}

	return identity, identity.HasIdentity()
}
