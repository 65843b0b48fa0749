package loader

import (
	"fmt"

	"aadhaar/internal/core"
)

// DateLayout is the day-month-year format used by every input file.
const DateLayout = "2-1-2006"

const (
	ColumnDate  = "date"
	ColumnState = "state"
)

// Schema describes the files and columns of one category.
type Schema struct {
	Category core.Category
	Pattern  string
	Counters []string
}

var schemas = map[core.Category]Schema{
	core.Enrolment: {
		Category: core.Enrolment,
		Pattern:  "api_data_aadhar_enrolment_*.csv",
		Counters: []string{"age_0_5", "age_5_17", "age_18_greater"},
	},
	core.Demographic: {
		Category: core.Demographic,
		Pattern:  "api_data_aadhar_demographic_*.csv",
		Counters: []string{"demo_age_5_17", "demo_age_17_"},
	},
	core.Biometric: {
		Category: core.Biometric,
		Pattern:  "api_data_aadhar_biometric_*.csv",
		Counters: []string{"bio_age_5_17", "bio_age_17_"},
	},
}

// SchemaFor returns the schema of a category.
func SchemaFor(c core.Category) (Schema, error) {
	s, ok := schemas[c]
	if !ok {
		return Schema{}, fmt.Errorf("unknown category %q", c)
	}
	return s, nil
}

// Required returns every column a file of this category must carry.
func (s Schema) Required() []string {
	return append([]string{ColumnDate, ColumnState}, s.Counters...)
}
