package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTBISeverity(t *testing.T) {
	tests := []struct {
		label    string
		expected TBISeverity
	}{
		{"", TBINone},
		{"none", TBINone},
		{"no head injury", TBINone},
		{"mild", TBIMild},
		{"mIld", TBIMild},
		{"  mild ", TBIMild},
		{"mild TBI", TBIMild},
		{"Moderate", TBIModerate},
		{"moderate traumatic brain injury", TBIModerate},
		{"Severe TBI", TBISevere},
		{"SEVERE", TBISevere},
		{"moderate to severe", TBISevere},
		{"1", TBIMild},
		{" 2 ", TBIModerate},
		{"3", TBISevere},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseTBISeverity(tt.label))
		})
	}
}

func TestTBISeverityStringRoundTrip(t *testing.T) {
	for _, s := range []TBISeverity{TBINone, TBIMild, TBIModerate, TBISevere} {
		assert.Equal(t, s, ParseTBISeverity(s.String()))
	}
}
