package util

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGenerationCode(t *testing.T) {
	code := NewGenerationCode()

	assert.Len(t, code, 36)
	assert.Equal(t, strings.ToUpper(code), code)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12}$`), code)

	assert.NotEqual(t, code, NewGenerationCode())
}

func TestFormatControlNumber(t *testing.T) {
	tests := []struct {
		name          string
		docType       string
		establishment string
		pointOfSale   string
		sequence      int64
		want          string
	}{
		{
			name:          "standard codes",
			docType:       "01",
			establishment: "M001",
			pointOfSale:   "P001",
			sequence:      1,
			want:          "DTE-01-M001P001-000000000000001",
		},
		{
			name:          "short codes are left-padded",
			docType:       "03",
			establishment: "M1",
			pointOfSale:   "P1",
			sequence:      42,
			want:          "DTE-03-00M100P1-000000000000042",
		},
		{
			name:          "long codes are truncated to four",
			docType:       "01",
			establishment: "M00001",
			pointOfSale:   "P00001",
			sequence:      7,
			want:          "DTE-01-M000P000-000000000000007",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatControlNumber(tt.docType, tt.establishment, tt.pointOfSale, tt.sequence)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 31)
		})
	}
}
