package util

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewGenerationCode returns a fresh DTE generation code. The authority
// requires uppercase UUID format; the code stays with the document across
// resubmission cycles.
func NewGenerationCode() string {
	return strings.ToUpper(uuid.NewString())
}

// FormatControlNumber builds the authority's control number layout:
// DTE-<type>-<establishment><point of sale>-<15-digit sequence>.
func FormatControlNumber(docType, establishment, pointOfSale string, sequence int64) string {
	return fmt.Sprintf("DTE-%s-%s%s-%015d",
		docType,
		padCode(establishment),
		padCode(pointOfSale),
		sequence,
	)
}

// padCode left-pads establishment and point-of-sale codes to 4 characters.
func padCode(code string) string {
	if len(code) >= 4 {
		return code[:4]
	}
	return strings.Repeat("0", 4-len(code)) + code
}
