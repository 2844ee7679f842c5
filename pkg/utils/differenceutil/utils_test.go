package differenceutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDifferenceAndIntersectionStrings(t *testing.T) {
	onlySrc, both, onlyDes := DifferenceAndIntersectionStrings(
		[]string{"LC01", "DH01", "PCS01", "DH01"},
		[]string{"BMS01", "DH01", "LC01"},
	)
	assert.Equal(t, []string{"PCS01"}, onlySrc)
	assert.Equal(t, []string{"DH01", "LC01"}, both)
	assert.Equal(t, []string{"BMS01"}, onlyDes)

	onlySrc, both, onlyDes = DifferenceAndIntersectionStrings(nil, nil)
	assert.Empty(t, onlySrc)
	assert.Empty(t, both)
	assert.Empty(t, onlyDes)
}
