package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldName(t *testing.T) {
	assert.Equal(t, "benoit lefevre", foldName("Benoît", "Lefèvre"))
	assert.Equal(t, "gaelle nunez", foldName("Gaëlle", "Nuñez"))
	assert.Equal(t, "jean pierre martin", foldName("  Jean  Pierre ", "MARTIN"))
	assert.Equal(t, "", foldName(""))
}
