package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeString(t *testing.T) {
	assert.Equal(t, "FileStarted", FileStarted.String())
	assert.Equal(t, "BatchCompleted", BatchCompleted.String())
	assert.Equal(t, "Unknown", Type(0).String())
	assert.Equal(t, "Unknown", Type(999).String())
}
