package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "talhyve", cmd.Use)
}

func TestRoot_Subcommands(t *testing.T) {
	cmd := Root()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Contains(t, names, "create")
	assert.Contains(t, names, "scale")
	assert.Contains(t, names, "destroy")
	assert.Contains(t, names, "version")
	assert.Contains(t, names, "completion")
}
