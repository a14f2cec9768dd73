package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScale_Subcommands(t *testing.T) {
	cmd := Scale()

	require.NotNil(t, cmd)
	assert.Equal(t, "scale", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "add")
	assert.Contains(t, names, "remove")
}

func TestScaleAdd_RejectsUnknownRole(t *testing.T) {
	cmd := scaleAdd()

	cmd.SetArgs([]string{"gateway"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway")
}

func TestScaleAdd_ValidArgs(t *testing.T) {
	cmd := scaleAdd()

	assert.ElementsMatch(t, []string{"control-plane", "worker"}, cmd.ValidArgs)
	require.NotNil(t, cmd.Flags().Lookup("config"))
}

func TestScaleRemove_Flags(t *testing.T) {
	cmd := scaleRemove()

	assert.NotNil(t, cmd.RunE)
	require.NotNil(t, cmd.Flags().Lookup("config"))
	require.NotNil(t, cmd.Flags().Lookup("force"))
}
