package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/keystore-wallet/agent"
)

func TestVanityOptions(t *testing.T) {
	flags := pflag.NewFlagSet("vanity", pflag.ContinueOnError)
	flags.StringP("starts-with", "s", "", "")
	flags.StringP("ends-with", "e", "", "")

	assert.NoError(t, flags.Parse([]string{"-s", "dead"}))
	assert.Equal(t, agent.VanityOptions{StartsWith: "dead"}, vanityOptions(flags))

	assert.NoError(t, flags.Parse([]string{"--ends-with", "beef"}))
	assert.Equal(t, agent.VanityOptions{StartsWith: "dead", EndsWith: "beef"}, vanityOptions(flags))
}

func TestCommandsRegistered(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"new", "import", "vanity", "decrypt", "address", "list", "remove"} {
		assert.Contains(t, names, want)
	}
}

func TestCommandsReturnErrors(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		assert.NotNil(t, c.RunE, c.Name())
		assert.Nil(t, c.Run, c.Name())
	}
	assert.True(t, rootCmd.SilenceUsage)
	assert.True(t, rootCmd.SilenceErrors)
}
