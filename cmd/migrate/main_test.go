package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandSubcommands(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"up", "down", "status", "tables"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("database-url"))
}
