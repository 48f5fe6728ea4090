package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCommandRequiresRequestText(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"run"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
}

func TestPersistentFlagsHaveDefaults(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	require.Equal(t, "codepilot.yaml", flag.DefValue)

	flag = rootCmd.PersistentFlags().Lookup("session")
	require.NotNil(t, flag)
	require.Equal(t, "default", flag.DefValue)
}
