// Package commands_test provides tests for CLI command creation.
package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrainCommand(t *testing.T) {
	cmd := NewTrainCommand()

	assert.Equal(t, "train", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{
		"modelling-strategy", "model-name", "joint-tasks", "pretrain-tasks",
		"finetune-tasks", "single-task", "num-random-seeds", "name-suffix",
		"use-existing-models", "shrink-test-set",
		"lr", "weight-decay", "batch-size", "max-epochs",
		"metric-to-monitor", "metric-direction", "train-mode",
		"pretrain-lr", "pretrain-weight-decay", "pretrain-batch-size",
		"pretrain-max-epochs", "pretrain-metric-to-monitor",
		"pretrain-metric-direction", "pretrain-train-mode",
		"patience", "save-top-k",
	}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestTrainFlagDefaults(t *testing.T) {
	cmd := NewTrainCommand()

	assert.Equal(t, "1e-05", cmd.Flags().Lookup("lr").DefValue)
	assert.Equal(t, "96", cmd.Flags().Lookup("batch-size").DefValue)
	assert.Equal(t, "50", cmd.Flags().Lookup("max-epochs").DefValue)
	assert.Equal(t, "min_size", cmd.Flags().Lookup("train-mode").DefValue)
	assert.Equal(t, "1", cmd.Flags().Lookup("num-random-seeds").DefValue)
	assert.Equal(t, "5", cmd.Flags().Lookup("patience").DefValue)
	assert.Equal(t, "1", cmd.Flags().Lookup("save-top-k").DefValue)
	assert.Equal(t, "overall_val_loss", cmd.Flags().Lookup("pretrain-metric-to-monitor").DefValue)
}

func TestNewEvaluateCommand(t *testing.T) {
	cmd := NewEvaluateCommand()

	assert.Equal(t, "evaluate", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("modelling-strategy"))
	assert.NotNil(t, cmd.Flags().Lookup("num-random-seeds"))
}

func TestTasksCommandOutput(t *testing.T) {
	cmd := NewTasksCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	require.NoError(t, cmd.Execute())

	out := buf.String()
	for _, name := range []string{"FluorescenceData", "Malinois_MPRA", "RNASeq", "SuRE_regression"} {
		assert.Contains(t, out, name)
	}
}

func TestBackbonesCommandOutput(t *testing.T) {
	cmd := NewBackbonesCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "MTLucifer (default)")
	assert.Contains(t, out, "MotifBasedFCN")
}

func TestNewRunsCommand(t *testing.T) {
	cmd := NewRunsCommand()

	assert.Equal(t, "runs", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("limit"))
}

func TestNewSummaryCommand(t *testing.T) {
	cmd := NewSummaryCommand()

	assert.Equal(t, "summary [name]", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("watch"))
}

func TestSplitTasks(t *testing.T) {
	assert.Nil(t, splitTasks(""))
	assert.Equal(t, []string{"LL100"}, splitTasks("LL100"))
	assert.Equal(t, []string{"LL100", "CCLE"}, splitTasks("LL100, CCLE"))
}
