package main

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRuntimeFromParameterFile(t *testing.T) {
	runFlags.paramsFile = "../../params/adult.json"
	defer func() { runFlags.paramsFile = "" }()

	rt, err := buildRuntime(log.New(io.Discard, "", 0))
	require.NoError(t, err)
	assert.Equal(t, 0.01, rt.StepSize())
}

func TestBuildRuntimeRejectsMissingParameterFile(t *testing.T) {
	runFlags.paramsFile = "no_such_patient.json"
	defer func() { runFlags.paramsFile = "" }()

	_, err := buildRuntime(log.New(io.Discard, "", 0))
	require.Error(t, err)
}

func TestBuildEvaluatorDefaultLimits(t *testing.T) {
	e, err := buildEvaluator()
	require.NoError(t, err)
	assert.Zero(t, e.ActiveCount())
}
