package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanErrorFormatting(t *testing.T) {
	err := NewScanError(CodeScanFailed, "scan failed")
	assert.Equal(t, "[SCAN_FAILED] scan failed", err.Error())

	withTarget := NewScanErrorWithTarget(CodeTimeout, "scan timed out", "8.8.8.8")
	assert.Equal(t, "[TIMEOUT] scan timed out (target: 8.8.8.8)", withTarget.Error())
}

func TestScanErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := WrapScanError(CodeScanFailed, "scan failed", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))
}

func TestScanErrorContext(t *testing.T) {
	err := NewScanError(CodeScanFailed, "scan failed").
		WithContext("port", 80).
		WithContext("protocol", "tcp")

	assert.Equal(t, 80, err.Context["port"])
	assert.Equal(t, "tcp", err.Context["protocol"])
}

func TestExecErrorFormatting(t *testing.T) {
	err := NewExecError(CodeExecutionFailed, "invocation failed").
		WithCommand("nmap -p 80 8.8.8.8")
	assert.Equal(t, "[EXECUTION_FAILED] invocation failed (command: nmap -p 80 8.8.8.8)", err.Error())
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewConfigFieldError(CodeValidation, "invalid value", "ports", "0")
	assert.Equal(t, "[VALIDATION] invalid value (field: ports)", err.Error())
	assert.Equal(t, "0", err.Value)
}

func TestIsCodeAndGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"scan error", NewScanError(CodeScanFailed, "x"), CodeScanFailed},
		{"exec error", NewExecError(CodeToolNotFound, "x"), CodeToolNotFound},
		{"config error", NewConfigError(CodeConfiguration, "x"), CodeConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsCode(tt.err, tt.code))
			assert.False(t, IsCode(tt.err, CodeUnknown))
			assert.Equal(t, tt.code, GetCode(tt.err))
		})
	}

	plain := fmt.Errorf("plain error")
	assert.False(t, IsCode(plain, CodeScanFailed))
	assert.Equal(t, CodeUnknown, GetCode(plain))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewScanError(CodeTimeout, "x")))
	assert.True(t, IsRetryable(NewExecError(CodeExecutionFailed, "x")))
	assert.False(t, IsRetryable(NewExecError(CodeToolNotFound, "x")))
	assert.False(t, IsRetryable(NewConfigError(CodeValidation, "x")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(NewExecError(CodeToolNotFound, "x")))
	assert.True(t, IsFatal(NewConfigError(CodeConfiguration, "x")))
	assert.True(t, IsFatal(NewConfigError(CodeFilePermission, "x")))
	assert.False(t, IsFatal(NewScanError(CodeTimeout, "x")))
}

func TestCommonConstructors(t *testing.T) {
	invalid := ErrInvalidTarget("bad host")
	assert.Equal(t, CodeTargetInvalid, invalid.Code)
	assert.Equal(t, "bad host", invalid.Target)

	timeout := ErrScanTimeout("8.8.8.8")
	assert.Equal(t, CodeTimeout, timeout.Code)

	notFound := ErrToolNotFound()
	assert.Equal(t, CodeToolNotFound, notFound.Code)
	assert.Contains(t, notFound.Message, "nmap")

	execTimeout := ErrExecTimeout("nmap --traceroute 8.8.8.8")
	assert.Equal(t, CodeTimeout, execTimeout.Code)
	assert.Equal(t, "nmap --traceroute 8.8.8.8", execTimeout.Command)

	missing := ErrConfigMissing("scan.ports")
	require.Equal(t, CodeConfiguration, missing.Code)
	assert.Equal(t, "scan.ports", missing.Field)
}
