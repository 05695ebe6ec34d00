package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	payload := []byte(`{
		"service": "payments",
		"file_path": "src/Billing.java",
		"line": 42,
		"error_type": "NullPointerException",
		"message": "billing profile was null",
		"stack_trace": "at com.acme.Billing.charge(Billing.java:42)",
		"issue_key": "PAY-101"
	}`)

	event, err := DecodeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "payments", event.Service)
	assert.Equal(t, "src/Billing.java", event.FilePath)
	assert.Equal(t, 42, event.Line)
	assert.Equal(t, "NullPointerException", event.ErrorType)
	assert.Equal(t, "PAY-101", event.IssueKey)
	assert.Equal(t, "PAY-101", event.ResolvedIssueKey())
}

func TestDecodeEventAliases(t *testing.T) {
	payload := []byte(`{
		"app": "checkout",
		"file": "cart.py",
		"line": 7,
		"type": "KeyError",
		"message": "missing sku",
		"stacktrace": "Traceback..."
	}`)

	event, err := DecodeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "checkout", event.Service)
	assert.Equal(t, "cart.py", event.FilePath)
	assert.Equal(t, "KeyError", event.ErrorType)
	assert.Equal(t, "Traceback...", event.StackTrace)
}

func TestDecodeEventCanonicalFieldsWin(t *testing.T) {
	payload := []byte(`{
		"service": "payments",
		"app": "legacy-name",
		"error_type": "IOException",
		"type": "other",
		"message": "disk full"
	}`)

	event, err := DecodeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "payments", event.Service)
	assert.Equal(t, "IOException", event.ErrorType)
}

func TestDecodeEventInvalid(t *testing.T) {
	for name, payload := range map[string]string{
		"malformed json":  `{"service": `,
		"missing service": `{"error_type": "X", "message": "m"}`,
		"missing type":    `{"service": "s", "message": "m"}`,
		"missing message": `{"service": "s", "error_type": "X"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestDecodeEventCompositeKey(t *testing.T) {
	payload := []byte(`{
		"service": "payments",
		"file_path": "src/Billing.java",
		"line": 42,
		"error_type": "NullPointerException",
		"message": "boom"
	}`)

	event, err := DecodeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "payments:src/Billing.java:42:NullPointerException", event.ResolvedIssueKey())
}
