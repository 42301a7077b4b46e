package rag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplySchema_Validate(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantErr      bool
		instancePath string
		message      string
	}{
		{"valid", `{"response":"Welcome!","suggested":["Book tickets","Later"]}`, false, "", ""},
		{"extra properties allowed", `{"response":"Hi","suggested":[],"mood":"happy"}`, false, "", ""},
		{"surrounding whitespace", "  {\"response\":\"Hi\",\"suggested\":[]}\n", false, "", ""},
		{"missing suggested", `{"response":"Hi"}`, true, "", "suggested"},
		{"wrong type", `{"response":5,"suggested":[]}`, true, "/response", "string"},
		{"suggested items", `{"response":"Hi","suggested":[1]}`, true, "/suggested/0", "string"},
		{"not json", `Sure! Here you go`, true, "", "invalid JSON"},
		{"trailing data", `{"response":"Hi","suggested":[]} extra`, true, "", "invalid JSON"},
		{"empty", ``, true, "", "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ReplySchema.Validate([]byte(tt.input))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var serr *SchemaError
			require.True(t, errors.As(err, &serr), "expected *SchemaError, got %v", err)
			assert.Equal(t, tt.instancePath, serr.InstancePath)
			assert.Contains(t, serr.Message, tt.message)
		})
	}
}

func TestReplySchema_String(t *testing.T) {
	raw := ReplySchema.String()
	assert.Contains(t, raw, `"response"`)
	assert.Contains(t, raw, `"suggested"`)
	assert.Contains(t, raw, `"required"`)
	assert.NotContains(t, raw, `"additionalProperties": false`)
}

func TestSchemaError_Error(t *testing.T) {
	assert.Equal(t, "boom", (&SchemaError{Message: "boom"}).Error())
	assert.Equal(t, "/response: boom", (&SchemaError{Message: "boom", InstancePath: "/response"}).Error())
}
