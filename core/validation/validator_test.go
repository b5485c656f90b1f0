package validation

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) (*Validator, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	v, err := NewValidator(log.New(&buf, "", 0))
	require.NoError(t, err)
	return v, &buf
}

func TestAllSchemasCompile(t *testing.T) {
	v, _ := newValidator(t)
	assert.Contains(t, v.Schemas(), "record_add")
	assert.Contains(t, v.Schemas(), "signature_verify")
	assert.Len(t, v.Schemas(), 20)
}

func TestValidateValidPayloads(t *testing.T) {
	v, _ := newValidator(t)
	cases := map[string]string{
		"record_add":      `{"patientId":"P1","doctorId":"D1","hospitalId":"H1","recordType":"lab_report","title":"CBC","data":{"hb":13.2}}`,
		"asha_register":   `{"name":"Sita","phone":"9876543210","village":"Rampur","district":"Varanasi"}`,
		"asha_otp_verify": `{"workerId":"ASHA-1","code":"123456"}`,
		"claim_submit":    `{"policyNumber":"POL1","patientId":"P1","hospitalId":"H1","amount":1500.5,"diagnosis":"fracture"}`,
		"audit_flag":      `{"txId":"0123456789abcdef0123456789abcdef","reason":"odd","severity":"high"}`,
	}
	for schema, doc := range cases {
		assert.NoError(t, v.Validate(schema, []byte(doc)), schema)
	}
}

func TestValidateReportsFieldsWithoutValues(t *testing.T) {
	v, audit := newValidator(t)
	err := v.Validate("asha_register", []byte(`{"name":"Sita","phone":"98765-SECRET","village":"Rampur"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	var verr *Error
	require.True(t, errors.As(err, &verr))
	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["phone"])
	assert.True(t, fields["(root)"], "missing district is reported on the root")
	assert.NotContains(t, audit.String(), "SECRET")
	assert.Contains(t, audit.String(), "asha_register | phone")
}

func TestValidateRejectsBadValues(t *testing.T) {
	v, _ := newValidator(t)
	bad := map[string]string{
		"claim_submit":    `{"policyNumber":"POL1","patientId":"P1","hospitalId":"H1","amount":0,"diagnosis":"x"}`,
		"record_feedback": `{"rating":6}`,
		"record_add":      `{"patientId":"P1","doctorId":"D1","hospitalId":"H1","recordType":"horoscope","title":"x"}`,
		"qr_generate":     `{"patientId":"P1","issuerOrg":"../etc"}`,
	}
	for schema, doc := range bad {
		assert.True(t, errors.Is(v.Validate(schema, []byte(doc)), ErrInvalid), schema)
	}
}

func TestValidateMalformedAndUnknown(t *testing.T) {
	v, _ := newValidator(t)
	assert.True(t, errors.Is(v.Validate("record_add", []byte("{")), ErrInvalid))
	assert.True(t, errors.Is(v.Validate("nope", []byte("{}")), ErrUnknownSchema))
}

func TestOpenAuditLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "validation_audit.log")
	logger, closer, err := OpenAuditLog(path)
	require.NoError(t, err)
	logger.Printf("record_add | title | required")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[AUDIT]")
	assert.Contains(t, string(data), "record_add | title")
}
