package filing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlManifest = `
caseFormId: 42
formCode: i-130
mode: submit
formSchema:
  parts:
    - name: Part 1
      sections:
        - name: Identity
          fields:
            - path: applicant.name
              required: true
  critical:
    - signature.*
formData:
  applicant.name: Ana Morales
credentials:
  username: portal-user
  password: portal-pass
`

func TestLoadYAMLManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlManifest), 0o644))

	job, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 42, job.CaseFormID)
	assert.Equal(t, "i-130", job.FormCode)
	assert.Equal(t, ModeSubmit, job.EffectiveMode())
	assert.Equal(t, "Ana Morales", job.FormData["applicant.name"])
	require.NotNil(t, job.Credentials)
	assert.Equal(t, "portal-user", job.Credentials.Username)
	assert.True(t, job.Schema.NonSkippable("applicant.name"))
}

func TestLoadJSONManifest(t *testing.T) {
	body := `{
		"caseFormId": 7,
		"formCode": "ds-160",
		"mode": "status",
		"formData": {"a": "1"},
		"credentials": {"username": "u", "password": "p"}
	}`
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	job, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeStatus, job.Mode)
	require.NotNil(t, job.Credentials)
	assert.Equal(t, "p", job.Credentials.Password)
}

func TestLoadRejectsBadManifests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"missing form code", "caseFormId: 1\n"},
		{"zero case form id", "formCode: x\n"},
		{"bad mode", "caseFormId: 1\nformCode: x\nmode: teleport\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "job.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "not found")
}

func TestCredentialsNeverMarshalToJSON(t *testing.T) {
	job := &Job{
		CaseFormID:  1,
		FormCode:    "x",
		Credentials: &Credentials{Username: "u", Password: "hunter2"},
	}

	out, err := json.Marshal(job)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
	assert.NotContains(t, string(out), "password")
}
