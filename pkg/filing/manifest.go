package filing

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a filing job manifest from the given path.
//
// The file format is determined by extension: .yaml/.yml for YAML,
// .json for JSON. If the extension is unrecognized, YAML is attempted
// first, then JSON.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a filing job manifest from raw
// bytes. The path parameter is only used for format detection and error
// messages.
func LoadFromBytes(data []byte, path string) (*Job, error) {
	if len(data) == 0 {
		return nil, errors.New("manifest file is empty")
	}

	var job Job
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &job); err != nil {
			return nil, fmt.Errorf("invalid YAML manifest: %w", err)
		}
	case ".json":
		if err := unmarshalJSONManifest(data, &job); err != nil {
			return nil, fmt.Errorf("invalid JSON manifest: %w", err)
		}
	default:
		if yerr := yaml.Unmarshal(data, &job); yerr != nil {
			if jerr := unmarshalJSONManifest(data, &job); jerr != nil {
				return nil, fmt.Errorf("manifest is neither valid YAML (%v) nor JSON (%v)", yerr, jerr)
			}
		}
	}

	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &job, nil
}

// manifestJSON mirrors Job for JSON manifests. Job itself excludes
// credentials from JSON on purpose (API payload safety), but a local
// manifest file is an explicitly operator-provided input, so the wrapper
// accepts them.
type manifestJSON struct {
	CaseFormID int            `json:"caseFormId"`
	FormCode   string         `json:"formCode"`
	Schema     FormSchema     `json:"formSchema"`
	FormData   map[string]any `json:"formData"`
	Mode       string         `json:"mode"`
	Creds      *struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"credentials"`
}

func unmarshalJSONManifest(data []byte, job *Job) error {
	var m manifestJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	job.CaseFormID = m.CaseFormID
	job.FormCode = m.FormCode
	job.Schema = m.Schema
	job.FormData = m.FormData
	job.Mode = m.Mode
	if m.Creds != nil {
		job.Credentials = &Credentials{Username: m.Creds.Username, Password: m.Creds.Password}
	}
	return nil
}
