package config

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"sheetpipe/internal/failure"
)

// ServiceAccount is the Google service-account key document, one field per variable.
type ServiceAccount struct {
	Type                    string `env:"TYPE,required,notEmpty" json:"type"`
	ProjectID               string `env:"PROJECT_ID,required,notEmpty" json:"project_id"`
	PrivateKeyID            string `env:"PRIVATE_KEY_ID,required,notEmpty" json:"private_key_id"`
	PrivateKey              string `env:"PRIVATE_KEY,required,notEmpty" json:"private_key"`
	ClientEmail             string `env:"CLIENT_EMAIL,required,notEmpty" json:"client_email"`
	ClientID                string `env:"CLIENT_ID,required,notEmpty" json:"client_id"`
	AuthURI                 string `env:"AUTH_URI,required,notEmpty" json:"auth_uri"`
	TokenURI                string `env:"TOKEN_URI,required,notEmpty" json:"token_uri"`
	AuthProviderX509CertURL string `env:"AUTH_PROVIDER_X509_CERT_URL,required,notEmpty" json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `env:"CLIENT_X509_CERT_URL,required,notEmpty" json:"client_x509_cert_url"`
}

// JSON renders the key document. Escaped "\n" sequences in the private key
// become real newlines, since Lambda env values are single-line.
func (s ServiceAccount) JSON() ([]byte, error) {
	doc := s
	doc.PrivateKey = strings.ReplaceAll(s.PrivateKey, `\n`, "\n")
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, failure.New(failure.KindConfig, "encode service account", err)
	}
	return b, nil
}

// ExporterConfig configures the sheet-to-S3 function.
type ExporterConfig struct {
	Common
	ServiceAccount ServiceAccount

	SpreadsheetName string `env:"SPREADSHEET_NAME,required,notEmpty"`
	Bucket          string `env:"EXPORT_BUCKET,required,notEmpty"`
	Key             string `env:"EXPORT_KEY,required,notEmpty"`
	ParquetKey      string `env:"EXPORT_PARQUET_KEY"`
	ScratchDir      string `env:"SCRATCH_DIR" envDefault:"/tmp"`
	ScratchFile     string `env:"SCRATCH_FILE" envDefault:"output.csv"`
}

// Exporter parses and validates the exporter configuration.
func Exporter(envs ...string) (*ExporterConfig, error) {
	c, err := parse[ExporterConfig](envs...)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ExporterConfig) Validate() error {
	if c.ScratchFile != filepath.Base(c.ScratchFile) || c.ScratchFile == "." {
		return failure.Newf(failure.KindConfig, "validate", "SCRATCH_FILE must be a file name, got %q", c.ScratchFile)
	}
	if strings.HasPrefix(c.Key, "/") {
		return failure.Newf(failure.KindConfig, "validate", "EXPORT_KEY must not start with '/'")
	}
	if c.ParquetKey != "" && c.ParquetKey == c.Key {
		return failure.Newf(failure.KindConfig, "validate", "EXPORT_PARQUET_KEY must differ from EXPORT_KEY")
	}
	return nil
}

// ScratchPath is where the CSV is staged before upload.
func (c *ExporterConfig) ScratchPath() string {
	return filepath.Join(c.ScratchDir, c.ScratchFile)
}
