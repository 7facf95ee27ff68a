package sweep

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// SidecarSuffix replaces the ".csv" extension of a result table to name its
// metadata file.
const SidecarSuffix = ".meta.yaml"

// Metadata describes a sweep. It is written next to the result table so the
// CSV itself stays a plain grid of numbers.
type Metadata struct {
	SweepID     string    `yaml:"sweep_id"`
	Created     time.Time `yaml:"created"`
	MinBackends int       `yaml:"min_backends"`
	MaxBackends int       `yaml:"max_backends"`
	Iterations  int       `yaml:"iterations"`
	Mode        string    `yaml:"mode"`
	Trace       string    `yaml:"trace"`
	Reference   string    `yaml:"reference,omitempty"`
	Experiments int       `yaml:"experiments"`
}

// NewMetadata stamps a fresh sweep id and creation time.
func NewMetadata(minBackends, maxBackends, iterations int) *Metadata {
	return &Metadata{
		SweepID:     uuid.NewString(),
		Created:     time.Now().UTC().Truncate(time.Second),
		MinBackends: minBackends,
		MaxBackends: maxBackends,
		Iterations:  iterations,
	}
}

// SidecarPath names the metadata file for a result table.
func SidecarPath(tablePath string) string {
	return strings.TrimSuffix(tablePath, ".csv") + SidecarSuffix
}

// WriteMetadata writes m as YAML to path.
func WriteMetadata(path string, m *Metadata) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding sweep metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing sweep metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads a sidecar written by WriteMetadata. Unknown keys are
// rejected.
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sweep metadata: %w", err)
	}
	var m Metadata
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing sweep metadata: %w", err)
	}
	return &m, nil
}
