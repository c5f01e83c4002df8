package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const draftFileName = "draft.yaml"

// Draft holds the values typed into the wizard that have not been saved
// yet. It plays the part of a browser form between invocations.
type Draft struct {
	SessionID     string          `yaml:"sessionId,omitempty"`
	PersonalInfo  PersonalDraft   `yaml:"personalInfo"`
	Credentials   CredentialDraft `yaml:"credentials"`
	TermsAccepted bool            `yaml:"termsAccepted,omitempty"`
}

type PersonalDraft struct {
	FullName    string   `yaml:"fullName,omitempty"`
	Email       string   `yaml:"email,omitempty"`
	PhoneNumber string   `yaml:"phoneNumber,omitempty"`
	Attach      []string `yaml:"attach,omitempty"`
	Remove      []string `yaml:"remove,omitempty"`
}

type CredentialDraft struct {
	Skills []string `yaml:"skills,omitempty"`
	Attach []string `yaml:"attach,omitempty"`
	Remove []string `yaml:"remove,omitempty"`
}

// addUnique appends values not already present, keeping order.
func addUnique(list []string, values ...string) []string {
	for _, v := range values {
		if v != "" && !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}

func removeAll(list []string, values ...string) []string {
	return slices.DeleteFunc(list, func(s string) bool {
		return slices.Contains(values, s)
	})
}

type draftStore struct {
	fs   afero.Fs
	path string
}

func newDraftStore(fs afero.Fs, dir string) *draftStore {
	return &draftStore{fs: fs, path: filepath.Join(dir, draftFileName)}
}

func (s *draftStore) Load() (*Draft, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Draft{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}

	var d Draft
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse draft %s: %w", s.path, err)
	}
	return &d, nil
}

func (s *draftStore) Save(d *Draft) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	return nil
}
