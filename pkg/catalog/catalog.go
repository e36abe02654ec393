// Package catalog loads the YAML catalog of policies, policy versions, check
// definitions and subscriptions, and imports it into the store. The catalog
// is the only way rows the engine does not own get into a fresh database.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/warden/pkg/compliance"
)

// Catalog is the parsed catalog file.
type Catalog struct {
	Policies []PolicyEntry `yaml:"policies"`
	Checks   []CheckEntry  `yaml:"checks"`

	// dir resolves relative content_file paths.
	dir string
}

// PolicyEntry declares a policy with its versions and subscribers.
type PolicyEntry struct {
	ID                string         `yaml:"id"`
	Name              string         `yaml:"name"`
	PolicyType        string         `yaml:"policy_type"`
	MonitoringEnabled *bool          `yaml:"monitoring_enabled"` // Default: true
	DocumentRef       string         `yaml:"document_ref"`
	Versions          []VersionEntry `yaml:"versions"`
	Subscribers       []string       `yaml:"subscribers"`
}

// VersionEntry is one policy version. Exactly one of Content and
// ContentFile is set; ContentFile is relative to the catalog file.
type VersionEntry struct {
	ID          string    `yaml:"id"`
	CreatedAt   time.Time `yaml:"created_at"`
	Content     string    `yaml:"content"`
	ContentFile string    `yaml:"content_file"`
}

// CheckEntry declares a check definition. Criteria is any YAML value and is
// stored as JSON.
type CheckEntry struct {
	ID         string    `yaml:"id"`
	Name       string    `yaml:"name"`
	Type       string    `yaml:"type"` // Default: automated
	PolicyType string    `yaml:"policy_type"`
	Active     *bool     `yaml:"active"` // Default: true
	Severity   string    `yaml:"severity"`
	Criteria   yaml.Node `yaml:"criteria"`
}

// Load reads and parses the catalog at path. It does not validate.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	c, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// Parse parses catalog YAML. Relative content_file paths resolve against
// the working directory.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return &c, nil
}

// Validate checks the catalog structure and returns a *ValidationError
// naming every problem. Unknown check names are not an error here: they are
// recorded as error results when evaluated.
func (c *Catalog) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	policyIDs := make(map[string]bool)
	versionIDs := make(map[string]bool)
	for i, p := range c.Policies {
		where := fmt.Sprintf("policies[%d]", i)
		if p.ID == "" {
			addf("%s: id is required", where)
		} else if policyIDs[p.ID] {
			addf("%s: duplicate policy id %q", where, p.ID)
		}
		policyIDs[p.ID] = true
		if p.PolicyType == "" {
			addf("%s: policy_type is required", where)
		}

		for j, v := range p.Versions {
			vwhere := fmt.Sprintf("%s.versions[%d]", where, j)
			if v.ID == "" {
				addf("%s: id is required", vwhere)
			} else if versionIDs[v.ID] {
				addf("%s: duplicate version id %q", vwhere, v.ID)
			}
			versionIDs[v.ID] = true
			if (v.Content == "") == (v.ContentFile == "") {
				addf("%s: exactly one of content and content_file is required", vwhere)
			}
			if v.CreatedAt.IsZero() {
				addf("%s: created_at is required", vwhere)
			}
		}

		for j, user := range p.Subscribers {
			if user == "" {
				addf("%s.subscribers[%d]: user id is empty", where, j)
			}
		}
	}

	checkIDs := make(map[string]bool)
	for i, ch := range c.Checks {
		where := fmt.Sprintf("checks[%d]", i)
		if ch.ID == "" {
			addf("%s: id is required", where)
		} else if checkIDs[ch.ID] {
			addf("%s: duplicate check id %q", where, ch.ID)
		}
		checkIDs[ch.ID] = true
		if ch.Name == "" {
			addf("%s: name is required", where)
		}
		if ch.PolicyType == "" {
			addf("%s: policy_type is required", where)
		}
		switch compliance.CheckType(ch.Type) {
		case "", compliance.CheckAutomated, compliance.CheckManual:
		default:
			addf("%s: unknown type %q (want automated or manual)", where, ch.Type)
		}
		if _, err := ch.criteriaJSON(); err != nil {
			addf("%s: criteria: %v", where, err)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Policy converts the entry to the stored row.
func (p *PolicyEntry) Policy() *compliance.Policy {
	enabled := true
	if p.MonitoringEnabled != nil {
		enabled = *p.MonitoringEnabled
	}
	return &compliance.Policy{
		ID:                 p.ID,
		Name:               p.Name,
		PolicyType:         p.PolicyType,
		MonitoringEnabled:  enabled,
		CurrentDocumentRef: p.DocumentRef,
	}
}

// version converts the entry to the stored row, reading ContentFile
// relative to dir.
func (v *VersionEntry) version(policyID, dir string) (*compliance.PolicyVersion, error) {
	content := v.Content
	if v.ContentFile != "" {
		path := v.ContentFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read content of version %s: %w", v.ID, err)
		}
		content = string(data)
	}
	return &compliance.PolicyVersion{
		ID:        v.ID,
		PolicyID:  policyID,
		Content:   content,
		CreatedAt: v.CreatedAt,
	}, nil
}

// Definition converts the entry to the stored row.
func (ch *CheckEntry) Definition() (*compliance.CheckDefinition, error) {
	criteria, err := ch.criteriaJSON()
	if err != nil {
		return nil, err
	}
	checkType := compliance.CheckType(ch.Type)
	if checkType == "" {
		checkType = compliance.CheckAutomated
	}
	active := true
	if ch.Active != nil {
		active = *ch.Active
	}
	return &compliance.CheckDefinition{
		ID:            ch.ID,
		CheckName:     ch.Name,
		CheckType:     checkType,
		CheckCriteria: criteria,
		IsActive:      active,
		PolicyType:    ch.PolicyType,
		Severity:      ch.Severity,
	}, nil
}

// criteriaJSON re-encodes the criteria node as JSON. An absent or null node
// yields nil.
func (ch *CheckEntry) criteriaJSON() (json.RawMessage, error) {
	if ch.Criteria.Kind == 0 || ch.Criteria.ShortTag() == "!!null" {
		return nil, nil
	}
	var v any
	if err := ch.Criteria.Decode(&v); err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
