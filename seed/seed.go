/*
Package seed holds the demo chart of accounts shipped with the server.

PURPOSE:
  The chart lives in chart.yaml so finance people can edit it without
  touching Go. This package embeds the file, parses it and flattens the
  parent/child nesting into creation order.

SEE ALSO:
  - api/seed.go: loads the parsed chart into a running ledger
*/
package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed chart.yaml
var ChartYAML []byte

// ChartAccount is one node of the YAML chart. Children inherit the
// parent's type.
type ChartAccount struct {
	Code     string         `yaml:"code"`
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Children []ChartAccount `yaml:"children"`
}

type chartFile struct {
	Accounts []ChartAccount `yaml:"accounts"`
}

// FlatAccount is a chart node flattened for creation: parents always
// precede their children.
type FlatAccount struct {
	Code       string
	Name       string
	Type       string
	ParentCode string
}

// ParseChart parses YAML chart data and flattens it into creation order.
func ParseChart(data []byte) ([]FlatAccount, error) {
	var file chartFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse chart: %w", err)
	}

	var flat []FlatAccount
	var walk func(nodes []ChartAccount, parentCode, parentType string) error
	walk = func(nodes []ChartAccount, parentCode, parentType string) error {
		for _, n := range nodes {
			typ := n.Type
			if typ == "" {
				typ = parentType
			}
			if typ == "" {
				return fmt.Errorf("account %q: no type and no parent type", n.Code)
			}
			flat = append(flat, FlatAccount{
				Code:       n.Code,
				Name:       n.Name,
				Type:       typ,
				ParentCode: parentCode,
			})
			if err := walk(n.Children, n.Code, typ); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(file.Accounts, "", ""); err != nil {
		return nil, err
	}
	return flat, nil
}

// DefaultChart parses the embedded chart.yaml.
func DefaultChart() ([]FlatAccount, error) {
	return ParseChart(ChartYAML)
}
