package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a Context from a YAML file:
//
//	lookups:
//	  user_id: "42"
//	server_filters:
//	  things:
//	    filter_op: AND
//	    filters:
//	      - {name: owner, operator: "=", value: "{user_id}"}
func Load(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a Context from YAML.
func Parse(data []byte) (*Context, error) {
	var c Context
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return &c, nil
}
