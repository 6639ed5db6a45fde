package identity

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed aliases.toml
var defaultAliases string

// aliasFile is the on-disk shape: canonical name -> list of aliases.
type aliasFile struct {
	Teams   map[string][]string `toml:"teams"`
	Leagues map[string][]string `toml:"leagues"`
}

// LoadResolver reads an alias file and validates both tables. An empty path
// selects the embedded defaults.
func LoadResolver(path string) (*Resolver, error) {
	if path == "" {
		return ParseResolver(defaultAliases)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read alias file %s: %w", path, err)
	}
	return ParseResolver(string(data))
}

// ParseResolver builds a Resolver from TOML alias-file content.
func ParseResolver(content string) (*Resolver, error) {
	var f aliasFile
	if _, err := toml.Decode(content, &f); err != nil {
		return nil, fmt.Errorf("identity: decode alias file: %w", err)
	}
	teams, err := FromCanonicalGroups(DimensionTeam, f.Teams)
	if err != nil {
		return nil, err
	}
	leagues, err := FromCanonicalGroups(DimensionLeague, f.Leagues)
	if err != nil {
		return nil, err
	}
	return NewResolver(teams, leagues), nil
}
