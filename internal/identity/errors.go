package identity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownAlias matches every *UnknownAliasError.
	ErrUnknownAlias = errors.New("unknown alias")
	// ErrAmbiguousAlias matches every *AmbiguousAliasError.
	ErrAmbiguousAlias = errors.New("ambiguous alias")
	// ErrUnparsableTimestamp is returned when a kickoff cannot be read.
	ErrUnparsableTimestamp = errors.New("unparsable timestamp")
)

// Dimensions of the alias tables.
const (
	DimensionTeam   = "team"
	DimensionLeague = "league"
)

// UnknownAliasError reports a raw name that has no entry in its table. The
// record carrying it cannot be given an identity.
type UnknownAliasError struct {
	Dimension string
	Alias     string
}

func (e *UnknownAliasError) Error() string {
	return fmt.Sprintf("identity: unknown %s alias %q", e.Dimension, e.Alias)
}

func (e *UnknownAliasError) Is(target error) bool {
	return target == ErrUnknownAlias
}

// AmbiguousAliasError reports an alias that maps to more than one canonical
// name. It is a configuration error and must stop the process from starting.
type AmbiguousAliasError struct {
	Dimension  string
	Alias      string
	Canonicals []string
}

func (e *AmbiguousAliasError) Error() string {
	return fmt.Sprintf("identity: %s alias %q maps to several canonicals: %s",
		e.Dimension, e.Alias, strings.Join(e.Canonicals, ", "))
}

func (e *AmbiguousAliasError) Is(target error) bool {
	return target == ErrAmbiguousAlias
}
