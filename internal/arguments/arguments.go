// Package arguments turns the declarative argument definition document into
// command-line flags.
package arguments

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/auto-dns/container-deployer/internal/domain"
	"github.com/auto-dns/container-deployer/internal/loader"
	"github.com/auto-dns/container-deployer/internal/util"
)

const (
	ActionStoreTrue  = "store_true"
	ActionStoreFalse = "store_false"
)

// Definition is one entry of the argument document, keyed by flag spelling.
type Definition struct {
	Arg    string `json:"arg" yaml:"arg"`
	Help   string `json:"help" yaml:"help"`
	Action string `json:"action" yaml:"action"`
}

// Flag is a Definition resolved to pflag names.
type Flag struct {
	Name      string
	Shorthand string
	Usage     string
	// Default is true for store_false flags, which read false once given.
	Default bool
}

// Load reads and validates the argument document at path. Any failure is
// returned as a *domain.ArgumentsError.
func Load(path string) ([]Flag, error) {
	defs, err := loader.Load[map[string]Definition](path)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			err = cfgErr.Err
		}
		return nil, domain.NewArgumentsError(path, err)
	}
	if len(defs) == 0 {
		return nil, domain.NewArgumentsError(path, errors.New("no arguments defined"))
	}

	flags := make([]Flag, 0, len(defs))
	for _, key := range util.SortedKeys(defs) {
		f, err := resolve(key, defs[key])
		if err != nil {
			return nil, domain.NewArgumentsError(path, err)
		}
		flags = append(flags, f)
	}
	return flags, nil
}

func resolve(key string, def Definition) (Flag, error) {
	f := Flag{Usage: def.Help}
	for _, spelling := range []string{key, def.Arg} {
		switch {
		case strings.HasPrefix(spelling, "--") && len(spelling) > 2:
			if f.Name == "" {
				f.Name = strings.TrimPrefix(spelling, "--")
			}
		case strings.HasPrefix(spelling, "-") && len(spelling) == 2:
			if f.Shorthand == "" {
				f.Shorthand = spelling[1:]
			}
		case spelling == "":
		default:
			return Flag{}, fmt.Errorf("argument %s: invalid flag %q", key, spelling)
		}
	}
	if f.Name == "" {
		return Flag{}, fmt.Errorf("argument %s: no long flag name", key)
	}

	switch def.Action {
	case ActionStoreTrue:
		f.Default = false
	case ActionStoreFalse:
		f.Default = true
	default:
		return Flag{}, fmt.Errorf("argument %s: unsupported action %q", key, def.Action)
	}
	return f, nil
}

// Register adds flags to fs as booleans.
func Register(fs *pflag.FlagSet, flags []Flag) error {
	for _, f := range flags {
		if fs.Lookup(f.Name) != nil {
			return fmt.Errorf("flag --%s is already defined", f.Name)
		}
		if f.Shorthand != "" && fs.ShorthandLookup(f.Shorthand) != nil {
			return fmt.Errorf("flag -%s is already defined", f.Shorthand)
		}
		if !f.Default {
			fs.BoolP(f.Name, f.Shorthand, false, f.Usage)
			continue
		}
		value := storeFalseValue(true)
		flag := fs.VarPF(&value, f.Name, f.Shorthand, f.Usage)
		flag.NoOptDefVal = "true"
	}
	return nil
}

// storeFalseValue is a boolean flag that starts true and stores the negation
// of what it is given, so a bare --flag reads false.
type storeFalseValue bool

func (v *storeFalseValue) Set(s string) error {
	given, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*v = storeFalseValue(!given)
	return nil
}

func (v *storeFalseValue) String() string { return strconv.FormatBool(bool(*v)) }

func (v *storeFalseValue) Type() string { return "bool" }

// Phases returns the phases whose flags are set in fs. Phase flags absent
// from the argument document are treated as off.
func Phases(fs *pflag.FlagSet) (domain.Phases, error) {
	phases := domain.NewPhases()
	for _, p := range domain.PhaseOrder {
		if fs.Lookup(string(p)) == nil {
			continue
		}
		on, err := fs.GetBool(string(p))
		if err != nil {
			return nil, fmt.Errorf("flag --%s: %w", p, err)
		}
		if on {
			phases[p] = true
		}
	}
	return phases, nil
}
