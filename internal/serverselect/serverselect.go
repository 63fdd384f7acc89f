// Package serverselect picks which language-server command line to spawn
// for a connection, given the registry built at startup and the client's
// optional `name` query parameter.
package serverselect

import "fmt"

// Command is an argv: a non-empty ordered sequence of strings, argv[0]
// being the executable.
type Command []string

// Name returns argv[0], the command's own name in the startup list.
func (c Command) Name() string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

// NoServer is returned when no name was given and the registry has nothing
// to fall back to.
type NoServer struct{}

func (NoServer) Error() string { return "serverselect: no server configured" }

// UnknownServer is returned when StrictName is set and name matches
// nothing in the registry.
type UnknownServer struct{ Name string }

func (e UnknownServer) Error() string {
	return fmt.Sprintf("serverselect: unknown server %q", e.Name)
}

// Registry is the server selection table built once at startup: a named
// registry (from the config file's "servers" map) plus an ordered startup
// list (from the CLI's `--`-delimited command groups). It is read-only
// after construction.
type Registry struct {
	// Named maps a server name to its command line. Takes priority over
	// Startup when both provide an entry for the same name.
	Named map[string]Command
	// Startup is the ordered list of command lines given on argv. Its
	// first element is used when no name is requested.
	Startup []Command
	// StrictName, when true, fails connections whose requested name
	// matches nothing instead of falling back to the first startup command.
	StrictName bool
}

// Select implements the algorithm of the server selector: exact named-
// registry match, then startup-list argv[0] match, then strict failure or
// warn-and-fallback. usedFallback reports whether the returned command is
// the unnamed fallback (so the caller can log the warning with connection
// context) rather than an exact match.
func (r *Registry) Select(name string) (cmd Command, usedFallback bool, err error) {
	if name == "" {
		if first, ok := r.firstStartup(); ok {
			return first, false, nil
		}
		return nil, false, NoServer{}
	}

	if c, ok := r.Named[name]; ok {
		return c, false, nil
	}

	for _, c := range r.Startup {
		if c.Name() == name {
			return c, false, nil
		}
	}

	if r.StrictName {
		return nil, false, UnknownServer{Name: name}
	}

	first, ok := r.firstStartup()
	if !ok {
		return nil, false, NoServer{}
	}
	return first, true, nil
}

func (r *Registry) firstStartup() (Command, bool) {
	if len(r.Startup) == 0 {
		return nil, false
	}
	return r.Startup[0], true
}
