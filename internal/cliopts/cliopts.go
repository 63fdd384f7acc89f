// Package cliopts parses the proxy's command line: the flag group before
// the first "--" delimiter, and one language-server command line per
// "--"-delimited group after it.
package cliopts

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"lspwsbridge/internal/serverselect"
)

// Version information, set at build time.
var (
	Name    = "lsp-ws-bridge"
	Version = "dev"
)

// Options is the parsed command line.
type Options struct {
	// Listen is the bind address, already expanded: a bare port number N
	// on the command line becomes "0.0.0.0:N".
	Listen string
	// Sync enables save-to-disk and the /files endpoint.
	Sync bool
	// Remap enables source:// <-> file:// URI remapping.
	Remap bool
	// Config is the JSON config file path, empty when not given.
	Config string
	// Version requests printing the version and exiting.
	Version bool

	// Commands holds one language-server command line per "--"-delimited
	// argv group, in the order given.
	Commands []serverselect.Command
}

// ErrHelp is returned when the user asked for -h/--help; the usage text
// has already been printed and the process should exit 0.
var ErrHelp = pflag.ErrHelp

// Parse splits argv (including the program name at argv[0]) on the "--"
// delimiter and parses the first group as flags. A flag error is returned
// without the usage text; the caller prints it and exits nonzero.
func Parse(argv []string) (*Options, error) {
	groups := splitOnDelimiter(argv)

	opts := &Options{}
	fs := pflag.NewFlagSet(Name, pflag.ContinueOnError)
	fs.Usage = func() { fmt.Print(usage()) }

	fs.StringVarP(&opts.Listen, "listen", "l", "0.0.0.0:9999", "address or port to listen on")
	fs.BoolVarP(&opts.Sync, "sync", "s", false, "write text document to disk on save, and enable the /files endpoint")
	fs.BoolVarP(&opts.Remap, "remap", "r", false, "remap relative uri (source://)")
	fs.StringVarP(&opts.Config, "config", "c", "", "path to json config file")
	fs.BoolVarP(&opts.Version, "version", "v", false, "show version and exit")

	if err := fs.Parse(groups[0][1:]); err != nil {
		return nil, err
	}
	if len(fs.Args()) > 0 {
		return nil, fmt.Errorf("unexpected argument %q before the -- delimiter", fs.Args()[0])
	}

	opts.Listen = expandListen(opts.Listen)

	for _, group := range groups[1:] {
		if len(group) == 0 {
			continue
		}
		opts.Commands = append(opts.Commands, serverselect.Command(group))
	}

	return opts, nil
}

// expandListen turns a bare digit-only port into a full 0.0.0.0 bind
// address; anything else is passed through as host:port.
func expandListen(value string) string {
	if value == "" {
		return value
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return value
		}
	}
	return "0.0.0.0:" + value
}

func splitOnDelimiter(argv []string) [][]string {
	groups := [][]string{{}}
	for _, arg := range argv {
		if arg == "--" {
			groups = append(groups, []string{})
			continue
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], arg)
	}
	return groups
}

func usage() string {
	var b strings.Builder
	b.WriteString(color.CyanString("%s - WebSocket proxy for LSP servers\n\n", Name))
	b.WriteString(`Anything after the option delimiter is used to start the server.
Multiple servers can be registered by separating each with a delimiter,
and using the query parameter ` + "`name`" + ` to specify the command name on
connection. If no query parameter is present, the first one is started.

Usage:
  ` + Name + ` [options] -- <server command> [-- <server command> ...]

Options:
  -l, --listen <addr>   address or port to listen on (default: 0.0.0.0:9999)
  -s, --sync            write text document to disk on save, and enable /files
  -r, --remap           remap relative uri (source://)
  -c, --config <path>   path to json config file
  -v, --version         show version and exit
  -h, --help            show this help and exit

Examples:
  ` + Name + ` -- rust-analyzer
  ` + Name + ` -- typescript-language-server --stdio
  ` + Name + ` --listen 8888 -- rust-analyzer
  ` + Name + ` --listen 0.0.0.0:8888 -- rust-analyzer
  # Register multiple servers.
  # Choose the server with query parameter ` + "`name`" + ` when connecting.
  ` + Name + ` --listen 9999 --sync --remap \
    -- typescript-language-server --stdio \
    -- css-languageserver --stdio \
    -- html-languageserver --stdio
  # Use json config and choose the server with query parameter ` + "`name`" + `.
  ` + Name + ` --listen 9999 --sync --remap -c config.json
`)
	return b.String()
}
