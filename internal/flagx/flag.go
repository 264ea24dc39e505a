// Package flagx lets several config loaders share os.Args without tripping
// over each other's flags.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the subset of args made of allowedFlags and their
// values, in the original order.
//
// Both "-c conf.json" and "-c=conf.json" forms are recognised. A token that
// starts with '-' is never consumed as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// lookupString parses only the given aliases out of os.Args and returns the
// last value seen, or "" when none is present.
func lookupString(set string, aliases ...string) string {
	var value string

	args := FilterArgs(os.Args[1:], prefixed(aliases))

	fs := flag.NewFlagSet(set, flag.ContinueOnError)
	fs.SetOutput(discard{})
	for _, a := range aliases {
		fs.StringVar(&value, a, "", "")
	}
	_ = fs.Parse(args)

	return value
}

func prefixed(names []string) []string {
	out := make([]string, 0, len(names)*2)
	for _, n := range names {
		out = append(out, "-"+n, "--"+n)
	}
	return out
}

// ConfigFileFlag returns the JSON config path given via -c or -config.
func ConfigFileFlag() string {
	return lookupString("json", "c", "config")
}

// EnvFileFlag returns the dotenv path given via -env, or "" to fall back to
// ".env" in the working directory.
func EnvFileFlag() string {
	return lookupString("env", "env")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
