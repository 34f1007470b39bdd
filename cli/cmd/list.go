package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/sahilm/fuzzy"

	"github.com/chatframe/mex/macro"
)

// List enumerates registered macros for inspection.
type List struct {
	Filter string `help:"Fuzzy-filter macros by name"        short:"q"`
	Format string `help:"Output format"                      short:"o" default:"text" enum:"text,yaml"`
	All    bool   `help:"Include hidden aliases in listings"`
}

// listEntry is the presentational record for one definition.
type listEntry struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases,omitempty"`
	Category    string   `yaml:"category,omitempty"`
	MinArgs     int      `yaml:"min_args"`
	MaxArgs     int      `yaml:"max_args"`
	Strict      bool     `yaml:"strict,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Example     string   `yaml:"example,omitempty"`
}

// Run executes the list command.
func (l *List) Run(_ context.Context) error {
	sess, err := newSession("")
	if err != nil {
		return err
	}

	defs := sess.reg.List(nil)
	entries := make([]listEntry, 0, len(defs))

	for _, def := range defs {
		aliases := make([]string, 0, len(def.Aliases))

		for _, alias := range def.Aliases {
			if alias.Hidden && !l.All {
				continue
			}

			aliases = append(aliases, alias.Name)
		}

		entries = append(entries, listEntry{
			Name:        def.Name,
			Aliases:     aliases,
			Category:    string(def.Category),
			MinArgs:     def.MinArgs(),
			MaxArgs:     def.MaxArgs(),
			Strict:      def.StrictArgs,
			Description: def.Description,
			Example:     def.ExampleUsage,
		})
	}

	entries = filterEntries(entries, l.Filter)

	if l.Format == "yaml" {
		out, err := yaml.Marshal(entries)
		if err != nil {
			return macro.WrapError(err)
		}

		_, err = os.Stdout.Write(out)

		return err
	}

	for _, entry := range entries {
		name := entry.Name
		if len(entry.Aliases) > 0 {
			name += " (" + strings.Join(entry.Aliases, ", ") + ")"
		}

		fmt.Printf("%-28s %s\n", name, entry.Description)
	}

	return nil
}

// filterEntries fuzzy-matches entries by name, keeping match order.
func filterEntries(entries []listEntry, pattern string) []listEntry {
	if pattern == "" {
		return entries
	}

	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name
	}

	matches := fuzzy.Find(pattern, names)

	filtered := make([]listEntry, 0, len(matches))
	for _, m := range matches {
		filtered = append(filtered, entries[m.Index])
	}

	return filtered
}
