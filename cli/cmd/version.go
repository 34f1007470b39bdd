package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatframe/mex/pkg"
)

// Version prints the module version.
type Version struct{}

// Run executes the version command.
func (Version) Run(_ context.Context) error {
	fmt.Printf("%s %s\n", pkg.Name, strings.TrimSpace(pkg.Version))

	return nil
}
