// accessctl validates an access policy and reports what a role can reach.
//
//	accessctl --role supervisor
//	accessctl --policy ./policy.csv --role cleaner --check feature=finance.widget
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/cleanops/cleanops/cmd/accessctl/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts cli.Options
	flagSet := pflag.NewFlagSet("accessctl", pflag.ContinueOnError)
	flagSet.StringVar(&opts.PolicyPath, "policy", "", "policy CSV (default: embedded policy)")
	flagSet.StringVar(&opts.CatalogPath, "catalog", "", "catalog YAML (default: embedded catalog)")
	flagSet.StringVarP(&opts.Role, "role", "r", "", "role to inspect")
	flagSet.StringVar(&opts.Check, "check", "", "evaluate one query for --role: permission=m.a, feature=key, route=/path or roles=a|b")
	flagSet.BoolVar(&opts.JSONOutput, "json", false, "print JSON")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return cli.ExitOK
		}
		fmt.Fprintf(os.Stderr, "accessctl: %v\n", err)
		return cli.ExitInvalid
	}
	if flagSet.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "accessctl: unexpected argument %q\n", flagSet.Arg(0))
		return cli.ExitInvalid
	}
	return cli.Run(opts)
}
