// Copyright 2025 R5 Labs
// This file is part of the R5 Core library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

// devp2p provides low-level peer-to-peer connectivity utilities, among
// them the DNS discovery tree publisher/consumer commands.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var app = cli.NewApp()

func init() {
	app.Name = "devp2p"
	app.Usage = "DNS discovery tooling"
	app.Commands = []*cli.Command{
		dnsCommand,
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
