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

package main

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nodedisc/dnstree/crypto"
	"github.com/nodedisc/dnstree/p2p/dnsdisc"
	"github.com/nodedisc/dnstree/p2p/enr"
)

var enrB64 = base64.RawURLEncoding

const (
	rootTTL               = 60          // seconds; short because the root changes on republication
	treeNodeTTLCloudflare = 86400 * 365 // max TTL CloudFlare permits on a record
	treeNodeTTLRoute53    = 86400 * 365
)

var (
	dnsDomainFlag = &cli.StringFlag{
		Name:     "domain",
		Usage:    "Domain name the tree is published under",
		Required: true,
	}
	dnsSeqFlag = &cli.UintFlag{
		Name:  "seq",
		Usage: "Sequence number of the tree to publish",
		Value: 1,
	}
	dnsKeyFlag = &cli.StringFlag{
		Name:     "key",
		Usage:    "File containing the hex-encoded signing key",
		Required: true,
	}
	dnsLinksFlag = &cli.StringFlag{
		Name:  "links",
		Usage: "File with one enrtree:// link URL per line",
	}
	dnsTimeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Timeout for DNS lookups",
		Value: 5 * time.Second,
	}
)

var dnsCommand = &cli.Command{
	Name:  "dns",
	Usage: "DNS discovery tree commands",
	Subcommands: []*cli.Command{
		dnsSignCommand,
		dnsSyncCommand,
		dnsToCloudflareCommand,
		dnsToRoute53Command,
	},
}

var dnsSignCommand = &cli.Command{
	Name:      "sign",
	Usage:     "Build and sign a DNS discovery tree from a set of ENR records",
	ArgsUsage: "<enr-file> [<enr-file>...]",
	Flags:     []cli.Flag{dnsDomainFlag, dnsSeqFlag, dnsKeyFlag, dnsLinksFlag},
	Action:    dnsSign,
}

var dnsSyncCommand = &cli.Command{
	Name:      "sync",
	Usage:     "Resolve a DNS discovery tree and print the node records found",
	ArgsUsage: "<enrtree:// url>",
	Flags:     []cli.Flag{dnsTimeoutFlag},
	Action:    dnsSync,
}

// dnsSign performs dnsSignCommand: it loads one ENR per line from each
// input file, any link URLs from -links, builds and signs the tree,
// and writes its TXT records as JSON to stdout.
func dnsSign(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return fmt.Errorf("need at least one ENR file as argument")
	}
	priv, err := loadSigningKey(ctx.String(dnsKeyFlag.Name))
	if err != nil {
		return err
	}
	var records []*enr.Record
	for _, path := range ctx.Args().Slice() {
		recs, err := loadENRFile(path)
		if err != nil {
			return err
		}
		records = append(records, recs...)
	}
	var links []dnsdisc.LinkEntry
	if path := ctx.String(dnsLinksFlag.Name); path != "" {
		links, err = loadLinksFile(path)
		if err != nil {
			return err
		}
	}

	tree, err := dnsdisc.MakeTree(uint32(ctx.Uint(dnsSeqFlag.Name)), records, links)
	if err != nil {
		return fmt.Errorf("building tree: %w", err)
	}
	if err := tree.Sign(priv); err != nil {
		return fmt.Errorf("signing tree: %w", err)
	}
	domain := ctx.String(dnsDomainFlag.Name)
	txt, err := tree.ToTXT(domain)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, tree.LinkURL(domain, &priv.PublicKey))
	return writeTXTJSON(os.Stdout, txt)
}

// dnsSync performs dnsSyncCommand.
func dnsSync(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("need exactly one enrtree:// URL as argument")
	}
	cfg := dnsdisc.Config{LookupTimeout: ctx.Duration(dnsTimeoutFlag.Name)}
	client := dnsdisc.NewClient(cfg)

	timeout := ctx.Duration(dnsTimeoutFlag.Name)
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	nodes, err := client.SyncTree(c, ctx.Args().First())
	if err != nil && len(nodes) == 0 {
		return err
	}
	for _, n := range nodes {
		enc, err := json.Marshal(n)
		if err != nil {
			return err
		}
		fmt.Println(string(enc))
	}
	return nil
}

// loadSigningKey reads a hex-encoded private key from path.
func loadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	priv, err := crypto.HexToECDSA(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return priv, nil
}

func loadENRFile(path string) ([]*enr.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []*enr.Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "enr:")
		payload, err := enrB64.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid enr line %q: %w", path, line, err)
		}
		rec, err := enr.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

func loadLinksFile(path string) ([]dnsdisc.LinkEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []dnsdisc.LinkEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		link, err := dnsdisc.ParseLink(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, link)
	}
	return out, sc.Err()
}

func writeTXTJSON(w *os.File, txt map[string]string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(txt)
}

func readTXTJSON(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var txt map[string]string
	if err := json.Unmarshal(data, &txt); err != nil {
		return nil, err
	}
	return txt, nil
}

