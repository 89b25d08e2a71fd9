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
	"context"
	"fmt"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"github.com/urfave/cli/v2"

	"github.com/nodedisc/dnstree/log"
)

var (
	cloudflareTokenFlag = &cli.StringFlag{
		Name:    "token",
		Usage:   "CloudFlare API token",
		EnvVars: []string{"CLOUDFLARE_API_TOKEN"},
	}
	cloudflareZoneIDFlag = &cli.StringFlag{
		Name:  "zoneid",
		Usage: "CloudFlare Zone ID (optional, looked up by domain name otherwise)",
	}
)

var dnsToCloudflareCommand = &cli.Command{
	Name:      "to-cloudflare",
	Usage:     "Deploy a signed tree's TXT records to CloudFlare DNS",
	ArgsUsage: "<domain> <txt.json>",
	Flags:     []cli.Flag{cloudflareTokenFlag, cloudflareZoneIDFlag},
	Action:    dnsToCloudflare,
}

func dnsToCloudflare(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return fmt.Errorf("need domain and txt.json file as arguments")
	}
	domain, file := ctx.Args().Get(0), ctx.Args().Get(1)
	records, err := readTXTJSON(file)
	if err != nil {
		return err
	}
	c := newCloudflareClient(ctx)
	return c.deploy(domain, records)
}

type cloudflareClient struct {
	*cloudflare.API
	zoneID string
}

// newCloudflareClient sets up a CloudFlare API client from command line flags.
func newCloudflareClient(ctx *cli.Context) *cloudflareClient {
	token := ctx.String(cloudflareTokenFlag.Name)
	if token == "" {
		exit(fmt.Errorf("need cloudflare API token to proceed"))
	}
	api, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		exit(fmt.Errorf("can't create Cloudflare client: %v", err))
	}
	return &cloudflareClient{
		API:    api,
		zoneID: ctx.String(cloudflareZoneIDFlag.Name),
	}
}

// deploy uploads the given TXT records to CloudFlare DNS under name.
func (c *cloudflareClient) deploy(name string, records map[string]string) error {
	if err := c.checkZone(name); err != nil {
		return err
	}
	return c.uploadRecords(name, records)
}

// checkZone verifies permissions on the CloudFlare DNS Zone for name.
func (c *cloudflareClient) checkZone(name string) error {
	if c.zoneID == "" {
		log.Info(fmt.Sprintf("Finding CloudFlare zone ID for %s", name))
		id, err := c.ZoneIDByName(name)
		if err != nil {
			return err
		}
		c.zoneID = id
	}
	log.Info(fmt.Sprintf("Checking permissions on zone %s", c.zoneID))
	zone, err := c.ZoneDetails(context.Background(), c.zoneID)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(name, "."+zone.Name) && name != zone.Name {
		return fmt.Errorf("CloudFlare zone name %q does not match name %q to be deployed", zone.Name, name)
	}
	needPerms := map[string]bool{"#zone:edit": false, "#zone:read": false}
	for _, perm := range zone.Permissions {
		if _, ok := needPerms[perm]; ok {
			needPerms[perm] = true
		}
	}
	for _, ok := range needPerms {
		if !ok {
			return fmt.Errorf("wrong permissions on zone %s: %v", c.zoneID, needPerms)
		}
	}
	return nil
}

// uploadRecords updates the TXT records under name. Non-root records get
// a long TTL since their content is immutable (addressed by content
// hash); records no longer present in the new set are deleted.
func (c *cloudflareClient) uploadRecords(name string, records map[string]string) error {
	lrecords := make(map[string]string, len(records))
	for path, r := range records {
		lrecords[strings.ToLower(path)] = r
	}
	records = lrecords

	log.Info(fmt.Sprintf("Retrieving existing TXT records on %s", name))
	entries, err := c.DNSRecords(context.Background(), c.zoneID, cloudflare.DNSRecord{Type: "TXT"})
	if err != nil {
		return err
	}
	existing := make(map[string]cloudflare.DNSRecord)
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name, name) {
			continue
		}
		existing[strings.ToLower(entry.Name)] = entry
	}

	log.Info("Updating DNS entries")
	created, updated, skipped := 0, 0, 0
	for path, val := range records {
		old, exists := existing[path]
		if !exists {
			created++
			ttl := rootTTL
			if path != name {
				ttl = treeNodeTTLCloudflare
			}
			record := cloudflare.DNSRecord{Type: "TXT", Name: path, Content: val, TTL: ttl}
			_, err = c.CreateDNSRecord(context.Background(), c.zoneID, record)
		} else if old.Content != val {
			updated++
			old.Content = val
			err = c.UpdateDNSRecord(context.Background(), c.zoneID, old.ID, old)
		} else {
			skipped++
		}
		if err != nil {
			return fmt.Errorf("failed to publish %s: %v", path, err)
		}
	}
	log.Info("Updated DNS entries", "new", created, "updated", updated, "untouched", skipped)

	deleted := 0
	log.Info("Deleting stale DNS entries")
	for path, entry := range existing {
		if _, ok := records[path]; ok {
			continue
		}
		deleted++
		if err := c.DeleteDNSRecord(context.Background(), c.zoneID, entry.ID); err != nil {
			return fmt.Errorf("failed to delete %s: %v", path, err)
		}
	}
	log.Info("Deleted stale DNS entries", "count", deleted)
	return nil
}
