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
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/urfave/cli/v2"

	"github.com/nodedisc/dnstree/log"
)

var (
	route53AccessKeyFlag = &cli.StringFlag{
		Name:    "access-key-id",
		Usage:   "AWS Access Key ID",
		EnvVars: []string{"AWS_ACCESS_KEY_ID"},
	}
	route53AccessSecretFlag = &cli.StringFlag{
		Name:    "access-key-secret",
		Usage:   "AWS Access Key Secret",
		EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
	}
	route53ZoneIDFlag = &cli.StringFlag{
		Name:     "zoneid",
		Usage:    "Route53 Hosted Zone ID",
		Required: true,
	}
)

var dnsToRoute53Command = &cli.Command{
	Name:      "to-route53",
	Usage:     "Deploy a signed tree's TXT records to Amazon Route53",
	ArgsUsage: "<domain> <txt.json>",
	Flags:     []cli.Flag{route53AccessKeyFlag, route53AccessSecretFlag, route53ZoneIDFlag},
	Action:    dnsToRoute53,
}

func dnsToRoute53(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return fmt.Errorf("need domain and txt.json file as arguments")
	}
	domain, file := ctx.Args().Get(0), ctx.Args().Get(1)
	records, err := readTXTJSON(file)
	if err != nil {
		return err
	}
	client, err := newRoute53Client(ctx)
	if err != nil {
		return err
	}
	return client.deploy(ctx.Context, ctx.String(route53ZoneIDFlag.Name), domain, records)
}

type route53Client struct {
	api *route53.Client
}

func newRoute53Client(ctx *cli.Context) (*route53Client, error) {
	var opts []func(*config.LoadOptions) error
	if key, secret := ctx.String(route53AccessKeyFlag.Name), ctx.String(route53AccessSecretFlag.Name); key != "" && secret != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, "")))
	}
	cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &route53Client{api: route53.NewFromConfig(cfg)}, nil
}

// deploy upserts records in change batches of at most batchSize
// changes, one ChangeResourceRecordSets call per batch, so a set
// larger than one batch is not applied atomically.
func (c *route53Client) deploy(ctx context.Context, zoneID, domain string, records map[string]string) error {
	paths := make([]string, 0, len(records))
	for p := range records {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	const batchSize = 300 // Route53 caps a ChangeResourceRecordSets call at 1000 changes
	for i := 0; i < len(paths); i += batchSize {
		end := i + batchSize
		if end > len(paths) {
			end = len(paths)
		}
		changes := make([]types.Change, 0, end-i)
		for _, path := range paths[i:end] {
			ttl := int64(treeNodeTTLRoute53)
			if path == domain {
				ttl = rootTTL
			}
			changes = append(changes, types.Change{
				Action: types.ChangeActionUpsert,
				ResourceRecordSet: &types.ResourceRecordSet{
					Name:            aws.String(strings.ToLower(path)),
					Type:            types.RRTypeTxt,
					TTL:             aws.Int64(ttl),
					ResourceRecords: []types.ResourceRecord{{Value: aws.String(quoteTXT(records[path]))}},
				},
			})
		}
		log.Info("Submitting Route53 change batch", "size", len(changes))
		_, err := c.api.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
			HostedZoneId: aws.String(zoneID),
			ChangeBatch:  &types.ChangeBatch{Changes: changes},
		})
		if err != nil {
			return fmt.Errorf("route53 change batch failed: %w", err)
		}
	}
	return nil
}

// quoteTXT wraps a TXT record value in the quoted form Route53 expects,
// splitting it into <=255-byte chunks per the DNS TXT wire format.
func quoteTXT(value string) string {
	if len(value) <= 255 {
		return `"` + value + `"`
	}
	var b strings.Builder
	for len(value) > 255 {
		b.WriteByte('"')
		b.WriteString(value[:255])
		b.WriteString(`" `)
		value = value[255:]
	}
	b.WriteByte('"')
	b.WriteString(value)
	b.WriteByte('"')
	return b.String()
}
