package etl

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
)

type GlueClient interface {
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
}

// TableLocation is where a Glue table keeps its data.
type TableLocation struct {
	Bucket string
	Prefix string // no leading slash, always ends in "/" unless empty
}

func (l TableLocation) String() string {
	return "s3://" + l.Bucket + "/" + l.Prefix
}

// LookupTableLocation reads the storage location of database.table from the
// Glue catalog.
func LookupTableLocation(ctx context.Context, c GlueClient, database, table string) (TableLocation, error) {
	out, err := c.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(database),
		Name:         aws.String(table),
	})
	if err != nil {
		return TableLocation{}, fmt.Errorf("glue GetTable %s.%s: %w", database, table, err)
	}
	if out.Table == nil || out.Table.StorageDescriptor == nil {
		return TableLocation{}, fmt.Errorf("glue table %s.%s has no storage descriptor", database, table)
	}
	return ParseS3Location(aws.ToString(out.Table.StorageDescriptor.Location))
}

// ParseS3Location splits s3://bucket/prefix.
func ParseS3Location(loc string) (TableLocation, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(loc), "s3://")
	if !ok {
		return TableLocation{}, fmt.Errorf("location %q is not an s3:// url", loc)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return TableLocation{}, fmt.Errorf("location %q has no bucket", loc)
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return TableLocation{Bucket: bucket, Prefix: prefix}, nil
}
