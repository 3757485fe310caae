package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
)

type AthenaClient interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

type RepairOptions struct {
	Database     string
	Table        string
	Workgroup    string
	Output       string // s3://bucket/prefix/
	MaxWait      time.Duration
	PollInterval time.Duration
}

type AthenaError struct {
	State            string
	Reason           string
	QueryExecutionID string
}

func (e *AthenaError) Error() string {
	if e.QueryExecutionID != "" {
		return fmt.Sprintf("athena %s: %s (qid=%s)", e.State, e.Reason, e.QueryExecutionID)
	}
	return fmt.Sprintf("athena %s: %s", e.State, e.Reason)
}

// RepairPartitions runs MSCK REPAIR TABLE so Athena sees newly written
// dt= partitions, and waits for it to finish. It returns the query id.
func RepairPartitions(ctx context.Context, c AthenaClient, opt RepairOptions) (string, error) {
	if opt.MaxWait == 0 {
		opt.MaxWait = 60 * time.Second
	}
	if opt.PollInterval == 0 {
		opt.PollInterval = 2 * time.Second
	}

	start, err := c.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(fmt.Sprintf("MSCK REPAIR TABLE %s", opt.Table)),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(opt.Database),
		},
		WorkGroup: aws.String(opt.Workgroup),
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(opt.Output),
		},
	})
	if err != nil {
		return "", fmt.Errorf("athena StartQueryExecution: %w", err)
	}
	qid := aws.ToString(start.QueryExecutionId)

	deadline := time.Now().Add(opt.MaxWait)
	for {
		st, err := c.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(qid),
		})
		if err != nil {
			return qid, fmt.Errorf("athena GetQueryExecution: %w", err)
		}
		status := st.QueryExecution.Status
		switch status.State {
		case athenatypes.QueryExecutionStateSucceeded:
			return qid, nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			return qid, &AthenaError{State: string(status.State), Reason: aws.ToString(status.StateChangeReason), QueryExecutionID: qid}
		}

		if time.Now().After(deadline) {
			return qid, &AthenaError{State: "TIMEOUT", Reason: "repair did not finish", QueryExecutionID: qid}
		}
		select {
		case <-ctx.Done():
			return qid, ctx.Err()
		case <-time.After(opt.PollInterval):
		}
	}
}
