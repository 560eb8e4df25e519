package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	transactionsTable = "transactions"
	dateFormat        = "2006-01-02"
)

// Archive writes transaction rows to BigQuery and runs reporting queries.
type Archive struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewArchive creates an Archive bound to the given project and dataset.
func NewArchive(ctx context.Context, project, dataset string) (*Archive, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewArchive: bigquery client: %w", err)
	}
	return &Archive{client: client, project: project, dataset: dataset}, nil
}

// NewArchiveWithClient creates an Archive using the provided client.
// The caller retains ownership of the client.
func NewArchiveWithClient(client *bigquery.Client, project, dataset string) *Archive {
	return &Archive{client: client, project: project, dataset: dataset}
}

// Close releases the underlying client.
func (a *Archive) Close() error {
	return a.client.Close()
}

// InsertTransactions inserts a batch of TransactionRow into the archive.
func (a *Archive) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Use fully qualified table name to avoid project ID issues
	table := a.client.DatasetInProject(a.project, a.dataset).Table(transactionsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// QueryTransactionsByDateRange queries one user's transactions within the
// specified date range, oldest first.
func (a *Archive) QueryTransactionsByDateRange(ctx context.Context, userID string, startDate, endDate time.Time) ([]*TransactionRow, error) {
	q := a.client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.user_id,
			t.transaction_date,
			t.recorded_ts,
			t.amount,
			t.currency,
			t.category,
			t.description,
			t.source_text,
			t.is_income,
			t.created_ts
		FROM %s.%s t
		WHERE t.user_id = @user_id
		  AND t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		ORDER BY t.recorded_ts, t.transaction_id
	`, a.dataset, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDateRange: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
