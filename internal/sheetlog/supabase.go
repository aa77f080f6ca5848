package sheetlog

import (
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"

	"github.com/OdaKanta/DifyInterviewForm/internal/sink"
)

// Supabase appends turn rows to a Supabase table. The table mirrors the
// spreadsheet the interview logs used to live in, one row per turn.
type Supabase struct {
	client *supabase.Client
	table  string
}

// New constructs the Supabase turn log.
func New(url, serviceKey, table string) (*Supabase, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("sheetlog: create supabase client: %w", err)
	}
	return &Supabase{client: client, table: table}, nil
}

// Append inserts one row. The context deadline is the caller's concern;
// postgrest-go does not take a context, so a slow insert is bounded by the
// underlying client's transport defaults.
func (s *Supabase) Append(ctx context.Context, row sink.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := s.client.From(s.table).Insert(row, false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("sheetlog: insert row: %w", err)
	}
	return nil
}
