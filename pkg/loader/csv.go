package loader

import (
	"context"
	"errors"
	"os"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/imports"
)

// Error definitions
var (
	ErrEmptyTable    = errors.New("empty register table")
	ErrMissingColumn = errors.New("register table missing column")
	ErrInvalidValue  = errors.New("invalid register value")
)

// LoadCSV reads a CSV register table. The first row is the header; column
// types are inferred and empty cells become nil.
func LoadCSV(path string) (*dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ctx := context.Background()
	df, err := imports.LoadFromCSV(ctx, file, imports.CSVLoadOptions{
		InferDataTypes:   true,
		TrimLeadingSpace: true,
	})
	if err != nil {
		return nil, err
	}

	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyTable
	}

	return df, nil
}
