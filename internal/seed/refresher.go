package seed

import (
	"context"
	"fmt"

	"github.com/okian/payday/internal/adapters/repository"
	"github.com/okian/payday/internal/domain/model"
)

// FileRefresher re-reads a fixture file on every refresh and writes the
// league's scoring data. Payouts in the file are ignored so resolutions are
// never overwritten.
type FileRefresher struct {
	path   string
	writer repository.Writer
}

// NewFileRefresher creates a refresher reading path into w.
func NewFileRefresher(path string, w repository.Writer) *FileRefresher {
	return &FileRefresher{path: path, writer: w}
}

// Refresh implements the service refresher contract.
func (r *FileRefresher) Refresh(ctx context.Context, league model.League) error {
	f, err := LoadFile(ctx, r.path)
	if err != nil {
		return err
	}
	d, err := f.build()
	if err != nil {
		return err
	}
	for _, l := range d.leagues {
		if l.ID == league.ID {
			return d.writeScoring(ctx, r.writer, []model.League{l})
		}
	}
	return fmt.Errorf("%w: league %s not in %s", ErrUnknownLeague, league.ID, r.path)
}
