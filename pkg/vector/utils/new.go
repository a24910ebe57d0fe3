// Package vectorutils is the vector index utility package
package vectorutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/vector"
	"github.com/chrysalislabs/chrysalis/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string
	DBPath       string
	Dimensions   uint
	Logger       *zap.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "sqlitevec":
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     o.DBPath,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector index provider: %s", o.ProviderType)
	}
}
