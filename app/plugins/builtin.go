package plugins

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/kilianp07/multisend/infra/ledger/memory"
	"github.com/kilianp07/multisend/infra/ledger/sqlite"
)

type sqliteConf struct {
	Path string `mapstructure:"path"`
}

func init() {
	ledgers.MustRegister("memory", func(map[string]any) (Backend, error) {
		return memory.New(), nil
	})
	ledgers.MustRegister("sqlite", func(conf map[string]any) (Backend, error) {
		var c sqliteConf
		if err := mapstructure.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("sqlite ledger: path is required")
		}
		l, err := sqlite.Open(c.Path)
		if err != nil {
			return nil, err
		}
		return l, nil
	})
}
