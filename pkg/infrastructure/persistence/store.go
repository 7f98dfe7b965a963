package persistence

import (
	"fmt"
	"io"

	"github.com/sipeed/picomon/pkg/config"
	"github.com/sipeed/picomon/pkg/domain/monitor"
)

// MonitorStore is a monitor.Repository that owns resources to release.
type MonitorStore interface {
	monitor.Repository
	io.Closer
}

// Open builds the store selected by cfg.Driver.
func Open(cfg config.StoreConfig) (MonitorStore, error) {
	switch cfg.Driver {
	case config.StoreSQLite, "":
		return OpenSQLite(cfg.DatabasePath)
	case config.StoreJSON:
		return NewJSONMonitorRepository(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
