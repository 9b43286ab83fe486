package inventory

import (
	"fmt"
	"log/slog"

	"github.com/rkadam/opsbook/internal/util"
)

// Validate checks an inventory and subset-limit combination before any
// execution begins.
//
// The two steps are ordered deliberately. An inventory with zero hosts is
// a warning, not an error: every play simply targets zero hosts. A
// non-empty inventory whose limit filters everything out is a hard error,
// because the run would silently touch nothing the user asked for. When
// the inventory was empty to begin with, the limit is irrelevant and no
// error is raised.
func Validate(inv *Inventory, subsetLimit string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	noHosts := len(inv.Hosts("")) == 0
	if noHosts {
		logger.Warn("provided hosts list is empty, no hosts will be targeted")
	}

	inv.ApplySubset(subsetLimit)

	if len(inv.ActiveHosts("")) == 0 && !noHosts {
		return fmt.Errorf("%w: specified limit %q does not match any hosts", util.ErrInvalidLimit, subsetLimit)
	}

	return nil
}
