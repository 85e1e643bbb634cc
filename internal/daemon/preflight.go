package daemon

import (
	"fmt"

	"golang.org/x/sys/unix"

	"inkwire/internal/config"
	"inkwire/internal/services"
)

// minFreeBytes is the floor below which the daemon refuses to start: the
// shelf database and logs both live under the data directory.
const minFreeBytes = 64 << 20

// preflight verifies the runtime directories exist and carry enough free
// space before the pipeline starts writing.
func preflight(cfg *config.Config) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "preflight", "", err)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(cfg.Paths.DataDir, &stat); err != nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "preflight",
			fmt.Sprintf("statfs %s", cfg.Paths.DataDir), err)
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return services.Wrap(services.ErrConfiguration, "daemon", "preflight",
			fmt.Sprintf("insufficient disk space in %s: %d bytes free", cfg.Paths.DataDir, free), nil)
	}
	return nil
}
