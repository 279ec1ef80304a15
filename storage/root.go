package storage

import (
	"os"
	"path/filepath"

	"github.com/rpupo63/portfolio-backend/errs"
)

// Mode selects where uploaded assets live.
type Mode int

const (
	// ModePersistent keeps assets in an uploads directory next to the service.
	ModePersistent Mode = iota
	// ModeEphemeral keeps assets in the system temp directory, for read-only deployments.
	ModeEphemeral
)

const (
	uploadsDirName   = "uploads"
	ephemeralDirName = "portfolio-uploads"
)

func (m Mode) String() string {
	if m == ModeEphemeral {
		return "ephemeral"
	}
	return "persistent"
}

// ModeFromFlag maps the deployment flag to a Mode.
func ModeFromFlag(ephemeral bool) Mode {
	if ephemeral {
		return ModeEphemeral
	}
	return ModePersistent
}

// Root is the resolved, existing directory that holds stored assets.
type Root struct {
	Mode    Mode
	BaseDir string
	Dir     string
}

// ResolveRoot picks the asset directory for mode and creates it.
// In persistent mode an empty baseDir means the process working directory, so the
// service must be started from its own directory for uploads to land next to it.
// Calling it again with the same arguments returns the same directory.
func ResolveRoot(mode Mode, baseDir string) (Root, error) {
	var dir string
	switch mode {
	case ModeEphemeral:
		dir = filepath.Join(os.TempDir(), ephemeralDirName)
	default:
		if baseDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return Root{}, errs.NewStorageRootError(uploadsDirName, err)
			}
			baseDir = wd
		}
		abs, err := filepath.Abs(baseDir)
		if err != nil {
			return Root{}, errs.NewStorageRootError(baseDir, err)
		}
		baseDir = abs
		dir = filepath.Join(baseDir, uploadsDirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Root{}, errs.NewStorageRootError(dir, err)
	}
	return Root{Mode: mode, BaseDir: baseDir, Dir: dir}, nil
}

// Check reports whether the root directory is still present.
func (r Root) Check() error {
	info, err := os.Stat(r.Dir)
	if err != nil {
		return errs.NewStorageRootUnavailableError(r.Dir, err)
	}
	if !info.IsDir() {
		return errs.NewStorageRootUnavailableError(r.Dir, os.ErrInvalid)
	}
	return nil
}
