package domain

import "path/filepath"

const (
	// DumpFileName is the default output of dump-only runs.
	DumpFileName = "download_requirements.txt"

	// LockFileName is the advisory lock file created in the target root.
	LockFileName = ".haul.lock"

	// ConfigFileName is the optional configuration file looked up in the working directory.
	ConfigFileName = "haul"

	// PartSuffix marks an in-flight download next to its destination.
	PartSuffix = ".part"

	// MarkerSuffix marks an extracted archive next to its contents.
	MarkerSuffix = ".haul"

	// MaxFetchAttempts bounds the download-and-verify loop.
	MaxFetchAttempts = 3

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// PartPath returns the temporary download path for a destination.
func PartPath(dest string) string {
	return siblingPath(dest, PartSuffix)
}

// MarkerPath returns the extraction marker path for an archive destination.
func MarkerPath(dest string) string {
	return siblingPath(dest, MarkerSuffix)
}

func siblingPath(dest, suffix string) string {
	return filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+suffix)
}
