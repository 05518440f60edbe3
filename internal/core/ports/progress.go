package ports

import "io"

//go:generate mockgen -source=progress.go -destination=mocks/mock_progress.go -package=mocks

// Progress reports download progress to the user.
type Progress interface {
	// Track starts reporting the transfer of one requirement.
	Track(name string) Transfer
}

// Transfer counts the bytes written to it.
type Transfer interface {
	io.Writer
	// Done completes the transfer, failed when err is not nil.
	Done(err error)
}
