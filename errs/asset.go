package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Asset (uploaded file) errors
var (
	ErrAssetTooLarge        = errors.New("File too large")
	ErrUnsupportedAssetType = errors.New("Only image files are allowed")
	ErrAssetWrite           = errors.New("failed to store uploaded file")
	ErrStorageRoot          = errors.New("storage root unavailable")
)

func NewAssetTooLargeError(maxBytes int64) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusBadRequest,
		err:        ErrAssetTooLarge,
		kind:       ErrValidation,
		Field:      "image",
		Cause:      fmt.Errorf("maximum size is %d bytes", maxBytes),
	}
}

func NewUnsupportedAssetTypeError(filename, mimeType string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusBadRequest,
		err:        ErrUnsupportedAssetType,
		kind:       ErrValidation,
		Field:      "image",
		Cause:      fmt.Errorf("%q (%s) is not a jpeg, jpg, png, gif or webp image", filename, mimeType),
	}
}

func NewAssetWriteError(cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrAssetWrite,
		kind:       ErrInternal,
		Cause:      cause,
	}
}

func NewStorageRootError(dir string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrStorageRoot,
		kind:       ErrInternal,
		Details:    fmt.Sprintf("cannot create %s", dir),
		Cause:      cause,
	}
}

// NewStorageRootUnavailableError reports a root that existed at startup but can no longer be used.
func NewStorageRootUnavailableError(dir string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusServiceUnavailable,
		err:        ErrStorageRoot,
		kind:       ErrInternal,
		Details:    fmt.Sprintf("%s is not an accessible directory", dir),
		Cause:      cause,
	}
}

func IsAssetTooLarge(err error) bool {
	return errors.Is(err, ErrAssetTooLarge)
}

func IsUnsupportedAssetType(err error) bool {
	return errors.Is(err, ErrUnsupportedAssetType)
}
