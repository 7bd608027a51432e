package api

import (
	"fmt"
	"strings"
)

// MaxFileSize is the upload ceiling (100 MiB).
const MaxFileSize = 104857600

// maxFormOverhead is headroom for the multipart framing and the small
// metadata fields that ride alongside the file part.
const maxFormOverhead = 1 << 20

// The categorical upload options are closed enumerations; anything else is
// rejected outright.
var (
	validDownloadLimits = map[int]bool{0: true, 1: true, 3: true, 5: true}
	validExpirations    = map[int]bool{1: true, 6: true, 24: true, 168: true}
)

func validateDownloadLimit(maxDownloads int) error {
	if !validDownloadLimits[maxDownloads] {
		return fmt.Errorf("invalid download limit %d", maxDownloads)
	}
	return nil
}

func validateExpiration(expiresInHours int) error {
	if !validExpirations[expiresInHours] {
		return fmt.Errorf("invalid expiration time %d", expiresInHours)
	}
	return nil
}

func validateFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("file is empty")
	}
	if size > MaxFileSize {
		return fmt.Errorf("file size exceeds %dMB limit", MaxFileSize/1048576)
	}
	return nil
}

func validateFileExtension(filename string, allowed map[string]bool) error {
	lastDot := strings.LastIndex(filename, ".")
	if lastDot == -1 {
		return fmt.Errorf("file must have an extension")
	}

	extension := strings.ToLower(filename[lastDot:])
	if !allowed[extension] {
		return fmt.Errorf("file type %q is not allowed", extension)
	}
	return nil
}
