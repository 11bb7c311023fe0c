package cli

import (
	"errors"

	"github.com/ncruces/zenity"
)

// ErrPickCanceled is returned when the user closes the file dialog.
var ErrPickCanceled = errors.New("file selection canceled")

// PickMediaFile opens the native file dialog filtered to images and videos.
func PickMediaFile() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Select an image or video"),
		zenity.FileFilters{
			{
				Name: "Media files",
				Patterns: []string{
					"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp", "*.avif",
					"*.bmp", "*.tif", "*.tiff", "*.ico", "*.svg",
					"*.mp4", "*.mov", "*.webm", "*.mkv", "*.avi",
				},
			},
		},
	)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", ErrPickCanceled
	}
	return path, err
}
