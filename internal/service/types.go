// Package service is the server side of the prairie-water data provider: shape
// files on disk and the scalar store behind them.
package service

import "fmt"

// SourceFile represents a shape file in the sources directory.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"basins.geojson"`
	Key      string `json:"key" doc:"Shape access key (file stem)" example:"basins"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
