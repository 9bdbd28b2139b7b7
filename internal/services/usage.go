package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/damacus/iron-studio/internal/pathmodel"
	"github.com/damacus/iron-studio/internal/storage"
)

// StorageUsage is what the storage widget shows for a MinIO profile.
type StorageUsage struct {
	Bucket        string
	BucketSize    string
	BucketObjects uint64
	UsedSpace     string
	TotalSpace    string
	UsedPercent   string
	BucketsCount  uint64
	LastUpdate    time.Time
}

// ServerSummary is the server widget content.
type ServerSummary struct {
	Version     string
	Uptime      string
	ServerCount int
	Mode        string
	Region      string
}

// UsageService reads cluster statistics through the MinIO admin API.
type UsageService struct {
	factory StoreFactory
}

// NewUsageService creates the service.
func NewUsageService(factory StoreFactory) *UsageService {
	return &UsageService{factory: factory}
}

// Usage returns data usage for the cluster and cfg's bucket.
func (u *UsageService) Usage(ctx context.Context, cfg storage.Config) (*StorageUsage, error) {
	mdm, err := u.factory.NewAdminClient(cfg)
	if err != nil {
		return nil, err
	}
	info, err := mdm.DataUsageInfo(ctx)
	if err != nil {
		return nil, err
	}

	usedPercent := 0.0
	if info.TotalCapacity > 0 {
		usedPercent = float64(info.ObjectsTotalSize) / float64(info.TotalCapacity) * 100
	}
	out := &StorageUsage{
		Bucket:       cfg.Bucket,
		BucketSize:   pathmodel.FormatBytes(0),
		UsedSpace:    pathmodel.FormatBytes(info.ObjectsTotalSize),
		TotalSpace:   pathmodel.FormatBytes(info.TotalCapacity),
		UsedPercent:  fmt.Sprintf("%.0f", usedPercent),
		BucketsCount: info.BucketsCount,
		LastUpdate:   info.LastUpdate,
	}
	if b, ok := info.BucketsUsage[cfg.Bucket]; ok {
		out.BucketSize = pathmodel.FormatBytes(b.Size)
		out.BucketObjects = b.ObjectsCount
	}
	return out, nil
}

// Server returns version and uptime of the first server in the cluster.
func (u *UsageService) Server(ctx context.Context, cfg storage.Config) (*ServerSummary, error) {
	mdm, err := u.factory.NewAdminClient(cfg)
	if err != nil {
		return nil, err
	}
	info, err := mdm.ServerInfo(ctx)
	if err != nil {
		return nil, err
	}

	out := &ServerSummary{
		Version:     "Unknown",
		Uptime:      "Unknown",
		ServerCount: len(info.Servers),
		Mode:        info.Mode,
		Region:      info.Region,
	}
	if len(info.Servers) > 0 {
		out.Version = formatVersion(info.Servers[0].Version)
		out.Uptime = formatUptime(info.Servers[0].Uptime)
	}
	return out, nil
}

// formatVersion extracts the date from MinIO version strings
// e.g., "RELEASE.2024-11-07T00-52-20Z" -> "2024-11-07"
func formatVersion(version string) string {
	if version == "" {
		return "Unknown"
	}
	version = strings.TrimPrefix(version, "RELEASE.")
	if len(version) >= 10 {
		return version[:10]
	}
	return version
}

// formatUptime converts seconds to human-readable format
func formatUptime(seconds int64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
