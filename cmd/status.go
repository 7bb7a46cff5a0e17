package cmd

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusServer string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the health endpoint of a running wxserverd instance",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:8080", "wxserverd server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
	resp, err := client.Get(statusServer + "/api/v1/health")
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", statusServer, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Uptime  string `json:"uptime"`
		Scene   string `json:"scene"`
		Station struct {
			PlaceName  string `json:"place_name"`
			Latitude   string `json:"latitude"`
			Longitude  string `json:"longitude"`
			Timezone   string `json:"timezone"`
			SunriseUTC string `json:"sunrise_utc"`
			SunsetUTC  string `json:"sunset_utc"`
		} `json:"station"`
		Database struct {
			Driver            string `json:"driver"`
			Status            string `json:"status"`
			SizeBytes         int64  `json:"size_bytes"`
			TotalObservations int    `json:"total_observations"`
			OldestObservation string `json:"oldest_observation"`
			NewestObservation string `json:"newest_observation"`
		} `json:"database"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&health); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	// Human-readable output.
	fmt.Printf("wxserverd %s\n", health.Version)
	fmt.Printf("Status: %s\n", health.Status)
	fmt.Printf("Uptime: %s\n", health.Uptime)
	fmt.Printf("Scene: %s\n", health.Scene)
	fmt.Println()

	fmt.Println("Station:")
	if health.Station.PlaceName != "" {
		fmt.Printf("  Location: %s\n", health.Station.PlaceName)
	}
	fmt.Printf("  Coordinates: %s, %s\n", health.Station.Latitude, health.Station.Longitude)
	fmt.Printf("  Timezone: %s\n", health.Station.Timezone)
	if health.Station.SunriseUTC != "" {
		fmt.Printf("  Sunrise/sunset (UTC): %s / %s\n", health.Station.SunriseUTC, health.Station.SunsetUTC)
	}
	fmt.Println()

	fmt.Printf("Database: %s\n", health.Database.Driver)
	if health.Database.SizeBytes > 0 {
		fmt.Printf("  Size: %s\n", formatBytes(health.Database.SizeBytes))
	}
	if health.Database.TotalObservations > 0 {
		fmt.Printf("  Observations: %s\n", formatNumber(health.Database.TotalObservations))
	}
	if health.Database.OldestObservation != "" {
		fmt.Printf("  Data range: %s to %s\n", health.Database.OldestObservation, health.Database.NewestObservation)
	}

	return nil
}

// formatNumber formats an integer with comma separators (e.g., 1,247,832).
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
