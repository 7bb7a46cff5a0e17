package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cdens/WxServer/internal/config"
	"github.com/cdens/WxServer/internal/domain"
)

// Legacy anemometer calibration: 9-column files predate the recalibrated
// sensor firmware and need their wind speeds scaled up.
const legacyWindScale = 3.0

var importDir string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-import station CSV logs into the observation store",
	Long: `import reads WxO-prefixed CSV log files from a directory, sorted by
filename so insertion order follows time order, and batch-inserts their
observations. Lines carry either 9 columns (legacy format without a wind
gust) or 10 columns:

  timestamp,ta,rh,pres,wspd[,wgust],wdir,solar,precip,strikes

Timestamps use the compact YYYYMMDDHHMMSS format.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importDir, "dir", "", "directory of WxO CSV files (required)")
	_ = importCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	entries, err := os.ReadDir(importDir)
	if err != nil {
		return fmt.Errorf("reading import directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "WxO") {
			files = append(files, e.Name())
		}
	}
	// Filename order is chronological order for station logs; importing in
	// this order keeps id order aligned with time order.
	sort.Strings(files)

	ctx := context.Background()
	total := 0
	for _, name := range files {
		obs, err := readObservationFile(filepath.Join(importDir, name))
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if len(obs) == 0 {
			continue
		}
		if err := s.AppendBatch(ctx, obs); err != nil {
			return fmt.Errorf("importing %s: %w", name, err)
		}
		total += len(obs)
		slog.Info("imported file", "file", name, "observations", len(obs))
	}

	slog.Info("import complete", "files", len(files), "observations", total)
	return nil
}

// readObservationFile parses one station log. Malformed lines abort the
// import so a bad file never half-loads.
func readObservationFile(path string) ([]domain.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var obs []domain.Observation
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		o, err := parseObservationLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		obs = append(obs, o)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return obs, nil
}

func parseObservationLine(line string) (domain.Observation, error) {
	cols := strings.Split(line, ",")

	var gustIdx int
	var windScale float64
	switch len(cols) {
	case 9:
		gustIdx = -1
		windScale = legacyWindScale
	case 10:
		gustIdx = 5
		windScale = 1.0
	default:
		return domain.Observation{}, fmt.Errorf("expected 9 or 10 columns, got %d", len(cols))
	}

	ts, err := time.Parse("20060102150405", cols[0])
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parsing timestamp %q: %w", cols[0], err)
	}

	nums := make([]float64, len(cols)-1)
	for i, c := range cols[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("column %d value %q is not numeric", i+2, c)
		}
		nums[i] = v
	}

	// Column layout after the timestamp: ta, rh, pres, wspd, [wgust,]
	// wdir, solar, precip, strikes.
	o := domain.Observation{
		Timestamp:        ts.UTC(),
		Temperature:      nums[0],
		RelativeHumidity: nums[1],
		Pressure:         nums[2],
		WindSpeed:        nums[3] * windScale,
	}
	rest := 4
	if gustIdx > 0 {
		o.WindGust = nums[4]
		rest = 5
	} else {
		o.WindGust = o.WindSpeed
	}
	o.WindDirection = nums[rest]
	o.SolarRadiation = nums[rest+1]
	o.PrecipRate = nums[rest+2]
	o.StrikeRate = nums[rest+3]
	return o, nil
}
