package rewrap

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// RewrapResult is the outcome of rewrapping a single CTN1 KeyID's Vault
// Transit ciphertext.
type RewrapResult struct {
	KeyID      int32 `json:"key_id"`
	OldVersion int   `json:"old_version"`
	NewVersion int   `json:"new_version"` // 0 means no rewrap was performed
	Error      error `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for audit logging.
func (r *RewrapResult) MarshalJSON() ([]byte, error) {
	errMsg := ""
	if r.Error != nil {
		errMsg = r.Error.Error()
	}
	return json.Marshal(map[string]interface{}{
		"key_id":      r.KeyID,
		"old_version": r.OldVersion,
		"new_version": r.NewVersion,
		"error":       errMsg,
		"success":     r.Error == nil,
	})
}

// Statistics contains aggregated rewrap operation statistics.
type Statistics struct {
	TotalKeys     int            `json:"total_keys"`
	Successful    int            `json:"successful"`
	Failed        int            `json:"failed"`
	Skipped       int            `json:"skipped"` // KeyIDs already at minimum version
	VersionCounts map[int]int    `json:"version_counts"`
	Results       []*RewrapResult `json:"results,omitempty"`
}

// Reporter generates statistics and reports from rewrap results.
type Reporter struct {
	stats *Statistics
}

// NewReporter creates a new statistics reporter.
func NewReporter() *Reporter {
	return &Reporter{
		stats: &Statistics{
			VersionCounts: make(map[int]int),
			Results:       make([]*RewrapResult, 0),
		},
	}
}

// AddResult processes a rewrap result and updates statistics.
func (r *Reporter) AddResult(result *RewrapResult) {
	r.stats.TotalKeys++
	r.stats.Results = append(r.stats.Results, result)

	if result.OldVersion > 0 {
		r.stats.VersionCounts[result.OldVersion]++
	}

	if result.Error != nil {
		r.stats.Failed++
	} else if result.NewVersion == 0 {
		r.stats.Skipped++
	} else {
		r.stats.Successful++
	}
}

// AddResults processes multiple results.
func (r *Reporter) AddResults(results []*RewrapResult) {
	for _, result := range results {
		r.AddResult(result)
	}
}

// GetStatistics returns the current statistics.
func (r *Reporter) GetStatistics() *Statistics {
	return r.stats
}

// WriteText outputs statistics in human-readable text format.
func (r *Reporter) WriteText(w io.Writer, includeDetails bool) error {
	if _, err := fmt.Fprintf(w, "Rewrap Statistics\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "=================\n\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Total Keys:    %d\n", r.stats.TotalKeys); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Successful:    %d\n", r.stats.Successful); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Failed:        %d\n", r.stats.Failed); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Skipped:       %d (already at minimum version)\n\n", r.stats.Skipped); err != nil {
		return err
	}

	if len(r.stats.VersionCounts) > 0 {
		if _, err := fmt.Fprintf(w, "Version Distribution:\n"); err != nil {
			return err
		}

		versions := make([]int, 0, len(r.stats.VersionCounts))
		for v := range r.stats.VersionCounts {
			versions = append(versions, v)
		}
		sort.Ints(versions)

		for _, v := range versions {
			count := r.stats.VersionCounts[v]
			if _, err := fmt.Fprintf(w, "  v%-3d: %d keys\n", v, count); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	if includeDetails && len(r.stats.Results) > 0 {
		if _, err := fmt.Fprintf(w, "Detailed Results:\n"); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "-----------------\n"); err != nil {
			return err
		}
		for _, result := range r.stats.Results {
			status := "SUCCESS"
			if result.Error != nil {
				status = fmt.Sprintf("FAILED: %v", result.Error)
			} else if result.NewVersion == 0 {
				status = "SKIPPED"
			}

			if _, err := fmt.Fprintf(w, "  key_id=%d: v%d", result.KeyID, result.OldVersion); err != nil {
				return err
			}
			if result.NewVersion > 0 {
				if _, err := fmt.Fprintf(w, " -> v%d", result.NewVersion); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, " [%s]\n", status); err != nil {
				return err
			}
		}
	}

	return nil
}

// WriteJSON outputs statistics in JSON format.
func (r *Reporter) WriteJSON(w io.Writer, includeResults bool) error {
	stats := r.stats
	if !includeResults {
		stats = &Statistics{
			TotalKeys:     r.stats.TotalKeys,
			Successful:    r.stats.Successful,
			Failed:        r.stats.Failed,
			Skipped:       r.stats.Skipped,
			VersionCounts: r.stats.VersionCounts,
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(stats)
}

// WriteCSV outputs statistics in CSV format.
func (r *Reporter) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"KeyID", "OldVersion", "NewVersion", "Status", "Error"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, result := range r.stats.Results {
		status := "success"
		errorMsg := ""

		if result.Error != nil {
			status = "failed"
			errorMsg = result.Error.Error()
		} else if result.NewVersion == 0 {
			status = "skipped"
		}

		row := []string{
			fmt.Sprintf("%d", result.KeyID),
			fmt.Sprintf("%d", result.OldVersion),
			fmt.Sprintf("%d", result.NewVersion),
			status,
			errorMsg,
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}

// GetFailedKeys returns the KeyIDs that failed to rewrap.
func (r *Reporter) GetFailedKeys() []int32 {
	failed := make([]int32, 0)
	for _, result := range r.stats.Results {
		if result.Error != nil {
			failed = append(failed, result.KeyID)
		}
	}
	return failed
}

// GetSuccessfulKeys returns the KeyIDs that were successfully rewrapped.
func (r *Reporter) GetSuccessfulKeys() []int32 {
	successful := make([]int32, 0)
	for _, result := range r.stats.Results {
		if result.Error == nil && result.NewVersion > 0 {
			successful = append(successful, result.KeyID)
		}
	}
	return successful
}

// GetSkippedKeys returns the KeyIDs that were skipped (already at minimum version).
func (r *Reporter) GetSkippedKeys() []int32 {
	skipped := make([]int32, 0)
	for _, result := range r.stats.Results {
		if result.Error == nil && result.NewVersion == 0 {
			skipped = append(skipped, result.KeyID)
		}
	}
	return skipped
}
