package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	notifyTitle    string
	notifyYear     int
	notifyType     string
	notifyCategory string
	notifyPath     string
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a transfer-complete notification to a running daemon",
	Long: `Send a transfer-complete notification to a running daemon.

Intended as a post-processing hook for downloaders and import tools:

  arrfresh notify --path "/media/movies/Heat (1995)" --title "Heat" --year 1995`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNotify()
	},
}

func init() {
	notifyCmd.Flags().StringVar(&notifyTitle, "title", "", "Media title")
	notifyCmd.Flags().IntVar(&notifyYear, "year", 0, "Release year")
	notifyCmd.Flags().StringVar(&notifyType, "type", "", "Media type (movie, series)")
	notifyCmd.Flags().StringVar(&notifyCategory, "category", "", "Library category")
	notifyCmd.Flags().StringVar(&notifyPath, "path", "", "Destination directory of the import")
	_ = notifyCmd.MarkFlagRequired("path")

	rootCmd.AddCommand(notifyCmd)
}

type notifyPayload struct {
	MediaInfo struct {
		Title    string `json:"title,omitempty"`
		Year     int    `json:"year,omitempty"`
		Type     string `json:"type,omitempty"`
		Category string `json:"category,omitempty"`
	} `json:"mediainfo"`
	TransferInfo struct {
		TargetDirItem struct {
			Path string `json:"path"`
		} `json:"target_diritem"`
	} `json:"transferinfo"`
}

func runNotify() error {
	var payload notifyPayload
	payload.MediaInfo.Title = notifyTitle
	payload.MediaInfo.Year = notifyYear
	payload.MediaInfo.Type = notifyType
	payload.MediaInfo.Category = notifyCategory
	payload.TransferInfo.TargetDirItem.Path = notifyPath

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(serverURL+"/api/v1/notify/transfer", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("server returned %s: %s", resp.Status, apiErr.Error)
	}

	var accepted struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Printf("Accepted (event %s)\n", accepted.EventID)
	return nil
}
