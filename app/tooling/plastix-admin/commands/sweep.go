package commands

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

var privateURL string

// sweepCmd represents the sweep command.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one failed-batch retry sweep against a running service",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Post(fmt.Sprintf("%s/v1/ops/retry-sweep", privateURL), "application/json", nil)
		if err != nil {
			log.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			log.Fatalf("sweep failed: status %d", resp.StatusCode)
		}

		var sweep struct {
			Retried   int `json:"retried"`
			Succeeded int `json:"succeeded"`
			Failed    int `json:"failed"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&sweep); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("retried: %d succeeded: %d failed: %d\n", sweep.Retried, sweep.Succeeded, sweep.Failed)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringVarP(&privateURL, "url", "u", "http://localhost:9080", "Url of the private API.")
}
