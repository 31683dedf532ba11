package commands

import (
	"log"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// genkeyCmd represents the genkey command.
var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a new minter signing key",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.GenerateKey()
		if err != nil {
			log.Fatal(err)
		}
		path := getPrivateKeyPath()
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			log.Fatal(err)
		}
		if err := crypto.SaveECDSA(path, privateKey); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
}
