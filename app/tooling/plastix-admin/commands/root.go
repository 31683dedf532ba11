// Package commands contains the admin sub commands.
package commands

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	privateKeyName string
	keyPath        string
)

const (
	keyExtension = ".ecdsa"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "plastix-admin",
	Short: "Administrative tooling for the plastix service",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&privateKeyName, "key", "k", "minter.ecdsa", "Name of the signing key.")
	rootCmd.PersistentFlags().StringVarP(&keyPath, "key-path", "p", "zarf/keys/", "Path to the directory with signing keys.")
}

func getPrivateKeyPath() string {
	if !strings.HasSuffix(privateKeyName, keyExtension) {
		privateKeyName += keyExtension
	}
	return filepath.Join(keyPath, privateKeyName)
}
