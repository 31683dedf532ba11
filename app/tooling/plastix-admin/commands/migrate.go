package commands

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/plastix-network/plastix/business/data/schema"
	"github.com/plastix-network/plastix/business/sys/database"
)

var dbCfg = database.Config{}

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := database.Open(dbCfg)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := schema.Migrate(ctx, db); err != nil {
			log.Fatal(err)
		}
		fmt.Println("migrations complete")
	},
}

// seedCmd represents the seed command.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load seed data into the database",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := database.Open(dbCfg)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := schema.Seed(ctx, db); err != nil {
			log.Fatal(err)
		}
		fmt.Println("seed data complete")
	},
}

func init() {
	for _, cmd := range []*cobra.Command{migrateCmd, seedCmd} {
		cmd.Flags().StringVar(&dbCfg.User, "db-user", "postgres", "Database user.")
		cmd.Flags().StringVar(&dbCfg.Password, "db-password", "postgres", "Database password.")
		cmd.Flags().StringVar(&dbCfg.Host, "db-host", "localhost", "Database host.")
		cmd.Flags().StringVar(&dbCfg.Name, "db-name", "plastix", "Database name.")
		cmd.Flags().BoolVar(&dbCfg.DisableTLS, "db-disable-tls", true, "Disable TLS for the database connection.")
		rootCmd.AddCommand(cmd)
	}
}
