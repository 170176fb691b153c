package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/anotador/annotation"
)

func PrintQuery(ctx context.Context, w io.Writer, db *sql.Tx, query string, args ...any) error {
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	result, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return err
	}
	defer result.Close()
	columns, err := result.Columns()
	if err != nil {
		return err
	}
	if len(columns) > 1 {
		fmt.Fprintln(w, strings.Join(columns, "\t"))
	}
	pointers := make([]any, len(columns))
	container := make([]string, len(columns))
	for i := 0; i < len(columns); i++ {
		pointers[i] = &container[i]
	}
	for result.Next() {
		if err := result.Scan(pointers...); err != nil {
			return err
		}
		fmt.Fprintln(w, strings.Join(container, "\t"))
	}
	return result.Err()
}

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions [flags] database [session]",
	Short: "Lists the sessions stored in the annotation database",
	Long: `Lists the sessions stored in the annotation database, most recently
updated first. With a session id, prints its annotations as JSON instead.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		showHashes, err := cmd.Flags().GetBool("show-hashes")
		if err != nil {
			return err
		}
		db, err := annotation.GetDatabase(args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		tx, err := db.BeginTx(cmd.Context(), &sql.TxOptions{
			Isolation: sql.LevelReadUncommitted,
		})
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if len(args) == 2 {
			return PrintQuery(cmd.Context(), cmd.OutOrStdout(), tx, "select annotations from sessions where id = ?", args[1])
		}

		query := "select id, "
		if showHashes {
			query += "image_sha256 as image, "
		}
		query += "width || 'x' || height as size, json_array_length(annotations) as shapes, updated_at "
		query += "from sessions order by updated_at desc, id"
		return PrintQuery(cmd.Context(), cmd.OutOrStdout(), tx, query)
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)

	sessionsCmd.Flags().BoolP("show-hashes", "i", false, "Show the hash of the stored screenshot")
}
