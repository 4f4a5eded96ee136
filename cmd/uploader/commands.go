package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-upload/internal/logging"
	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/pathtemplate"
	"github.com/tendant/simple-upload/pkg/simpleupload/recognizer"
	repopg "github.com/tendant/simple-upload/pkg/simpleupload/repo/postgres"
)

// NewStoreCommand creates the store command
func NewStoreCommand(flags *globalFlags) *cobra.Command {
	var recordID string
	var userID string
	var originalName string
	var keepPrevious bool

	cmd := &cobra.Command{
		Use:   "store <field> <file>",
		Short: "Store a file into a record field",
		Long: `Store a local file as the upload of a managed field. The record is loaded
from the record store when --id names an existing record, otherwise a new
record is created. The updated record is printed as JSON.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, filePath := args[0], args[1]
			ctx := cmd.Context()

			s, err := openSession(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer s.finish(cmd.OutOrStdout())

			record, err := loadOrCreate(cmd, s, recordID)
			if err != nil {
				return err
			}

			if originalName == "" {
				originalName = filepath.Base(filePath)
			}
			opts := simpleupload.SaveOptions{UserID: userID}
			if keepPrevious {
				overwrite := false
				opts.Overwrite = &overwrite
			}

			err = s.Behavior.BeforeSave(ctx, record, map[string]simpleupload.UploadDescriptor{
				field: {OriginalName: originalName, TempPath: filePath},
			}, opts)
			if err != nil {
				return fmt.Errorf("store failed: %w", err)
			}

			if err := s.Records.SaveRecord(ctx, record); err != nil {
				return fmt.Errorf("failed to save record: %w", err)
			}

			return printRecord(cmd.OutOrStdout(), record)
		},
	}

	cmd.Flags().StringVar(&recordID, "id", "", "Record ID (default: new random ID)")
	cmd.Flags().StringVar(&userID, "user", "", "User ID for the :uid token")
	cmd.Flags().StringVar(&originalName, "name", "", "Original file name (default: base name of <file>)")
	cmd.Flags().BoolVar(&keepPrevious, "no-overwrite", false, "Fail if the destination exists and keep the previous file")

	return cmd
}

func loadOrCreate(cmd *cobra.Command, s *session, id string) (*simpleupload.Record, error) {
	if id == "" {
		return simpleupload.NewRecord(uuid.NewString(), nil), nil
	}
	record, err := s.Records.GetRecord(cmd.Context(), id)
	if errors.Is(err, simpleupload.ErrRecordNotFound) {
		return simpleupload.NewRecord(id, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", id, err)
	}
	return record, nil
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <record-id>",
		Short: "Delete a record and the files only it references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer s.finish(cmd.OutOrStdout())

			if err := deleteRecord(ctx, s.Behavior, s.Records, args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %s\n", args[0])
			return nil
		},
	}

	return cmd
}

// deleteRecord removes a record and the files only it references. Postgres
// record stores count references and delete the record in one transaction.
func deleteRecord(ctx context.Context, behavior *simpleupload.Behavior, records simpleupload.Repository, id string) error {
	if pg, ok := records.(*repopg.Repository); ok {
		return pg.RunInTx(ctx, func(tx *repopg.Repository) error {
			return deleteWith(ctx, behavior, tx, id)
		})
	}
	return deleteWith(ctx, behavior, records, id)
}

func deleteWith(ctx context.Context, behavior *simpleupload.Behavior, records simpleupload.Repository, id string) error {
	record, err := records.GetRecord(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load record %s: %w", id, err)
	}

	if err := behavior.BeforeDelete(ctx, record, simpleupload.DeleteOptions{References: records}); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if err := records.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// NewListCommand creates the list command
func NewListCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer s.finish(cmd.OutOrStdout())

			records, err := s.Records.ListRecords(ctx)
			if err != nil {
				return fmt.Errorf("failed to list records: %w", err)
			}
			for _, record := range records {
				if err := printRecord(cmd.OutOrStdout(), record); err != nil {
					return err
				}
			}
			return nil
		},
	}

	return cmd
}

// NewRecognizeCommand creates the recognize command
func NewRecognizeCommand(flags *globalFlags) *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "recognize <file>...",
		Short: "Detect the MIME type and encoding of local files",
		Long: fmt.Sprintf(`Run local files through a recognizer chain and print the detected MIME
type and encoding. Available recognizers: %s.`, strings.Join(recognizer.Names(), ", ")),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if flags.verbose {
				level = "debug"
			}
			chain, err := recognizer.NewChainFromNames(names,
				recognizer.WithDefaults(recognizer.Result{
					MimeType: simpleupload.DefaultMimeType,
					Encoding: simpleupload.DefaultEncoding,
				}),
				recognizer.WithLogger(logging.New(cmd.ErrOrStderr(), level, "text")),
			)
			if err != nil {
				return err
			}

			for _, path := range args {
				result := chain.Run(cmd.Context(), recognizer.LocalFile(path))
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s; %s\n", path, result.MimeType, result.Encoding)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&names, "recognizers", "r", []string{"generic", "csv"}, "Recognizer chain in order")

	return cmd
}

// NewResolveCommand creates the resolve command
func NewResolveCommand() *cobra.Command {
	var ctx pathtemplate.Context
	var name string
	var at string
	var tokens map[string]string

	cmd := &cobra.Command{
		Use:   "resolve <template>",
		Short: "Resolve a path template",
		Long: fmt.Sprintf(`Resolve a path template the way a store would, without storing anything.
Available tokens: %s.`, strings.Join(pathtemplate.New(nil).Tokens(), " ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" {
				ctx.Extension = pathtemplate.Extension(name)
				if ctx.SourcePath == "" {
					ctx.SourcePath = name
				}
			}
			if at != "" {
				now, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				ctx.Now = now
			}

			custom := make(map[string]pathtemplate.TokenFunc, len(tokens))
			for k, v := range tokens {
				custom[k] = pathtemplate.Literal(v)
			}

			resolved, err := pathtemplate.New(custom).Resolve(args[0], ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resolved)
			return nil
		},
	}

	cmd.Flags().StringVar(&ctx.EntityID, "id", "", "Record ID for the :id token")
	cmd.Flags().StringVar(&ctx.UserID, "user", "", "User ID for the :uid token")
	cmd.Flags().StringVar(&ctx.SourcePath, "source", "", "File hashed by :md5 and :sha256 (default: --name)")
	cmd.Flags().StringVar(&name, "name", "", "Original file name providing the extension")
	cmd.Flags().StringVar(&ctx.Extension, "ext", "", "Extension, when --name is not given")
	cmd.Flags().StringVar(&at, "at", "", "Timestamp for date tokens (RFC3339, default: now)")
	cmd.Flags().StringToStringVar(&tokens, "token", nil, "Custom token, e.g. --token tenant=acme")

	return cmd
}

func printRecord(w io.Writer, record *simpleupload.Record) error {
	out := struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	}{record.ID(), record.Fields()}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
