package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joestump/bookmarks/internal/query"
	"github.com/joestump/bookmarks/internal/store"
)

func newSyncCmd(configPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the local store from the remote feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer closeApp()

			res, err := a.updater.Refresh(cmd.Context(), force)
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "remote unchanged")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "upserted %d, deleted %d, skipped %d invalid\n",
				res.Upserted, res.Deleted, res.Invalid)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "refresh even if the remote has not changed")
	return cmd
}

func newAddCmd(configPath *string) *cobra.Command {
	var (
		id     string
		title  string
		tags   []string
		toRead bool
		shared bool
		notes  string
	)
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add or update a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer closeApp()

			if id == "" {
				if existing, err := a.store.BookmarkByURL(cmd.Context(), args[0]); err == nil {
					id = existing.Identifier
				} else {
					id = uuid.NewString()
				}
			}
			if title == "" {
				title = args[0]
			}

			saved, err := a.updater.Update(cmd.Context(), store.Bookmark{
				Identifier: id,
				Title:      title,
				URL:        args[0],
				Tags:       tags,
				Date:       time.Now(),
				ToRead:     toRead,
				Shared:     shared,
				Notes:      notes,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), saved[0].Identifier)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "identifier (default: existing bookmark for the URL, else a new UUID)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "title (default: the URL)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach (repeatable)")
	cmd.Flags().BoolVar(&toRead, "to-read", false, "mark as unread")
	cmd.Flags().BoolVar(&shared, "shared", false, "mark as shared")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func newListCmd(configPath *string) *cobra.Command {
	var countOnly bool
	cmd := &cobra.Command{
		Use:   "list [filter]",
		Short: "List bookmarks matching a filter such as \"tag:go status:unread rust\"",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer closeApp()

			var p query.Predicate = query.True{}
			if len(args) == 1 {
				p = query.Parse(args[0])
			}

			if countOnly {
				n, err := a.store.Count(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}

			bookmarks, err := a.store.Bookmarks(cmd.Context(), p)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTITLE\tURL\tTAGS")
			for _, b := range bookmarks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					b.Identifier, b.Date.Format("2006-01-02"), b.Title, b.URL, strings.Join(b.Tags, " "))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&countOnly, "count", false, "print only the number of matches")
	return cmd
}

func newRemoveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete bookmarks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer closeApp()
			return a.updater.Delete(cmd.Context(), args...)
		},
	}
}

func newTagsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags with their bookmark counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer closeApp()

			counts, err := a.store.TagCounts(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, c := range counts {
				fmt.Fprintf(w, "%s\t%d\n", c.Name, c.Count)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <tag>...",
		Short: "Remove tags from every bookmark",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer closeApp()
			return a.updater.DeleteTag(cmd.Context(), args...)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rename <from> <to>",
		Short: "Rename a tag, merging into an existing one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer closeApp()
			return a.updater.RenameTag(cmd.Context(), args[0], args[1])
		},
	})
	return cmd
}

func newThumbnailCmd(configPath *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "thumbnail <id>",
		Short: "Download a bookmark's preview image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer closeApp()

			ctx := cmd.Context()
			b, err := a.store.Bookmark(ctx, args[0])
			if err != nil {
				return err
			}
			thumbs, closeThumbs, err := a.newThumbnails(ctx)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = closeThumbs(closeCtx)
			}()

			data, err := thumbs.Thumbnail(ctx, b)
			if err != nil {
				return err
			}
			if out == "" {
				out = b.Identifier + ".img"
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(data), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: <id>.img)")
	return cmd
}
