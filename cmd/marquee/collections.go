package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmcdole/marquee/internal/domain"
)

// keyArg parses a "movie:603" style argument into a bare item; the
// collection service fills in the details.
func keyArg(s string) (domain.MediaItem, error) {
	key, err := domain.ParseItemKey(s)
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("expected type:id, e.g. movie:603: %w", err)
	}
	return domain.MediaItem{ID: key.ID, MediaType: key.MediaType}, nil
}

// withApp runs fn with a wired app and a signal-aware context
func withApp(configPath *string, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(*configPath, false)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx, stop := signalContext()
		defer stop()
		cmd.SetContext(ctx)
		return fn(cmd, a, args)
	}
}

func RunFavoritesCommand(configPath *string) *cobra.Command {
	command := &cobra.Command{
		Use:     "fav",
		Aliases: []string{"favorites"},
		Short:   "Manage favorites",
	}

	command.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List favorites, newest first",
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, _ []string) error {
			favs, err := a.collections.Favorites()
			if err != nil {
				return err
			}
			printItems(cmd.OutOrStdout(), favs)
			return nil
		}),
	})

	command.AddCommand(&cobra.Command{
		Use:   "add <type:id>...",
		Short: "Add titles to favorites",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			for _, arg := range args {
				item, err := keyArg(arg)
				if err != nil {
					return err
				}
				saved, err := a.collections.AddFavorite(cmd.Context(), item)
				if err != nil {
					return fmt.Errorf("add %s: %w", arg, err)
				}
				cmd.Printf("Added %s (%s)\n", saved.Title, arg)
			}
			return nil
		}),
	})

	command.AddCommand(&cobra.Command{
		Use:   "rm <type:id>...",
		Short: "Remove titles from favorites",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			for _, arg := range args {
				key, err := domain.ParseItemKey(arg)
				if err != nil {
					return err
				}
				if err := a.collections.RemoveFavorite(key); err != nil {
					return fmt.Errorf("remove %s: %w", arg, err)
				}
			}
			return nil
		}),
	})

	return command
}

func RunListsCommand(configPath *string) *cobra.Command {
	command := &cobra.Command{
		Use:   "list",
		Short: "Manage custom lists",
	}

	command.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "Show all lists",
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, _ []string) error {
			lists, err := a.collections.Lists()
			if err != nil {
				return err
			}
			for _, l := range lists {
				cmd.Printf("%s  %-30s %3d items  updated %s\n", l.ID, l.Name, l.ItemCount, l.UpdatedAt.Local().Format(time.DateTime))
			}
			return nil
		}),
	})

	command.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a list",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			l, err := a.collections.CreateList(args[0])
			if err != nil {
				return err
			}
			cmd.Println(l.ID)
			return nil
		}),
	})

	command.AddCommand(&cobra.Command{
		Use:   "rename <list-id> <name>",
		Short: "Rename a list",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			return a.collections.RenameList(args[0], args[1])
		}),
	})

	command.AddCommand(&cobra.Command{
		Use:   "delete <list-id>",
		Short: "Delete a list and its entries",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			return a.collections.DeleteList(args[0])
		}),
	})

	command.AddCommand(&cobra.Command{
		Use:   "show <list-id>",
		Short: "Show the titles in a list",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			items, err := a.collections.ListItems(args[0])
			if err != nil {
				return err
			}
			printItems(cmd.OutOrStdout(), items)
			return nil
		}),
	})

	command.AddCommand(&cobra.Command{
		Use:   "add <list-id> <type:id>...",
		Short: "Add titles to a list",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			for _, arg := range args[1:] {
				item, err := keyArg(arg)
				if err != nil {
					return err
				}
				if err := a.collections.AddToList(cmd.Context(), args[0], item); err != nil {
					return fmt.Errorf("add %s: %w", arg, err)
				}
			}
			return nil
		}),
	})

	command.AddCommand(&cobra.Command{
		Use:   "rm <list-id> <type:id>...",
		Short: "Remove titles from a list",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			for _, arg := range args[1:] {
				key, err := domain.ParseItemKey(arg)
				if err != nil {
					return err
				}
				if err := a.collections.RemoveFromList(args[0], key); err != nil {
					return fmt.Errorf("remove %s: %w", arg, err)
				}
			}
			return nil
		}),
	})

	command.AddCommand(&cobra.Command{
		Use:   "of <type:id>",
		Short: "Show which lists contain a title",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			key, err := domain.ParseItemKey(args[0])
			if err != nil {
				return err
			}
			member, err := a.collections.Membership(key)
			if err != nil {
				return err
			}
			lists, err := a.collections.Lists()
			if err != nil {
				return err
			}
			for _, l := range lists {
				if member[l.ID] {
					cmd.Printf("%s  %s\n", l.ID, l.Name)
				}
			}
			return nil
		}),
	})

	return command
}

func RunHistoryCommand(configPath *string) *cobra.Command {
	var limit int

	command := &cobra.Command{
		Use:   "history",
		Short: "Show or record watch history",
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, _ []string) error {
			entries, err := a.collections.History(limit)
			if err != nil {
				return err
			}
			width := terminalWidth() - 18
			for _, e := range entries {
				cmd.Printf("%s  %s\n", e.WatchedAt.Local().Format("2006-01-02 15:04"), itemLine(e.Item, width))
			}
			return nil
		}),
	}
	command.Flags().IntVar(&limit, "limit", 20, "entries shown (0 for all)")

	command.AddCommand(&cobra.Command{
		Use:   "add <type:id>",
		Short: "Record a title as watched now",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			item, err := keyArg(args[0])
			if err != nil {
				return err
			}
			return a.collections.RecordWatched(cmd.Context(), item, time.Now())
		}),
	})

	return command
}
